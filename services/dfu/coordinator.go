// Package dfu is the Firmware Update Coordinator. A single task drains the
// update event queue and applies each event to the state machine
//
//	Idle -begin-> Receiving -chunks-> Verifying -verify-> ReadyToSwap
//
// Any state returns to Idle on abort. Protocol violations, digest
// mismatches and storage faults move to Failed, which only abort leaves.
// Progress is written to the Store before a transition is reported.
package dfu

import (
	"context"

	"golang.org/x/crypto/blake2s"

	"presenter-fw/bus"
	"presenter-fw/errcode"
	"presenter-fw/types"
	"presenter-fw/x/logx"
	"presenter-fw/x/timex"
)

var log = logx.New("dfu")

// hashBlock bounds the read buffer used for verification.
const hashBlock = 256

type Coordinator struct {
	store Store
	conn  *bus.Connection
	st    types.UpdateStatus
	buf   [hashBlock]byte
}

// New restores the coordinator from the store's state record.
func New(store Store, conn *bus.Connection) *Coordinator {
	c := &Coordinator{store: store, conn: conn}
	rec, err := store.LoadState()
	if err != nil {
		log.Warn("state record unreadable", "err", err)
		rec = Record{State: types.StateIdle}
	}
	c.st = types.UpdateStatus{State: rec.State, Reason: rec.Reason, Offset: rec.Offset, Length: rec.Length}
	if rec.State != types.StateIdle {
		log.Info("resumed", "state", rec.State, "offset", rec.Offset, "length", rec.Length)
	}
	return c
}

// Status is the current state. Only the consumer task may call it while
// Run is active.
func (c *Coordinator) Status() types.UpdateStatus { return c.st }

// Run publishes the current status, then applies events in arrival order
// until ctx ends. Errors are logged and never stop the loop.
func (c *Coordinator) Run(ctx context.Context, events <-chan types.UpdateEvent) {
	c.publish()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := c.Handle(ev); err != nil {
				log.Warn("update event failed", "op", ev.Op, "err", err, "state", c.st.State)
			}
		}
	}
}

// Handle applies one event. The returned error describes why the event was
// rejected; the resulting state is always published.
func (c *Coordinator) Handle(ev types.UpdateEvent) error {
	err := c.apply(ev)
	c.publish()
	return err
}

func (c *Coordinator) apply(ev types.UpdateEvent) error {
	switch ev.Op {
	case types.UpdateAbort:
		return c.abort()
	case types.UpdateQuery:
		return nil
	}

	switch c.st.State {
	case types.StateFailed:
		return errcode.FailedState
	case types.StateIdle:
		if ev.Op == types.UpdateBegin {
			return c.begin(ev.Length)
		}
	case types.StateReceiving:
		if ev.Op == types.UpdateChunk {
			return c.chunk(ev.Offset, ev.Data)
		}
	case types.StateVerifying:
		if ev.Op == types.UpdateVerify {
			return c.verify(ev.Digest)
		}
	}
	return c.fail(errcode.Protocol, "unexpected "+ev.Op.String()+" in "+c.st.State.String(), nil)
}

func (c *Coordinator) begin(length uint32) error {
	if length == 0 {
		return c.fail(errcode.InvalidParams, "zero length", nil)
	}
	if int64(length) > c.store.Capacity() {
		return c.fail(errcode.Overflow, "image larger than partition", nil)
	}
	next := types.UpdateStatus{State: types.StateReceiving, Length: length}
	if err := c.persist(next); err != nil {
		return c.fail(errcode.Storage, "begin", err)
	}
	c.st = next
	log.Info("update started", "length", length)
	return nil
}

func (c *Coordinator) chunk(off uint32, data []byte) error {
	if off != c.st.Offset {
		return c.fail(errcode.OutOfOrder, "", nil)
	}
	end := uint64(off) + uint64(len(data))
	if end > uint64(c.st.Length) {
		return c.fail(errcode.Overflow, "", nil)
	}
	if _, err := c.store.WriteAt(data, int64(off)); err != nil {
		return c.fail(errcode.Storage, "write", err)
	}
	next := c.st
	next.Offset = uint32(end)
	if next.Offset == next.Length {
		next.State = types.StateVerifying
	}
	if err := c.persist(next); err != nil {
		return c.fail(errcode.Storage, "commit", err)
	}
	c.st = next
	if next.State == types.StateVerifying {
		log.Info("image received", "length", next.Length)
	}
	return nil
}

func (c *Coordinator) verify(want []byte) error {
	got, err := c.digest(c.st.Length)
	if err != nil {
		return c.fail(errcode.Storage, "read back", err)
	}
	if len(want) != len(got) || string(want) != string(got) {
		return c.fail(errcode.DigestMismatch, "", nil)
	}
	if err := c.store.MarkReady(c.st.Length); err != nil {
		return c.fail(errcode.Storage, "mark ready", err)
	}
	c.st.State = types.StateReadyToSwap
	log.Info("image verified, ready to swap", "length", c.st.Length)
	return nil
}

// digest computes BLAKE2s-256 over the first n bytes of the image.
func (c *Coordinator) digest(n uint32) ([]byte, error) {
	h, err := blake2s.New256(nil)
	if err != nil {
		return nil, err
	}
	for off := uint32(0); off < n; {
		k := n - off
		if k > hashBlock {
			k = hashBlock
		}
		if _, err := c.store.ReadAt(c.buf[:k], int64(off)); err != nil {
			return nil, err
		}
		h.Write(c.buf[:k])
		off += k
	}
	return h.Sum(nil), nil
}

// abort always ends in Idle. A failure to clear the record is reported but
// does not keep the coordinator out of Idle.
func (c *Coordinator) abort() error {
	prev := c.st.State
	c.st = types.UpdateStatus{State: types.StateIdle}
	if prev != types.StateIdle {
		log.Info("update aborted", "from", prev)
	}
	if err := c.persist(c.st); err != nil {
		return errcode.Wrap(errcode.Storage, "dfu.abort", err)
	}
	return nil
}

func (c *Coordinator) fail(reason errcode.Code, msg string, cause error) error {
	c.st.State = types.StateFailed
	c.st.Reason = reason
	if err := c.persist(c.st); err != nil {
		log.Warn("failed state not persisted", "err", err)
	}
	return &errcode.E{C: reason, Op: "dfu", Msg: msg, Err: cause}
}

func (c *Coordinator) persist(s types.UpdateStatus) error {
	return c.store.SaveState(Record{State: s.State, Reason: s.Reason, Offset: s.Offset, Length: s.Length})
}

func (c *Coordinator) publish() {
	c.st.TSms = timex.NowMs()
	if c.conn != nil {
		c.conn.Publish(c.conn.NewMessage(types.TopicUpdateStatus(), c.st, true))
	}
}
