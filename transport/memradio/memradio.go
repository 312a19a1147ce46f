// Package memradio is an in-memory transport.Peripheral with a scriptable
// peer. The host simulator and the service tests drive the firmware
// through it.
package memradio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"presenter-fw/errcode"
	"presenter-fw/transport"
	"presenter-fw/types"
)

const (
	eventBuf = 16
	notifBuf = 64
)

// Notification is one value pushed to the peer.
type Notification struct {
	Char  transport.CharID
	Value []byte
	At    time.Time
}

type Radio struct {
	mu          sync.Mutex
	values      map[transport.CharID][]byte
	adv         transport.Advertisement
	advertising bool

	pending chan *link
	nextID  atomic.Uint64
}

func New() *Radio {
	return &Radio{
		values:  make(map[transport.CharID][]byte),
		pending: make(chan *link),
	}
}

// Advertise implements transport.Peripheral. It returns when a peer calls
// Connect.
func (r *Radio) Advertise(ctx context.Context, adv transport.Advertisement) (transport.Conn, error) {
	r.mu.Lock()
	r.adv = adv
	r.advertising = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.advertising = false
		r.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l := <-r.pending:
		return l, nil
	}
}

func (r *Radio) SetValue(id transport.CharID, v []byte) error {
	r.mu.Lock()
	r.values[id] = append([]byte(nil), v...)
	r.mu.Unlock()
	return nil
}

// Value is the stored value of a characteristic as a peer would read it.
func (r *Radio) Value(id transport.CharID) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.values[id]...)
}

// Advertising reports the current advertisement while the device is
// waiting for a connection.
func (r *Radio) Advertising() (transport.Advertisement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adv, r.advertising
}

// Connect waits until the device accepts a connection.
func (r *Radio) Connect(ctx context.Context) (*Peer, error) {
	l := &link{
		id:       r.nextID.Add(1),
		radio:    r,
		events:   make(chan transport.Event, eventBuf),
		notes:    make(chan Notification, notifBuf),
		done:     make(chan struct{}),
		peerDone: make(chan struct{}),
	}
	select {
	case r.pending <- l:
		return &Peer{l: l}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Device side
// -----------------------------------------------------------------------------

type link struct {
	id     uint64
	radio  *Radio
	events chan transport.Event
	notes  chan Notification

	sendMu     sync.Mutex // serialises peer sends with Disconnect
	peerGone   bool
	peerDone   chan struct{} // closed by Disconnect
	closeOnce  sync.Once
	done       chan struct{} // closed by the device
	deviceGone atomic.Bool
}

func (l *link) Handle() uint64                 { return l.id }
func (l *link) Events() <-chan transport.Event { return l.events }

func (l *link) Notify(id transport.CharID, v []byte) error {
	if l.deviceGone.Load() {
		return errcode.Closed
	}
	l.sendMu.Lock()
	gone := l.peerGone
	l.sendMu.Unlock()
	if gone {
		return errcode.Closed
	}
	_ = l.radio.SetValue(id, v)
	// A full buffer blocks like a congested link until the peer reads or
	// either side hangs up.
	select {
	case l.notes <- Notification{Char: id, Value: append([]byte(nil), v...), At: time.Now()}:
		return nil
	case <-l.done:
		return errcode.Closed
	case <-l.peerDone:
		return errcode.Closed
	}
}

func (l *link) Close() error {
	l.closeOnce.Do(func() {
		l.deviceGone.Store(true)
		close(l.done)
	})
	return nil
}

// -----------------------------------------------------------------------------
// Peer side
// -----------------------------------------------------------------------------

// Peer is the remote end of one connection.
type Peer struct{ l *link }

func (p *Peer) Handle() uint64 { return p.l.id }

// Notifications yields values the device pushed to this peer.
func (p *Peer) Notifications() <-chan Notification { return p.l.notes }

// Done is closed when the device drops the connection.
func (p *Peer) Done() <-chan struct{} { return p.l.done }

// Read returns the stored value of a characteristic.
func (p *Peer) Read(id transport.CharID) []byte { return p.l.radio.Value(id) }

// Subscribe toggles the CCCD of a notifying characteristic.
func (p *Peer) Subscribe(id transport.CharID, on bool) error {
	ev, ok := transport.SubscribeEvent(id, on)
	if !ok {
		return nil
	}
	return p.send(ev)
}

// Write performs a write-with-response on a characteristic. As on a real
// stack the bytes are stored before the firmware sees the event.
func (p *Peer) Write(id transport.CharID, b []byte) error {
	ev, err := transport.DecodeWrite(id, b)
	if err != nil {
		return err
	}
	_ = p.l.radio.SetValue(id, b)
	return p.send(ev)
}

func (p *Peer) WriteInterval(d time.Duration) error {
	return p.Write(transport.CharInterval, types.EncodeInterval(d))
}

// SendUpdate writes ev to the control or data characteristic as
// appropriate.
func (p *Peer) SendUpdate(ev types.UpdateEvent) error {
	if ev.Op == types.UpdateChunk {
		return p.Write(transport.CharUpdateData, ev.Frame())
	}
	return p.Write(transport.CharUpdateControl, ev.Control())
}

// Disconnect ends the connection from the peer side.
func (p *Peer) Disconnect() {
	l := p.l
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.peerGone {
		return
	}
	l.peerGone = true
	close(l.peerDone)
	select {
	case l.events <- transport.Event{Kind: transport.EventClosed, Err: errcode.Closed}:
	default:
	}
	close(l.events)
}

func (p *Peer) send(ev transport.Event) error {
	l := p.l
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.peerGone {
		return errcode.Closed
	}
	select {
	case l.events <- ev:
		return nil
	case <-l.done:
		return errcode.Closed
	}
}
