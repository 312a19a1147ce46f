package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presenter-fw/bus"
	"presenter-fw/errcode"
	"presenter-fw/services/sampler"
	"presenter-fw/transport"
	"presenter-fw/transport/memradio"
	"presenter-fw/types"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeTicker struct {
	period time.Duration
	c      chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type tickerLab struct {
	created chan *fakeTicker
	prefire bool
}

func newLab() *tickerLab { return &tickerLab{created: make(chan *fakeTicker, 8)} }

func (l *tickerLab) factory(d time.Duration) sampler.Ticker {
	t := &fakeTicker{period: d, c: make(chan time.Time, 1)}
	if l.prefire {
		t.c <- time.Now()
	}
	l.created <- t
	return t
}

func (l *tickerLab) next(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-l.created:
		return tk
	case <-time.After(time.Second):
		t.Fatal("no ticker created")
	}
	return nil
}

func (l *tickerLab) none(t *testing.T) {
	t.Helper()
	select {
	case tk := <-l.created:
		t.Fatalf("unexpected ticker with period %v", tk.period)
	case <-time.After(30 * time.Millisecond):
	}
}

// -----------------------------------------------------------------------------
// Harness
// -----------------------------------------------------------------------------

type harness struct {
	radio   *memradio.Radio
	env     *Env
	sensor  *sampler.Fake
	lab     *tickerLab
	updates chan types.UpdateEvent
	bus     *bus.Bus

	peer *memradio.Peer
	conn transport.Conn
	tick *fakeTicker
	done chan error
}

func start(t *testing.T, updatesCap int) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		radio:   memradio.New(),
		sensor:  sampler.NewFake(215),
		lab:     newLab(),
		updates: make(chan types.UpdateEvent, updatesCap),
		bus:     bus.NewBus(8),
		done:    make(chan error, 1),
	}
	h.env = NewEnv(h.radio, h.sensor, h.updates, h.bus, 5*time.Second)
	h.env.NewTicker = h.lab.factory

	connCh := make(chan transport.Conn, 1)
	go func() {
		c, err := h.radio.Advertise(ctx, transport.Advertisement{Name: "test"})
		if err != nil {
			h.done <- err
			return
		}
		connCh <- c
		h.done <- Run(ctx, h.env, c)
	}()

	p, err := h.radio.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.peer = p
	h.conn = <-connCh
	h.tick = h.lab.next(t)
	return h
}

func (h *harness) notification(t *testing.T) memradio.Notification {
	t.Helper()
	select {
	case n := <-h.peer.Notifications():
		return n
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}
	return memradio.Notification{}
}

func (h *harness) noNotification(t *testing.T) {
	t.Helper()
	select {
	case n := <-h.peer.Notifications():
		t.Fatalf("unexpected notification %v=%x", n.Char, n.Value)
	case <-time.After(30 * time.Millisecond):
	}
}

func (h *harness) ended(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}
	return nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestSession_TwoTicksTwoNotifications(t *testing.T) {
	h := start(t, 10)
	if h.tick.period != 5*time.Second {
		t.Fatalf("default period %v", h.tick.period)
	}
	if err := h.peer.Subscribe(transport.CharTemperature, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for _, v := range []types.Temperature{215, 231} {
		h.sensor.Set(v)
		h.tick.c <- time.Now()
		n := h.notification(t)
		if n.Char != transport.CharTemperature || string(n.Value) != string(v.Bytes()) {
			t.Fatalf("notification %v=%x, want %x", n.Char, n.Value, v.Bytes())
		}
	}
	h.noNotification(t)
}

func TestSession_TickWithoutSubscriptionOnlyStores(t *testing.T) {
	h := start(t, 10)
	h.sensor.Set(-42)
	h.tick.c <- time.Now()

	want := types.Temperature(-42).Bytes()
	eventually(t, "stored temperature", func() bool {
		return string(h.radio.Value(transport.CharTemperature)) == string(want)
	})
	h.noNotification(t)
}

func TestSession_IntervalWriteReplacesTicker(t *testing.T) {
	h := start(t, 10)
	if err := h.peer.Subscribe(transport.CharTemperature, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	old := h.tick

	if err := h.peer.WriteInterval(time.Second); err != nil {
		t.Fatalf("WriteInterval: %v", err)
	}
	nt := h.lab.next(t)
	if nt.period != time.Second {
		t.Fatalf("new period %v", nt.period)
	}
	eventually(t, "old ticker stopped", old.isStopped)
	if h.env.Interval() != time.Second {
		t.Fatalf("env interval %v", h.env.Interval())
	}

	// The discarded ticker no longer drives notifications.
	old.c <- time.Now()
	h.noNotification(t)

	nt.c <- time.Now()
	if n := h.notification(t); n.Char != transport.CharTemperature {
		t.Fatalf("notification on %v", n.Char)
	}
}

func TestSession_NonPositiveIntervalRejected(t *testing.T) {
	h := start(t, 10)
	keep := types.EncodeInterval(5 * time.Second)

	for _, secs := range []int32{0, -5} {
		d := time.Duration(secs) * time.Second
		if err := h.peer.WriteInterval(d); err != nil {
			t.Fatalf("WriteInterval(%v): %v", d, err)
		}
		eventually(t, "interval value restored", func() bool {
			return string(h.radio.Value(transport.CharInterval)) == string(keep)
		})
	}
	h.lab.none(t)
	if h.tick.isStopped() || h.env.Interval() != 5*time.Second {
		t.Fatal("rejected interval changed sampler state")
	}
}

func TestSession_UpdateEventsForwardedOrDropped(t *testing.T) {
	h := start(t, 1)
	for i := 0; i < 3; i++ {
		if err := h.peer.SendUpdate(types.UpdateEvent{Op: types.UpdateQuery}); err != nil {
			t.Fatalf("SendUpdate: %v", err)
		}
	}
	eventually(t, "two drops", func() bool { return h.env.UpdateDrops() == 2 })
	if len(h.updates) != 1 {
		t.Fatalf("queued %d", len(h.updates))
	}

	// The session is still serving.
	if err := h.peer.Subscribe(transport.CharTemperature, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.tick.c <- time.Now()
	h.notification(t)
}

func TestSession_PressCountsNotifiedWhenSubscribed(t *testing.T) {
	h := start(t, 10)
	conn := h.bus.NewConnection("buttons")

	conn.Publish(conn.NewMessage(types.TopicPresses(), types.PressCounts{A: 1}, true))
	h.noNotification(t)

	if err := h.peer.Subscribe(transport.CharPresses, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	// Let the toggle land before the next publication.
	h.tick.c <- time.Now()
	eventually(t, "tick handled", func() bool { return len(h.radio.Value(transport.CharTemperature)) == 2 })

	conn.Publish(conn.NewMessage(types.TopicPresses(), types.PressCounts{A: 1, B: 1}, true))
	n := h.notification(t)
	pc, ok := types.DecodePressCounts(n.Value)
	if n.Char != transport.CharPresses || !ok || pc != (types.PressCounts{A: 1, B: 1}) {
		t.Fatalf("notification %v=%x", n.Char, n.Value)
	}
}

func TestSession_DisconnectEnds(t *testing.T) {
	h := start(t, 10)
	notes := h.bus.NewConnection("obs").Subscribe(types.TopicSession())

	h.peer.Disconnect()
	if err := h.ended(t); err != nil {
		t.Fatalf("Run returned %v after clean disconnect", err)
	}
	for ended := false; !ended; {
		select {
		case m := <-notes.Channel():
			n := m.Payload.(types.SessionNote)
			ended = !n.Active
			if ended && n.Reason != "disconnected" {
				t.Fatalf("note %+v", n)
			}
		case <-time.After(time.Second):
			t.Fatal("no end-of-session note")
		}
	}
	eventually(t, "ticker stopped", h.tick.isStopped)
}

func TestSession_NotifyFailureEnds(t *testing.T) {
	h := start(t, 10)
	if err := h.peer.Subscribe(transport.CharTemperature, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.tick.c <- time.Now()
	h.notification(t)

	// Stale link: the next notify fails.
	h.conn.Close()
	h.tick.c <- time.Now()
	if err := h.ended(t); errcode.Of(err) != errcode.Closed {
		t.Fatalf("Run returned %v, want closed", err)
	}
}

func TestSession_SampleFailureSkipped(t *testing.T) {
	h := start(t, 10)
	if err := h.peer.Subscribe(transport.CharTemperature, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.sensor.Fail(errors.New("i2c nack"))
	h.tick.c <- time.Now()
	h.noNotification(t)

	h.sensor.Fail(nil)
	h.tick.c <- time.Now()
	h.notification(t)
}

// fakeConn lets the stream and the ticker be ready before the loop starts.
type fakeConn struct {
	events chan transport.Event
	mu     sync.Mutex
	notes  []transport.CharID
}

func (f *fakeConn) Handle() uint64                 { return 1 }
func (f *fakeConn) Events() <-chan transport.Event { return f.events }
func (f *fakeConn) Close() error                   { return nil }
func (f *fakeConn) Notify(id transport.CharID, _ []byte) error {
	f.mu.Lock()
	f.notes = append(f.notes, id)
	f.mu.Unlock()
	return nil
}

func TestSession_StreamBeforeTickerWhenBothReady(t *testing.T) {
	lab := newLab()
	lab.prefire = true
	env := NewEnv(memradio.New(), sampler.NewFake(100), make(chan types.UpdateEvent, 1), bus.NewBus(4), time.Second)
	env.NewTicker = lab.factory

	fc := &fakeConn{events: make(chan transport.Event, 4)}
	fc.events <- transport.Event{Kind: transport.EventSampleNotify, Notify: true}
	fc.events <- transport.Event{Kind: transport.EventClosed}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), env, fc) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}

	// Both stream events drain before the pre-fired tick, so the session
	// ends without sampling.
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.notes) != 0 {
		t.Fatalf("ticker handled before stream: %v", fc.notes)
	}
}

func TestSession_RealTickerFollowsNewInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	radio := memradio.New()
	env := NewEnv(radio, sampler.NewFake(200), make(chan types.UpdateEvent, 1), bus.NewBus(4), time.Minute)
	go func() {
		c, err := radio.Advertise(ctx, transport.Advertisement{})
		if err == nil {
			_ = Run(ctx, env, c)
		}
	}()
	peer, err := radio.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = peer.Subscribe(transport.CharTemperature, true)
	_ = peer.WriteInterval(time.Second)
	start := time.Now()

	var at []time.Time
	for len(at) < 2 {
		select {
		case n := <-peer.Notifications():
			at = append(at, n.At)
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for 1s ticks")
		}
	}
	for i, prev := range []time.Time{start, at[0]} {
		gap := at[i].Sub(prev)
		if gap < 800*time.Millisecond || gap > 1500*time.Millisecond {
			t.Fatalf("gap %d = %v, want ~1s", i, gap)
		}
	}
}
