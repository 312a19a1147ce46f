// internal/gpioirq/irq_worker.go
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"presenter-fw/errcode"
)

// Edge selects which transitions raise an interrupt.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Pull configures the input bias.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull maps "up", "down"; anything else is PullNone.
func ParsePull(s string) Pull {
	switch s {
	case "up":
		return PullUp
	case "down":
		return PullDown
	}
	return PullNone
}

// Pin is an interrupt-capable input. SetIRQ handlers run in ISR context.
type Pin interface {
	ConfigureInput(pull Pull) error
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Event is delivered from the worker to one watcher.
type Event struct {
	ID   int
	Edge Edge
	TS   time.Time
}

type Worker struct {
	// Written by ISR; MUST NOT block the ISR:
	isrQ    chan isrEvent
	stopped chan struct{}

	mu      sync.RWMutex
	watches map[int]*watch

	isrDrops atomic.Uint32
	outDrops atomic.Uint32
}

type isrEvent struct {
	id    int
	level bool // captured in ISR
}

type watch struct {
	id        int
	edge      Edge
	lastLevel bool
	out       chan Event
}

func New(isrBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 16
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		stopped: make(chan struct{}),
		watches: map[int]*watch{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

// Watch arms pin for edge and returns the event stream plus a cancel func
// that disarms the interrupt. The stream is never closed.
func (w *Worker) Watch(id int, pin Pin, pull Pull, edge Edge, buf int) (<-chan Event, func(), error) {
	if edge == EdgeNone {
		return nil, nil, errcode.InvalidParams
	}
	if buf <= 0 {
		buf = 4
	}
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, nil, err
	}
	wh := &watch{
		id:        id,
		edge:      edge,
		lastLevel: pin.Get(),
		out:       make(chan Event, buf),
	}

	w.mu.Lock()
	if _, dup := w.watches[id]; dup {
		w.mu.Unlock()
		return nil, nil, errcode.Busy
	}
	w.watches[id] = wh
	w.mu.Unlock()

	// ISR handler: fast register read + non-blocking channel send.
	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{id: id, level: l}:
		default:
			w.isrDrops.Add(1)
		}
	}
	if err := pin.SetIRQ(edge, handler); err != nil {
		w.mu.Lock()
		delete(w.watches, id)
		w.mu.Unlock()
		return nil, nil, err
	}

	cancel := func() {
		_ = pin.ClearIRQ()
		w.mu.Lock()
		delete(w.watches, id)
		w.mu.Unlock()
	}
	return wh.out, cancel, nil
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.watches[ev.id]
	w.mu.RUnlock()
	if wh == nil {
		return
	}

	var e Edge
	switch wh.edge {
	case EdgeBoth:
		switch {
		case !wh.lastLevel && ev.level:
			e = EdgeRising
		case wh.lastLevel && !ev.level:
			e = EdgeFalling
		}
	default:
		// Single-edge configurations are only raised for that edge; the level
		// read in the ISR may already have bounced, so trust the configuration.
		e = wh.edge
	}
	wh.lastLevel = ev.level

	if e == EdgeNone {
		return
	}
	select {
	case wh.out <- Event{ID: ev.id, Edge: e, TS: time.Now()}:
	default:
		w.outDrops.Add(1)
	}
}

// Drops reports events lost at the ISR queue and at watcher queues.
func (w *Worker) Drops() (isr, out uint32) { return w.isrDrops.Load(), w.outDrops.Load() }
