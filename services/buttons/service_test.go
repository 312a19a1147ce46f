package buttons

import (
	"context"
	"testing"
	"time"

	"presenter-fw/bus"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/types"
)

func next(t *testing.T, sub *bus.Subscription) types.PressCounts {
	t.Helper()
	select {
	case m := <-sub.Channel():
		pc, ok := m.Payload.(types.PressCounts)
		if !ok {
			t.Fatalf("payload %T", m.Payload)
		}
		return pc
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for press counts")
	}
	return types.PressCounts{}
}

func TestCountsMatchEdgesAndNeverDecrease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(64)
	conn := b.NewConnection("test")
	a, bb := make(chan gpioirq.Event), make(chan gpioirq.Event)
	New(conn, a, bb).Start(ctx)

	sub := conn.Subscribe(types.TopicPresses())
	if got := next(t, sub); got != (types.PressCounts{}) {
		t.Fatalf("initial counts %+v", got)
	}

	seq := []types.Button{types.ButtonA, types.ButtonB, types.ButtonA, types.ButtonA, types.ButtonB}
	var prev, want types.PressCounts
	for _, btn := range seq {
		if btn == types.ButtonA {
			a <- gpioirq.Event{Edge: gpioirq.EdgeFalling}
		} else {
			bb <- gpioirq.Event{Edge: gpioirq.EdgeFalling}
		}
		want = want.Inc(btn)
		got := next(t, sub)
		if !got.Covers(prev) {
			t.Fatalf("counts went backwards: %+v after %+v", got, prev)
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		prev = got
	}
	if want.A != 3 || want.B != 2 {
		t.Fatalf("want %+v", want)
	}
}

func TestLateSubscriberSeesLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	a := make(chan gpioirq.Event)
	New(conn, a, nil).Start(ctx)

	a <- gpioirq.Event{}
	a <- gpioirq.Event{}
	a <- gpioirq.Event{}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sub := conn.Subscribe(types.TopicPresses())
		got := next(t, sub)
		sub.Unsubscribe()
		if got.A == 3 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("retained counts never reached 3")
}
