package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"presenter-fw/bus"
	"presenter-fw/types"
)

type fakeWatchdog struct{ n atomic.Int32 }

func (f *fakeWatchdog) Update() { f.n.Add(1) }

func TestHeartbeat_PetsPeriodically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wd := &fakeWatchdog{}
	s := New(wd, 2*time.Millisecond)
	_ = s.Start(ctx, bus.NewBus(4).NewConnection("hb"))

	deadline := time.Now().Add(time.Second)
	for wd.n.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d pets", wd.n.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if s.Pets() < 3 {
		t.Fatalf("Pets() = %d", s.Pets())
	}
}

func TestHeartbeat_FollowsConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(4)
	conn := b.NewConnection("cfg")
	wd := &fakeWatchdog{}
	_ = New(wd, time.Hour).Start(ctx, b.NewConnection("hb"))

	conn.Publish(conn.NewMessage(types.TopicConfig("heartbeat"), types.WatchdogConfig{TimeoutMs: 50, PetMs: 2}, true))

	deadline := time.Now().Add(time.Second)
	for wd.n.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("config period not applied")
		}
		time.Sleep(time.Millisecond)
	}
}
