package taskpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"presenter-fw/errcode"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSingleWorkerBacklogThenReject(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(1, 1)
	p.Start(ctx)

	var active, maxActive atomic.Int32
	release := make(chan struct{})
	done := make(chan int, 3)
	task := func(id int) Task {
		return func(context.Context) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			<-release
			active.Add(-1)
			done <- id
		}
	}

	if err := p.TrySubmit(task(1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	waitFor(t, "first task running", func() bool { return p.Running() == 1 })

	if err := p.TrySubmit(task(2)); err != nil {
		t.Fatalf("second submit should be queued: %v", err)
	}
	if err := p.TrySubmit(task(3)); err != errcode.Busy {
		t.Fatalf("third submit: err = %v, want busy", err)
	}
	if p.Rejected() != 1 || p.Queued() != 1 {
		t.Fatalf("rejected=%d queued=%d", p.Rejected(), p.Queued())
	}

	release <- struct{}{}
	if id := <-done; id != 1 {
		t.Fatalf("first completion = %d", id)
	}
	release <- struct{}{}
	if id := <-done; id != 2 {
		t.Fatalf("second completion = %d", id)
	}
	if maxActive.Load() != 1 {
		t.Fatalf("tasks overlapped: max active %d", maxActive.Load())
	}
}

func TestZeroBacklogRejectsWhileBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(1, 0)
	p.Start(ctx)

	block := make(chan struct{})
	waitFor(t, "idle worker accepts", func() bool {
		return p.TrySubmit(func(context.Context) { <-block }) == nil
	})
	waitFor(t, "task running", func() bool { return p.Running() == 1 })
	if err := p.TrySubmit(func(context.Context) {}); err != errcode.Busy {
		t.Fatalf("err = %v, want busy", err)
	}
	close(block)
}

func TestWorkersStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(2, 4)
	p.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() { p.Wait(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit")
	}
}
