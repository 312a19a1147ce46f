// Package advertiser is the Advertising Supervisor: it advertises, hands
// each accepted connection to the session arena and goes straight back to
// advertising.
package advertiser

import (
	"context"
	"sync/atomic"
	"time"

	"presenter-fw/transport"
	"presenter-fw/x/logx"
	"presenter-fw/x/taskpool"
)

var log = logx.New("adv")

// Serve runs one connection to completion on an arena worker.
type Serve func(ctx context.Context, conn transport.Conn)

type Supervisor struct {
	radio transport.Peripheral
	adv   transport.Advertisement
	pool  *taskpool.Pool
	serve Serve

	accepted atomic.Uint32
	dropped  atomic.Uint32
}

func New(radio transport.Peripheral, adv transport.Advertisement, pool *taskpool.Pool, serve Serve) *Supervisor {
	return &Supervisor{radio: radio, adv: adv, pool: pool, serve: serve}
}

// Run advertises until ctx is cancelled. Advertising errors are retried
// with backoff; they never stop the loop.
func (s *Supervisor) Run(ctx context.Context) {
	backoff := backoffSeq(100*time.Millisecond, 5*time.Second)
	log.Info("advertising", "name", s.adv.Name, "payload_len", len(s.adv.Payload))
	for {
		conn, err := s.radio.Advertise(ctx, s.adv)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d := backoff()
			log.Warn("advertise failed", "err", err, "retry_in", d)
			if !sleep(ctx, d) {
				return
			}
			continue
		}
		backoff = backoffSeq(100*time.Millisecond, 5*time.Second)
		s.accepted.Add(1)

		c := conn
		if err := s.pool.TrySubmit(func(ctx context.Context) { s.serve(ctx, c) }); err != nil {
			s.dropped.Add(1)
			log.Warn("session arena full, dropping connection", "conn", c.Handle(), "err", err)
			_ = c.Close()
			continue
		}
		log.Debug("connection handed off", "conn", c.Handle(), "queued", s.pool.Queued())
	}
}

func (s *Supervisor) Accepted() uint32 { return s.accepted.Load() }
func (s *Supervisor) Dropped() uint32  { return s.dropped.Load() }

func backoffSeq(min, max time.Duration) func() time.Duration {
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
