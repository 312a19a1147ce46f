// Package heartbeat is the Liveness Monitor: it pets the hardware watchdog
// on a fixed period. If this loop stalls the watchdog resets the device.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"presenter-fw/bus"
	"presenter-fw/types"
	"presenter-fw/x/logx"
	"presenter-fw/x/timex"
)

var log = logx.New("heartbeat")

// Watchdog is the keep-alive signal of an external reset timer.
type Watchdog interface {
	Update()
}

type Service struct {
	wd     Watchdog
	period time.Duration
	pets   atomic.Uint32
}

func New(wd Watchdog, period time.Duration) *Service {
	if period <= 0 {
		period = 2 * time.Second
	}
	return &Service{wd: wd, period: period}
}

// Pets counts keep-alive signals sent.
func (s *Service) Pets() uint32 { return s.pets.Load() }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(types.TopicConfig("heartbeat"))
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.period)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-tick.C:
			s.wd.Update()
			s.pets.Add(1)
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.WatchdogConfig)
			if !ok || cfg.PetMs <= 0 {
				continue
			}
			if d := timex.Ms(cfg.PetMs); d != s.period {
				s.period = d
				tick.Reset(d)
				log.Info("pet period set", "period", d)
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
