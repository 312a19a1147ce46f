// Package buttons is the Input Aggregator: it counts falling edges on two
// inputs and publishes the pair, retained, on every change.
package buttons

import (
	"context"

	"presenter-fw/bus"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/types"
	"presenter-fw/x/logx"
)

var log = logx.New("buttons")

type Service struct {
	conn   *bus.Connection
	a, b   <-chan gpioirq.Event
	counts types.PressCounts
}

func New(conn *bus.Connection, a, b <-chan gpioirq.Event) *Service {
	return &Service{conn: conn, a: a, b: b}
}

// Start publishes the zero counts and runs the aggregator until ctx ends.
func (s *Service) Start(ctx context.Context) {
	s.publish()
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	a, b := s.a, s.b
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-a:
			if !ok {
				a = nil
				continue
			}
			s.press(types.ButtonA)
		case _, ok := <-b:
			if !ok {
				b = nil
				continue
			}
			s.press(types.ButtonB)
		}
	}
}

func (s *Service) press(btn types.Button) {
	s.counts = s.counts.Inc(btn)
	log.Debug("press", "button", btn.String(), "a", s.counts.A, "b", s.counts.B)
	s.publish()
}

func (s *Service) publish() {
	s.conn.Publish(s.conn.NewMessage(types.TopicPresses(), s.counts, true))
}
