// Package session runs one peer connection: it multiplexes the connection's
// event stream, the sample ticker and the press-count feed until the peer
// goes away or a write to the peer fails.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"presenter-fw/bus"
	"presenter-fw/errcode"
	"presenter-fw/services/sampler"
	"presenter-fw/transport"
	"presenter-fw/types"
	"presenter-fw/x/logx"
)

var log = logx.New("session")

// Env is shared by every session. It is built once at start-up and passed
// by reference; nothing in it is looked up globally.
type Env struct {
	Radio     transport.Peripheral
	Sensor    sampler.Sensor
	NewTicker sampler.TickerFactory
	Updates   chan<- types.UpdateEvent
	Bus       *bus.Bus

	interval atomic.Int64
	drops    atomic.Uint32
}

// NewEnv sets the sample interval sessions start with.
func NewEnv(radio transport.Peripheral, sensor sampler.Sensor, updates chan<- types.UpdateEvent, b *bus.Bus, interval time.Duration) *Env {
	e := &Env{Radio: radio, Sensor: sensor, Updates: updates, Bus: b, NewTicker: sampler.RealTicker}
	e.interval.Store(int64(interval))
	return e
}

// Interval is the current sample interval.
func (e *Env) Interval() time.Duration { return time.Duration(e.interval.Load()) }

// UpdateDrops counts update events dropped because the queue was full.
func (e *Env) UpdateDrops() uint32 { return e.drops.Load() }

// errPeerGone ends a session without it being an error.
var errPeerGone = errors.New("peer gone")

type Session struct {
	env  *Env
	conn transport.Conn
	bc   *bus.Connection
	smp  *sampler.Sampler

	notifySample bool
	notifyPress  bool
}

// Run serves conn until the peer disconnects (nil) or a transport write
// fails (the error). conn is closed on return.
func Run(ctx context.Context, env *Env, conn transport.Conn) error {
	smp, err := sampler.New(env.Sensor, env.NewTicker, env.Interval())
	if err != nil {
		conn.Close()
		return err
	}
	s := &Session{
		env:  env,
		conn: conn,
		bc:   env.Bus.NewConnection("session"),
		smp:  smp,
	}
	defer func() {
		smp.Stop()
		s.bc.Disconnect()
		conn.Close()
	}()

	s.note(true, "connected")
	log.Info("connected", "conn", conn.Handle(), "interval", env.Interval())

	err = s.loop(ctx)
	reason := "disconnected"
	if err == errPeerGone {
		err = nil
	} else if err != nil {
		reason = err.Error()
	}
	s.note(false, reason)
	log.Info("ended", "conn", conn.Handle(), "reason", reason)
	return err
}

// loop gives the sources a fixed precedence when several are ready at
// once: stream, then ticker, then presses. Otherwise the first ready wins.
func (s *Session) loop(ctx context.Context) error {
	events := s.conn.Events()
	presses := s.bc.Subscribe(types.TopicPresses())

	for {
		select {
		case ev, ok := <-events:
			if err := s.onEvent(ev, ok); err != nil {
				return err
			}
			continue
		default:
		}
		select {
		case <-s.smp.C():
			if err := s.onTick(); err != nil {
				return err
			}
			continue
		default:
		}
		select {
		case m := <-presses.Channel():
			if err := s.onPresses(m); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if err := s.onEvent(ev, ok); err != nil {
				return err
			}
		case <-s.smp.C():
			if err := s.onTick(); err != nil {
				return err
			}
		case m := <-presses.Channel():
			if err := s.onPresses(m); err != nil {
				return err
			}
		}
	}
}

func (s *Session) onEvent(ev transport.Event, ok bool) error {
	if !ok {
		return errPeerGone
	}
	switch ev.Kind {
	case transport.EventSampleNotify:
		s.notifySample = ev.Notify
	case transport.EventPressNotify:
		s.notifyPress = ev.Notify
	case transport.EventInterval:
		return s.setInterval(ev.Interval)
	case transport.EventUpdate:
		select {
		case s.env.Updates <- ev.Update:
		default:
			s.env.drops.Add(1)
			log.Warn("update queue full, event dropped", "op", ev.Update.Op, "conn", s.conn.Handle())
		}
	case transport.EventClosed:
		if ev.Err != nil && ev.Err != errcode.Closed {
			log.Warn("stream failed", "conn", s.conn.Handle(), "err", ev.Err)
		}
		return errPeerGone
	}
	return nil
}

func (s *Session) setInterval(d time.Duration) error {
	old := s.smp.Interval()
	if err := s.smp.Reset(d); err != nil {
		log.Warn("interval rejected", "requested", d, "keep", old)
		// The stack already stored the peer's bytes; put the live value back.
		return s.env.Radio.SetValue(transport.CharInterval, types.EncodeInterval(old))
	}
	s.env.interval.Store(int64(d))
	log.Info("interval changed", "from", old, "to", d)
	return s.env.Radio.SetValue(transport.CharInterval, types.EncodeInterval(d))
}

func (s *Session) onTick() error {
	smp, err := s.smp.Sample()
	if err != nil {
		log.Warn("sample failed", "err", err)
		return nil
	}
	b := smp.DeciC.Bytes()
	if err := s.env.Radio.SetValue(transport.CharTemperature, b); err != nil {
		return err
	}
	s.bc.Publish(s.bc.NewMessage(types.TopicSample(), smp, true))
	if !s.notifySample {
		return nil
	}
	return s.conn.Notify(transport.CharTemperature, b)
}

func (s *Session) onPresses(m *bus.Message) error {
	if m == nil {
		return nil
	}
	pc, ok := m.Payload.(types.PressCounts)
	if !ok || !s.notifyPress {
		return nil
	}
	return s.conn.Notify(transport.CharPresses, pc.Bytes())
}

func (s *Session) note(active bool, reason string) {
	n := types.SessionNote{Conn: s.conn.Handle(), Active: active, Reason: reason}
	s.bc.Publish(s.bc.NewMessage(types.TopicSession(), n, false))
}
