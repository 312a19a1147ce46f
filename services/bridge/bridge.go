// Package bridge forwards retained bus state onto characteristic values so
// peers can read the latest value without the owning service touching the
// radio.
package bridge

import (
	"context"
	"sync"

	"presenter-fw/bus"
	"presenter-fw/transport"
	"presenter-fw/types"
	"presenter-fw/x/logx"
	"presenter-fw/x/timex"
)

var log = logx.New("bridge")

// ValueSink is the part of transport.Peripheral the bridge writes to.
type ValueSink interface {
	SetValue(id transport.CharID, v []byte) error
}

// Rule maps one topic to one characteristic. Encode returns false for
// payloads it does not understand; those are skipped.
type Rule struct {
	Topic  bus.Topic
	Char   transport.CharID
	Encode func(payload any) ([]byte, bool)
}

// DefaultRules mirrors the press counts and the update status.
func DefaultRules() []Rule {
	return []Rule{
		{
			Topic: types.TopicPresses(),
			Char:  transport.CharPresses,
			Encode: func(p any) ([]byte, bool) {
				pc, ok := p.(types.PressCounts)
				return pc.Bytes(), ok
			},
		},
		{
			Topic: types.TopicUpdateStatus(),
			Char:  transport.CharUpdateStatus,
			Encode: func(p any) ([]byte, bool) {
				st, ok := p.(types.UpdateStatus)
				return st.Bytes(), ok
			},
		},
	}
}

// State is published retained on bridge/state.
type State struct {
	Level  string // "up", "degraded"
	Status string
	Char   string
	Err    string
	TSms   int64
}

func TopicState() bus.Topic { return bus.T("bridge", "state") }

type Service struct {
	conn  *bus.Connection
	sink  ValueSink
	rules []Rule

	mu       sync.Mutex
	failures int
}

func New(conn *bus.Connection, sink ValueSink, rules []Rule) *Service {
	return &Service{conn: conn, sink: sink, rules: rules}
}

// Start subscribes every rule and forwards until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.publishState("up", "forwarding", "", nil)
	for _, r := range s.rules {
		sub := s.conn.Subscribe(r.Topic)
		go s.forward(ctx, r, sub)
	}
}

func (s *Service) forward(ctx context.Context, r Rule, sub *bus.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			v, ok := r.Encode(msg.Payload)
			if !ok {
				log.Debug("payload skipped", "char", r.Char)
				continue
			}
			if err := s.sink.SetValue(r.Char, v); err != nil {
				log.Warn("set value failed", "char", r.Char, "err", err)
				s.mu.Lock()
				s.failures++
				s.mu.Unlock()
				s.publishState("degraded", "set_value_failed", r.Char.String(), err)
			}
		}
	}
}

// Failures counts SetValue errors since start.
func (s *Service) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Service) publishState(level, status, char string, err error) {
	st := State{Level: level, Status: status, Char: char, TSms: timex.NowMs()}
	if err != nil {
		st.Err = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(TopicState(), st, true))
}
