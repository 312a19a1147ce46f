// Package sampler is the Periodic Sampler: a Sensor behind a ticker whose
// period can be replaced between ticks.
package sampler

import (
	"sync"
	"time"

	"presenter-fw/errcode"
	"presenter-fw/types"
	"presenter-fw/x/timex"
)

// Sensor returns the current temperature in tenths of °C.
type Sensor interface {
	Read() (types.Temperature, error)
}

// Ticker is the part of *time.Ticker the sampler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a running ticker with period d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the TickerFactory backed by time.NewTicker.
func RealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// Sampler is owned by one session; it is not safe for concurrent use.
type Sampler struct {
	sensor    Sensor
	newTicker TickerFactory
	interval  time.Duration
	t         Ticker
}

func New(sensor Sensor, newTicker TickerFactory, interval time.Duration) (*Sampler, error) {
	if interval <= 0 {
		return nil, errcode.InvalidPeriod
	}
	if newTicker == nil {
		newTicker = RealTicker
	}
	return &Sampler{
		sensor:    sensor,
		newTicker: newTicker,
		interval:  interval,
		t:         newTicker(interval),
	}, nil
}

// C fires on the current interval. The channel changes after Reset.
func (s *Sampler) C() <-chan time.Time { return s.t.C() }

func (s *Sampler) Interval() time.Duration { return s.interval }

// Reset discards the running ticker and starts a new one with period d.
// A non-positive d is rejected and nothing changes.
func (s *Sampler) Reset(d time.Duration) error {
	if d <= 0 {
		return errcode.InvalidPeriod
	}
	s.t.Stop()
	s.t = s.newTicker(d)
	s.interval = d
	return nil
}

// Sample reads the sensor once.
func (s *Sampler) Sample() (types.Sample, error) {
	v, err := s.sensor.Read()
	if err != nil {
		return types.Sample{}, err
	}
	return types.Sample{DeciC: v, TSms: timex.NowMs()}, nil
}

func (s *Sampler) Stop() { s.t.Stop() }

// -----------------------------------------------------------------------------
// Fake sensor
// -----------------------------------------------------------------------------

// Fake is a Sensor whose value is set by the caller (host simulator, tests).
type Fake struct {
	mu  sync.Mutex
	v   types.Temperature
	err error
}

func NewFake(v types.Temperature) *Fake { return &Fake{v: v} }

func (f *Fake) Read() (types.Temperature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v, f.err
}

func (f *Fake) Set(v types.Temperature) {
	f.mu.Lock()
	f.v = v
	f.mu.Unlock()
}

// Fail makes subsequent reads return err; nil restores normal reads.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
