package main

import (
	"fmt"
	"io"
	"os"

	"tinygo.org/x/bluetooth"

	"presenter-fw/app"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/services/config"
	"presenter-fw/services/sampler"
	"presenter-fw/storage"
	"presenter-fw/transport"
	"presenter-fw/transport/memradio"
	"presenter-fw/transport/tinyble"
	"presenter-fw/types"
)

// Sim is the interactive board: keyboard buttons, a settable sensor and
// either the in-memory radio (with a local peer console) or the host's
// Bluetooth adapter.
type Sim struct {
	App    *app.App
	Sensor *sampler.Fake
	A, B   *gpioirq.SoftPin

	// Mem is nil when the simulator runs on a real adapter.
	Mem *memradio.Radio

	closers []io.Closer
}

type nopWatchdog struct{}

func (nopWatchdog) Update() {}

func newSim(opts Options) (*Sim, error) {
	p, err := config.Load("host")
	if err != nil {
		return nil, err
	}
	if opts.Profile != "" {
		raw, err := os.ReadFile(opts.Profile)
		if err != nil {
			return nil, err
		}
		if p, err = config.Overlay(p, raw); err != nil {
			return nil, fmt.Errorf("profile %s: %w", opts.Profile, err)
		}
	}

	s := &Sim{
		Sensor: sampler.NewFake(types.Temperature(opts.TempDeci())),
		A:      &gpioirq.SoftPin{},
		B:      &gpioirq.SoftPin{},
	}

	size := int64(p.Update.FlashStart + p.Update.ImageSize + p.Update.StateSize)
	var flash storage.Device
	if opts.Flash != "" {
		f, err := storage.OpenFile(opts.Flash, size)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, f)
		flash = f
	} else {
		flash = storage.NewMem(int(size))
	}

	var radio transport.Peripheral
	switch opts.Radio {
	case "ble":
		r, err := tinyble.New(bluetooth.DefaultAdapter, p.Device)
		if err != nil {
			s.Close()
			return nil, err
		}
		radio = r
	default:
		s.Mem = memradio.New()
		radio = s.Mem
	}

	a, err := app.New(app.Board{
		Radio:    radio,
		Sensor:   s.Sensor,
		Flash:    flash,
		Watchdog: nopWatchdog{},
		ButtonA:  s.A,
		ButtonB:  s.B,
	}, p)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.App = a
	return s, nil
}

// Press drives one simulated button press.
func (s *Sim) Press(b types.Button) {
	if b == types.ButtonA {
		s.A.Press()
		return
	}
	s.B.Press()
}

func (s *Sim) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
