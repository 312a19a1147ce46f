//go:build rp2040 || rp2350

// Package platform brings up the board for the app: radio, sensor, flash,
// watchdog, button pins and the log sink.
package platform

import (
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/bluetooth"
	"tinygo.org/x/drivers"

	"presenter-fw/app"
	"presenter-fw/errcode"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/services/sampler"
	"presenter-fw/storage/rp2flash"
	"presenter-fw/transport/tinyble"
	"presenter-fw/types"
	"presenter-fw/x/logx"
)

// BoardID selects the embedded profile.
const BoardID = "pico_w"

const logBaud = 115200

func Setup(p types.Profile) (app.Board, error) {
	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: logBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	logx.SetOutput(uartx.UART0)

	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: uint32(p.Watchdog.TimeoutMs)}); err != nil {
		return app.Board{}, errcode.Wrap(errcode.Error, "platform.watchdog", err)
	}

	sensor, err := newSensor(p.Sampler)
	if err != nil {
		return app.Board{}, err
	}
	radio, err := tinyble.New(bluetooth.DefaultAdapter, p.Device)
	if err != nil {
		return app.Board{}, err
	}

	// Started last so slow radio bring-up cannot trip it.
	if err := machine.Watchdog.Start(); err != nil {
		return app.Board{}, errcode.Wrap(errcode.Error, "platform.watchdog", err)
	}

	return app.Board{
		Radio:    radio,
		Sensor:   sensor,
		Flash:    rp2flash.New(),
		Watchdog: machine.Watchdog,
		ButtonA:  &rp2Pin{p: machine.Pin(p.Buttons.PinA)},
		ButtonB:  &rp2Pin{p: machine.Pin(p.Buttons.PinB)},
	}, nil
}

func newSensor(c types.SamplerConfig) (sampler.Sensor, error) {
	switch c.Sensor {
	case "die":
		return sampler.Die{}, nil
	case "shtc3":
		bus, err := newI2C(c.I2C)
		if err != nil {
			return nil, err
		}
		return sampler.NewSHTC3(bus), nil
	case "aht20":
		bus, err := newI2C(c.I2C)
		if err != nil {
			return nil, err
		}
		return sampler.NewAHT20(bus), nil
	case "fake":
		return sampler.NewFake(0), nil
	}
	return nil, errcode.Unsupported
}

func newI2C(c types.I2CConfig) (drivers.I2C, error) {
	var hw *machine.I2C
	switch c.Bus {
	case "i2c0", "":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, errcode.InvalidParams
	}
	sda, scl := machine.Pin(c.SDA), machine.Pin(c.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := hw.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: c.Hz}); err != nil {
		return nil, errcode.Wrap(errcode.Error, "platform.i2c", err)
	}
	return hw, nil
}

// ---- GPIO with IRQ ----

type rp2Pin struct{ p machine.Pin }

func (r *rp2Pin) ConfigureInput(pull gpioirq.Pull) error {
	var mode machine.PinMode
	switch pull {
	case gpioirq.PullUp:
		mode = machine.PinInputPullup
	case gpioirq.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) Get() bool { return r.p.Get() }

func (r *rp2Pin) SetIRQ(edge gpioirq.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e gpioirq.Edge) machine.PinChange {
	switch e {
	case gpioirq.EdgeRising:
		return machine.PinRising
	case gpioirq.EdgeFalling:
		return machine.PinFalling
	case gpioirq.EdgeBoth:
		return machine.PinToggle
	}
	var zero machine.PinChange
	return zero
}
