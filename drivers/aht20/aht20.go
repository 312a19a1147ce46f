// Package aht20 drives the AHT20 temperature/humidity sensor.
//
//	d := aht20.New(bus)
//	s, err := d.Read() // trigger, then poll until the conversion completes
//
// I2C.Tx MUST perform a write followed by a repeated-start read when both w
// and r are provided. Conversions are fixed-point: tenths of units.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

const (
	defaultPoll    = 15 * time.Millisecond
	defaultTimeout = 250 * time.Millisecond
)

type Device struct {
	bus     drivers.I2C
	Address uint16

	Poll    time.Duration
	Timeout time.Duration

	ready bool
	buf   [7]byte
}

// New does not touch the bus; the first Read calibrates the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, Poll: defaultPoll, Timeout: defaultTimeout}
}

func (d *Device) status() (byte, error) {
	b := []byte{0}
	if err := d.bus.Tx(d.Address, []byte{cmdStatus}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Device) calibrate() {
	if st, err := d.status(); err == nil && st&statusCalibrated != 0 {
		d.ready = true
		return
	}
	_ = d.bus.Tx(d.Address, []byte{cmdInitialize, 0x08, 0x00}, nil)
	time.Sleep(10 * time.Millisecond)
	d.ready = true
}

// Trigger starts a conversion without waiting for it.
func (d *Device) Trigger() error {
	if !d.ready {
		d.calibrate()
	}
	return d.bus.Tx(d.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect fetches a finished conversion, or ErrNotReady while busy.
func (d *Device) Collect() (Sample, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, nil, data); err != nil {
		return Sample{}, err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return Sample{}, ErrNotReady
	}
	return Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}, nil
}

// Read triggers a conversion and polls until it completes or Timeout passes.
func (d *Device) Read() (Sample, error) {
	if err := d.Trigger(); err != nil {
		return Sample{}, err
	}
	deadline := time.Now().Add(d.Timeout)
	for {
		s, err := d.Collect()
		if err != ErrNotReady {
			return s, err
		}
		if time.Now().After(deadline) {
			return Sample{}, ErrTimeout
		}
		time.Sleep(d.Poll)
	}
}

// Sample holds one raw conversion.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) DeciRelHumidity() int32 {
	return int32(int64(s.RawHumidity) * 1000 / 0x100000)
}

func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/0x100000) - 500
}
