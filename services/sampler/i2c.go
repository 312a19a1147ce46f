package sampler

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/shtc3"

	"presenter-fw/drivers/aht20"
	"presenter-fw/errcode"
	"presenter-fw/types"
	"presenter-fw/x/mathx"
)

// SHTC3 reads a Sensirion SHTC3 over I2C, waking it for each measurement.
type SHTC3 struct {
	drv shtc3.Device
}

func NewSHTC3(bus drivers.I2C) *SHTC3 {
	return &SHTC3{drv: shtc3.New(bus)}
}

func (s *SHTC3) Read() (types.Temperature, error) {
	if err := s.drv.WakeUp(); err != nil {
		return 0, errcode.Wrap(errcode.Error, "shtc3.wake", err)
	}
	defer func() { _ = s.drv.Sleep() }()

	tmc, _, err := s.drv.ReadTemperatureHumidity()
	if err != nil {
		return 0, errcode.Wrap(errcode.Error, "shtc3.read", err)
	}
	return types.Temperature(mathx.MilliToDeci(tmc)), nil
}

// AHT20 reads an Aosong AHT20 over I2C.
type AHT20 struct {
	dev aht20.Device
}

func NewAHT20(bus drivers.I2C) *AHT20 {
	d := aht20.New(bus)
	return &AHT20{dev: d}
}

func (a *AHT20) Read() (types.Temperature, error) {
	s, err := a.dev.Read()
	if err != nil {
		return 0, errcode.Wrap(errcode.Error, "aht20.read", err)
	}
	return types.Temperature(mathx.Clamp(s.DeciCelsius(), -32768, 32767)), nil
}
