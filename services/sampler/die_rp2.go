//go:build rp2040 || rp2350

package sampler

import (
	"machine"

	"presenter-fw/types"
	"presenter-fw/x/mathx"
)

// Die reads the RP2040 on-chip temperature sensor.
type Die struct{}

func (Die) Read() (types.Temperature, error) {
	return types.Temperature(mathx.MilliToDeci(machine.ReadTemperature())), nil
}
