//go:build !(rp2040 || rp2350)

package platform

import (
	"presenter-fw/app"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/services/sampler"
	"presenter-fw/storage"
	"presenter-fw/transport/memradio"
	"presenter-fw/types"
)

// BoardID selects the embedded profile.
const BoardID = "host"

type nopWatchdog struct{}

func (nopWatchdog) Update() {}

// Setup returns a headless simulated board: an in-memory radio nobody
// connects to, a fixed 21.5 °C sensor and RAM flash. cmd/hostsim builds an
// interactive one.
func Setup(p types.Profile) (app.Board, error) {
	return app.Board{
		Radio:    memradio.New(),
		Sensor:   sampler.NewFake(215),
		Flash:    storage.NewMem(p.Update.FlashStart + p.Update.ImageSize + p.Update.StateSize),
		Watchdog: nopWatchdog{},
		ButtonA:  &gpioirq.SoftPin{},
		ButtonB:  &gpioirq.SoftPin{},
	}, nil
}
