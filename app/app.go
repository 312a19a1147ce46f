// Package app builds the firmware's shared context from a board and a
// profile and starts every long-running task. The firmware entry point and
// the host simulator both go through here.
package app

import (
	"context"

	"presenter-fw/bus"
	"presenter-fw/internal/gpioirq"
	"presenter-fw/services/advertiser"
	"presenter-fw/services/bridge"
	"presenter-fw/services/buttons"
	"presenter-fw/services/config"
	"presenter-fw/services/dfu"
	"presenter-fw/services/heartbeat"
	"presenter-fw/services/sampler"
	"presenter-fw/services/session"
	"presenter-fw/storage"
	"presenter-fw/transport"
	"presenter-fw/types"
	"presenter-fw/version"
	"presenter-fw/x/logx"
	"presenter-fw/x/taskpool"
	"presenter-fw/x/timex"
)

var log = logx.New("app")

// 16-bit service UUIDs carried in the advertisement.
const (
	uuidEnvironmentalSensing uint16 = 0x181A
	uuidDeviceInformation    uint16 = 0x180A
)

// Board is what the platform layer brings up.
type Board struct {
	Radio    transport.Peripheral
	Sensor   sampler.Sensor
	Flash    storage.Device
	Watchdog heartbeat.Watchdog
	ButtonA  gpioirq.Pin
	ButtonB  gpioirq.Pin
}

// App is the explicit context object: every task gets what it needs from
// here at spawn time.
type App struct {
	Profile     types.Profile
	Bus         *bus.Bus
	Env         *session.Env
	Coordinator *dfu.Coordinator
	Supervisor  *advertiser.Supervisor
	Pool        *taskpool.Pool
	Heartbeat   *heartbeat.Service
	Bridge      *bridge.Service
	IRQ         *gpioirq.Worker

	board   Board
	updates chan types.UpdateEvent
}

func New(b Board, p types.Profile) (*App, error) {
	logx.SetLevel(logx.ParseLevel(p.LogLevel))

	store, err := dfu.NewFlashStore(b.Flash, int64(p.Update.FlashStart), int64(p.Update.ImageSize), int64(p.Update.StateSize))
	if err != nil {
		return nil, err
	}

	a := &App{
		Profile: p,
		Bus:     bus.NewBus(8),
		Pool:    taskpool.New(p.Sessions.Workers, p.Sessions.Backlog),
		IRQ:     gpioirq.New(8),
		board:   b,
		updates: make(chan types.UpdateEvent, p.Update.QueueLen),
	}
	a.Coordinator = dfu.New(store, a.Bus.NewConnection("dfu"))
	a.Env = session.NewEnv(b.Radio, b.Sensor, a.updates, a.Bus, timex.Secs(p.Sampler.IntervalS))
	a.Heartbeat = heartbeat.New(b.Watchdog, timex.Ms(p.Watchdog.PetMs))
	a.Bridge = bridge.New(a.Bus.NewConnection("bridge"), b.Radio, bridge.DefaultRules())

	adv := advertiser.NewAdvertisement(p.Device.Name,
		[]uint16{uuidEnvironmentalSensing}, []uint16{uuidDeviceInformation})
	a.Supervisor = advertiser.New(b.Radio, adv, a.Pool, a.serve)

	if err := a.setStatic(); err != nil {
		return nil, err
	}
	return a, nil
}

// setStatic stores the values that never change after start-up.
func (a *App) setStatic() error {
	d := a.Profile.Device
	vals := []struct {
		id transport.CharID
		v  []byte
	}{
		{transport.CharManufacturer, []byte(d.Manufacturer)},
		{transport.CharModel, []byte(d.Model)},
		{transport.CharHardwareRev, []byte(d.HardwareRev)},
		{transport.CharFirmwareRev, []byte(d.FirmwareRev)},
		{transport.CharUpdateVersion, []byte(d.FirmwareRev)},
		{transport.CharInterval, types.EncodeInterval(a.Env.Interval())},
	}
	for _, kv := range vals {
		if err := a.board.Radio.SetValue(kv.id, kv.v); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) serve(ctx context.Context, conn transport.Conn) {
	if err := session.Run(ctx, a.Env, conn); err != nil && ctx.Err() == nil {
		log.Warn("session ended with error", "conn", conn.Handle(), "err", err)
	}
}

// Start launches every task and returns. Tasks stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	log.Info("starting", "version", version.String(), "board", a.Profile.Board, "name", a.Profile.Device.Name)

	config.NewService(a.Profile).Start(ctx, a.Bus.NewConnection("config"))
	a.Bridge.Start(ctx)
	if err := a.Heartbeat.Start(ctx, a.Bus.NewConnection("heartbeat")); err != nil {
		return err
	}

	a.IRQ.Start(ctx)
	pull := gpioirq.ParsePull(a.Profile.Buttons.Pull)
	chA, _, err := a.IRQ.Watch(int(types.ButtonA), a.board.ButtonA, pull, gpioirq.EdgeFalling, 4)
	if err != nil {
		return err
	}
	chB, _, err := a.IRQ.Watch(int(types.ButtonB), a.board.ButtonB, pull, gpioirq.EdgeFalling, 4)
	if err != nil {
		return err
	}
	buttons.New(a.Bus.NewConnection("buttons"), chA, chB).Start(ctx)

	a.Pool.Start(ctx)
	go a.Coordinator.Run(ctx, a.updates)
	go a.Supervisor.Run(ctx)
	return nil
}

// Run starts the app and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Pool.Wait()
	return nil
}
