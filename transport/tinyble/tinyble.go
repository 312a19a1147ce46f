// Package tinyble implements transport.Peripheral on tinygo.org/x/bluetooth.
// It registers the GATT services at construction, advertises on demand and
// turns characteristic writes into transport events for the connection whose
// session is running.
package tinyble

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"presenter-fw/errcode"
	"presenter-fw/transport"
	"presenter-fw/types"
	"presenter-fw/x/logx"
)

const eventBuf = 16

var log = logx.New("ble")

var (
	uuidButtonsService = bluetooth.NewUUID(uuid.MustParse("b44fabf6-35b2-11ed-883f-d45d6455d2cc"))
	uuidPresses        = bluetooth.NewUUID(uuid.MustParse("b4ad9022-35b2-11ed-a76a-d45d6455d2cc"))

	uuidFirmwareService = bluetooth.NewUUID(uuid.MustParse("00001000-b0cd-11ec-871f-d45ddf138840"))
	uuidFirmwareVersion = bluetooth.NewUUID(uuid.MustParse("00001001-b0cd-11ec-871f-d45ddf138840"))
	uuidFirmwareControl = bluetooth.NewUUID(uuid.MustParse("00001003-b0cd-11ec-871f-d45ddf138840"))
	uuidFirmwareStatus  = bluetooth.NewUUID(uuid.MustParse("00001004-b0cd-11ec-871f-d45ddf138840"))
	uuidFirmwareData    = bluetooth.NewUUID(uuid.MustParse("00001005-b0cd-11ec-871f-d45ddf138840"))

	uuidMeasurementInterval = bluetooth.New16BitUUID(0x2A21)
)

type Peripheral struct {
	adapter *bluetooth.Adapter
	chars   map[transport.CharID]*bluetooth.Characteristic

	mu        sync.Mutex
	live      map[string]*conn // by peer address
	cur       *conn            // receives characteristic writes; set by Events
	connected chan *conn

	advOnce sync.Once
	adv     *bluetooth.Advertisement
	nextID  atomic.Uint64
	drops   atomic.Uint32
}

// New enables the adapter and registers every service. Initial values come
// from info and the caller's later SetValue calls.
func New(adapter *bluetooth.Adapter, info types.DeviceInfo) (*Peripheral, error) {
	if err := adapter.Enable(); err != nil {
		return nil, errcode.Wrap(errcode.Error, "ble.enable", err)
	}
	p := &Peripheral{
		adapter:   adapter,
		chars:     make(map[transport.CharID]*bluetooth.Characteristic),
		live:      make(map[string]*conn),
		connected: make(chan *conn, 1),
	}
	adapter.SetConnectHandler(p.onConnect)

	for _, svc := range p.services(info) {
		if err := adapter.AddService(svc); err != nil {
			return nil, errcode.Wrap(errcode.Error, "ble.add_service", err)
		}
	}
	return p, nil
}

func (p *Peripheral) char(id transport.CharID) *bluetooth.Characteristic {
	c := new(bluetooth.Characteristic)
	p.chars[id] = c
	return c
}

func (p *Peripheral) onWrite(id transport.CharID) func(bluetooth.Connection, int, []byte) {
	return func(_ bluetooth.Connection, offset int, value []byte) {
		if offset != 0 {
			return
		}
		ev, err := transport.DecodeWrite(id, value)
		if err != nil {
			log.Warn("write rejected", "char", id, "err", err)
			return
		}
		p.mu.Lock()
		c := p.cur
		p.mu.Unlock()
		if c == nil || !c.push(ev) {
			p.drops.Add(1)
		}
	}
}

func (p *Peripheral) services(info types.DeviceInfo) []*bluetooth.Service {
	const (
		read   = bluetooth.CharacteristicReadPermission
		notify = bluetooth.CharacteristicNotifyPermission
		write  = bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission
	)
	str := func(id transport.CharID, u bluetooth.UUID, s string) bluetooth.CharacteristicConfig {
		return bluetooth.CharacteristicConfig{Handle: p.char(id), UUID: u, Value: []byte(s), Flags: read}
	}
	return []*bluetooth.Service{
		{
			UUID: bluetooth.ServiceUUIDEnvironmentalSensing,
			Characteristics: []bluetooth.CharacteristicConfig{
				{Handle: p.char(transport.CharTemperature), UUID: bluetooth.CharacteristicUUIDTemperature,
					Value: types.Temperature(0).Bytes(), Flags: read | notify},
				{Handle: p.char(transport.CharInterval), UUID: uuidMeasurementInterval,
					Value: make([]byte, 4), Flags: read | write, WriteEvent: p.onWrite(transport.CharInterval)},
			},
		},
		{
			UUID: bluetooth.ServiceUUIDDeviceInformation,
			Characteristics: []bluetooth.CharacteristicConfig{
				str(transport.CharManufacturer, bluetooth.CharacteristicUUIDManufacturerNameString, info.Manufacturer),
				str(transport.CharModel, bluetooth.CharacteristicUUIDModelNumberString, info.Model),
				str(transport.CharHardwareRev, bluetooth.CharacteristicUUIDHardwareRevisionString, info.HardwareRev),
				str(transport.CharFirmwareRev, bluetooth.CharacteristicUUIDFirmwareRevisionString, info.FirmwareRev),
			},
		},
		{
			UUID: uuidButtonsService,
			Characteristics: []bluetooth.CharacteristicConfig{
				{Handle: p.char(transport.CharPresses), UUID: uuidPresses,
					Value: types.PressCounts{}.Bytes(), Flags: read | notify},
			},
		},
		{
			UUID: uuidFirmwareService,
			Characteristics: []bluetooth.CharacteristicConfig{
				str(transport.CharUpdateVersion, uuidFirmwareVersion, info.FirmwareRev),
				{Handle: p.char(transport.CharUpdateControl), UUID: uuidFirmwareControl,
					Flags: write, WriteEvent: p.onWrite(transport.CharUpdateControl)},
				{Handle: p.char(transport.CharUpdateData), UUID: uuidFirmwareData,
					Flags: write, WriteEvent: p.onWrite(transport.CharUpdateData)},
				{Handle: p.char(transport.CharUpdateStatus), UUID: uuidFirmwareStatus,
					Value: types.UpdateStatus{}.Bytes(), Flags: read | notify},
			},
		},
	}
}

func (p *Peripheral) onConnect(device bluetooth.Device, connected bool) {
	addr := device.Address.String()
	if !connected {
		p.detach(addr)
		return
	}
	p.attach(addr, device)
}

// attach records a new peer. Its conn receives writes only once a session
// asks for its event stream.
func (p *Peripheral) attach(addr string, device bluetooth.Device) *conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := &conn{
		id:     p.nextID.Add(1),
		p:      p,
		dev:    device,
		events: make(chan transport.Event, eventBuf),
	}
	// The stack only notifies peers that enabled the CCCD, so both
	// subscriptions are reported as on from the start.
	c.events <- transport.Event{Kind: transport.EventSampleNotify, Notify: true}
	c.events <- transport.Event{Kind: transport.EventPressNotify, Notify: true}
	p.live[addr] = c

	select {
	case p.connected <- c:
	default:
		p.drops.Add(1)
	}
	return c
}

func (p *Peripheral) detach(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.live[addr]
	if !ok {
		return
	}
	delete(p.live, addr)
	if p.cur == c {
		p.cur = nil
	}
	c.peerClosed()
}

// activate makes c the target of characteristic writes.
func (p *Peripheral) activate(c *conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.live {
		if l == c {
			p.cur = c
			return
		}
	}
}

// Advertise implements transport.Peripheral. Advertising data is derived by
// the stack from adv.Name and adv.Services.
func (p *Peripheral) Advertise(ctx context.Context, adv transport.Advertisement) (transport.Conn, error) {
	var cfgErr error
	p.advOnce.Do(func() {
		p.adv = p.adapter.DefaultAdvertisement()
		uuids := make([]bluetooth.UUID, 0, len(adv.Services))
		for _, s := range adv.Services {
			uuids = append(uuids, bluetooth.New16BitUUID(s))
		}
		cfgErr = p.adv.Configure(bluetooth.AdvertisementOptions{
			LocalName:    adv.Name,
			ServiceUUIDs: uuids,
		})
	})
	if cfgErr != nil {
		return nil, errcode.Wrap(errcode.Error, "ble.adv_configure", cfgErr)
	}
	if err := p.adv.Start(); err != nil {
		return nil, errcode.Wrap(errcode.Error, "ble.adv_start", err)
	}
	defer p.adv.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-p.connected:
		return c, nil
	}
}

func (p *Peripheral) SetValue(id transport.CharID, v []byte) error {
	ch, ok := p.chars[id]
	if !ok {
		return errcode.Unsupported
	}
	if _, err := ch.Write(v); err != nil {
		return errcode.Wrap(errcode.Error, "ble.set_value", err)
	}
	return nil
}

// Drops counts writes and connections that could not be delivered.
func (p *Peripheral) Drops() uint32 { return p.drops.Load() }

// -----------------------------------------------------------------------------
// Conn
// -----------------------------------------------------------------------------

type conn struct {
	id     uint64
	p      *Peripheral
	dev    bluetooth.Device
	events chan transport.Event

	mu     sync.Mutex
	closed bool
}

func (c *conn) Handle() uint64 { return c.id }

// Events hands the stream to the session and routes writes here from now on.
func (c *conn) Events() <-chan transport.Event {
	c.p.activate(c)
	return c.events
}

// push is called from the stack callback and must not block.
func (c *conn) push(ev transport.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *conn) peerClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	select {
	case c.events <- transport.Event{Kind: transport.EventClosed, Err: errcode.Closed}:
	default:
	}
	close(c.events)
}

func (c *conn) Notify(id transport.CharID, v []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errcode.Closed
	}
	return c.p.SetValue(id, v)
}

func (c *conn) Close() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}
	if err := c.dev.Disconnect(); err != nil {
		return errcode.Wrap(errcode.Closed, "ble.disconnect", err)
	}
	return nil
}
