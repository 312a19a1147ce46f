// Package transport is the boundary between the firmware services and the
// radio. A Peripheral advertises and accepts one connection at a time; a
// Conn yields a typed event stream for that connection and pushes
// notifications. Characteristic values are addressed by CharID so the
// services never see radio-specific handles.
package transport

import (
	"context"
	"time"

	"presenter-fw/errcode"
	"presenter-fw/types"
)

// CharID names a characteristic independently of the radio stack.
type CharID uint8

const (
	CharTemperature CharID = iota + 1
	CharInterval
	CharPresses
	CharUpdateControl
	CharUpdateData
	CharUpdateStatus
	CharUpdateVersion
	CharManufacturer
	CharModel
	CharHardwareRev
	CharFirmwareRev
)

func (c CharID) String() string {
	switch c {
	case CharTemperature:
		return "temperature"
	case CharInterval:
		return "interval"
	case CharPresses:
		return "presses"
	case CharUpdateControl:
		return "dfu_control"
	case CharUpdateData:
		return "dfu_data"
	case CharUpdateStatus:
		return "dfu_status"
	case CharUpdateVersion:
		return "dfu_version"
	case CharManufacturer:
		return "manufacturer"
	case CharModel:
		return "model"
	case CharHardwareRev:
		return "hardware_rev"
	case CharFirmwareRev:
		return "firmware_rev"
	}
	return "unknown"
}

// EventKind tags an Event.
type EventKind uint8

const (
	EventSampleNotify EventKind = iota + 1 // Notify
	EventInterval                          // Interval
	EventUpdate                            // Update
	EventPressNotify                       // Notify
	EventClosed                            // Err
)

func (k EventKind) String() string {
	switch k {
	case EventSampleNotify:
		return "sample_notify"
	case EventInterval:
		return "interval"
	case EventUpdate:
		return "update"
	case EventPressNotify:
		return "press_notify"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is one item of a connection's event stream. Only the field named
// next to Kind is meaningful.
type Event struct {
	Kind     EventKind
	Notify   bool
	Interval time.Duration
	Update   types.UpdateEvent
	Err      error
}

// Advertisement is built once at start-up and never modified.
type Advertisement struct {
	Name         string
	Services     []uint16 // 16-bit service UUIDs
	Payload      []byte   // advertising data as sent on air
	ScanResponse []byte
}

// Peripheral is the device side of the radio.
type Peripheral interface {
	// Advertise broadcasts adv as connectable until a peer connects or ctx
	// is cancelled.
	Advertise(ctx context.Context, adv Advertisement) (Conn, error)
	// SetValue replaces the stored value of a characteristic. Peers read
	// it without involving the firmware.
	SetValue(id CharID, v []byte) error
}

// Conn is one peer connection.
type Conn interface {
	Handle() uint64
	// Events yields the connection's event stream. The channel closes, or
	// delivers EventClosed, when the peer goes away.
	Events() <-chan Event
	// Notify stores v and pushes it to the peer. It fails once the
	// connection is gone.
	Notify(id CharID, v []byte) error
	Close() error
}

// DecodeWrite turns a raw characteristic write into an Event. A write to a
// firmware-update characteristic that does not parse still yields an
// update event (op UpdateInvalid) so the coordinator sees the violation.
func DecodeWrite(id CharID, b []byte) (Event, error) {
	switch id {
	case CharInterval:
		d, err := types.DecodeInterval(b)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventInterval, Interval: d}, nil
	case CharUpdateControl:
		ev, err := types.ParseControl(b)
		if err != nil {
			return Event{Kind: EventUpdate, Update: types.UpdateEvent{Op: types.UpdateInvalid}}, nil
		}
		return Event{Kind: EventUpdate, Update: ev}, nil
	case CharUpdateData:
		ev, err := types.ParseData(b)
		if err != nil {
			return Event{Kind: EventUpdate, Update: types.UpdateEvent{Op: types.UpdateInvalid}}, nil
		}
		return Event{Kind: EventUpdate, Update: ev}, nil
	}
	return Event{}, errcode.Unsupported
}

// SubscribeEvent maps a CCCD toggle to its Event. ok is false for
// characteristics whose subscriptions the firmware does not track.
func SubscribeEvent(id CharID, on bool) (Event, bool) {
	switch id {
	case CharTemperature:
		return Event{Kind: EventSampleNotify, Notify: on}, true
	case CharPresses:
		return Event{Kind: EventPressNotify, Notify: on}, true
	}
	return Event{}, false
}
