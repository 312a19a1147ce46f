// Package config resolves the board profile compiled into the image and
// publishes its sections, retained, on config/<section>.
package config

import (
	"bytes"
	"context"

	"gopkg.in/yaml.v3"

	"presenter-fw/bus"
	"presenter-fw/errcode"
	"presenter-fw/types"
	"presenter-fw/version"
	"presenter-fw/x/mathx"
)

const configPrefix = "config"

// minStateSize is the size of the persisted update record.
const minStateSize = 20

// EmbeddedConfigLookup allows overriding how profiles are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Load returns the validated profile for board.
func Load(board string) (types.Profile, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return types.Profile{}, &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: "no embedded profile for " + board}
	}
	return Parse(raw)
}

// Parse decodes a profile, fills defaults and validates it.
func Parse(raw []byte) (types.Profile, error) {
	return Overlay(types.Profile{}, raw)
}

// Overlay decodes raw on top of base. Keys absent from raw keep base's
// values; unknown keys are rejected.
func Overlay(base types.Profile, raw []byte) (types.Profile, error) {
	p := base
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return types.Profile{}, errcode.Wrap(errcode.InvalidPayload, "config.parse", err)
		}
	}
	applyDefaults(&p)
	if err := Validate(p); err != nil {
		return types.Profile{}, err
	}
	return p, nil
}

func applyDefaults(p *types.Profile) {
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	p.Device.FirmwareRev = version.String()
	p.Sampler.IntervalS = mathx.OrDefault(p.Sampler.IntervalS, 5)
	if p.Sampler.Sensor == "" {
		p.Sampler.Sensor = "die"
	}
	p.Sampler.I2C.Hz = mathx.OrDefault(p.Sampler.I2C.Hz, 400000)
	if p.Buttons.Pull == "" {
		p.Buttons.Pull = "up"
	}
	p.Watchdog.TimeoutMs = mathx.OrDefault(p.Watchdog.TimeoutMs, 5000)
	p.Watchdog.PetMs = mathx.OrDefault(p.Watchdog.PetMs, 2000)
	p.Update.QueueLen = mathx.OrDefault(p.Update.QueueLen, 10)
	p.Update.ChunkMax = mathx.OrDefault(p.Update.ChunkMax, 128)
	p.Update.StateSize = mathx.OrDefault(p.Update.StateSize, 4096)
	p.Sessions.Workers = mathx.OrDefault(p.Sessions.Workers, 1)
}

// Validate rejects profiles the firmware cannot run with.
func Validate(p types.Profile) error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.validate", Msg: msg}
	}
	switch {
	case p.Device.Name == "":
		return bad("device.name is empty")
	case p.Sampler.IntervalS <= 0:
		return bad("sampler.interval_s must be positive")
	case p.Watchdog.PetMs <= 0 || p.Watchdog.PetMs >= p.Watchdog.TimeoutMs:
		return bad("heartbeat.pet_ms must be positive and below timeout_ms")
	case p.Update.QueueLen <= 0:
		return bad("update.queue_len must be positive")
	case p.Update.ImageSize <= 0:
		return bad("update.image_size must be positive")
	case p.Update.StateSize < minStateSize:
		return bad("update.state_size too small")
	case p.Update.FlashStart < 0:
		return bad("update.flash_offset is negative")
	case p.Sessions.Workers <= 0 || p.Sessions.Backlog < 0:
		return bad("sessions sizing is invalid")
	}
	switch p.Sampler.Sensor {
	case "die", "shtc3", "aht20", "fake":
	default:
		return bad("sampler.sensor " + p.Sampler.Sensor + " is unknown")
	}
	switch p.Buttons.Pull {
	case "up", "down", "none":
	default:
		return bad("buttons.pull " + p.Buttons.Pull + " is unknown")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type Service struct {
	profile types.Profile
}

func NewService(p types.Profile) *Service { return &Service{profile: p} }

// Sections returns the retained messages the service publishes, keyed by
// section name.
func (s *Service) Sections() map[string]any {
	p := s.profile
	return map[string]any{
		"device":    p.Device,
		"sampler":   p.Sampler,
		"buttons":   p.Buttons,
		"heartbeat": p.Watchdog,
		"update":    p.Update,
		"sessions":  p.Sessions,
	}
}

// Start publishes every section as a retained message.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	for k, v := range s.Sections() {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}
