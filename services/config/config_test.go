package config

import (
	"context"
	"testing"
	"time"

	"presenter-fw/bus"
	"presenter-fw/errcode"
	"presenter-fw/types"
)

func TestConfig_EmbeddedProfilesValidate(t *testing.T) {
	for board := range embeddedConfigs {
		p, err := Load(board)
		if err != nil {
			t.Fatalf("Load(%q): %v", board, err)
		}
		if p.Board != board {
			t.Fatalf("board = %q, want %q", p.Board, board)
		}
		if p.Device.FirmwareRev == "" {
			t.Fatalf("%s: firmware rev not filled", board)
		}
	}
}

func TestConfig_PicoDefaults(t *testing.T) {
	p, err := Load("pico_w")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Sampler.IntervalS != 5 || p.Watchdog.PetMs != 2000 || p.Watchdog.TimeoutMs != 5000 {
		t.Fatalf("timing %+v %+v", p.Sampler, p.Watchdog)
	}
	if p.Update.QueueLen != 10 || p.Sessions.Workers != 1 || p.Sessions.Backlog != 1 {
		t.Fatalf("sizing %+v %+v", p.Update, p.Sessions)
	}
}

func TestConfig_UnknownBoard(t *testing.T) {
	if _, err := Load("esp32"); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("err = %v", err)
	}
}

func TestConfig_ParseFillsDefaults(t *testing.T) {
	p, err := Parse([]byte("device:\n  name: x\nupdate:\n  image_size: 4096\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Sampler.IntervalS != 5 || p.Sampler.Sensor != "die" || p.Buttons.Pull != "up" || p.Update.QueueLen != 10 {
		t.Fatalf("defaults not applied: %+v", p)
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	cases := map[string]string{
		"no name":          "update: {image_size: 1}\n",
		"negative":         "device: {name: x}\nupdate: {image_size: 1}\nsampler: {interval_s: -1}\n",
		"negative pet":     "device: {name: x}\nupdate: {image_size: 1}\nheartbeat: {pet_ms: -5}\n",
		"negative workers": "device: {name: x}\nupdate: {image_size: 1}\nsessions: {workers: -1}\n",
		"negative queue":   "device: {name: x}\nupdate: {image_size: 1, queue_len: -2}\n",
		"pet over timeout": "device: {name: x}\nupdate: {image_size: 1}\nheartbeat: {timeout_ms: 100, pet_ms: 200}\n",
		"bad sensor":       "device: {name: x}\nupdate: {image_size: 1}\nsampler: {sensor: bme280}\n",
		"bad pull":         "device: {name: x}\nupdate: {image_size: 1}\nbuttons: {pull: sideways}\n",
		"tiny state":       "device: {name: x}\nupdate: {image_size: 1, state_size: 8}\n",
		"unknown key":      "device: {name: x}\nupdate: {image_size: 1}\ncolour: blue\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestConfig_OverlayKeepsBase(t *testing.T) {
	base, _ := Load("host")
	p, err := Overlay(base, []byte("sampler:\n  interval_s: 1\n"))
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if p.Sampler.IntervalS != 1 || p.Device.Name != base.Device.Name || p.Sampler.Sensor != "fake" {
		t.Fatalf("overlay result %+v", p)
	}
	if same, err := Overlay(base, nil); err != nil || same.Device != base.Device {
		t.Fatalf("empty overlay: %+v %v", same, err)
	}
}

func TestConfig_PublishSectionsRetained(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(board string) ([]byte, bool) {
		if board != "pico_w" {
			return nil, false
		}
		return []byte("device: {name: bench}\nupdate: {image_size: 1024}\nheartbeat: {timeout_ms: 900, pet_ms: 300}\n"), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	p, err := Load("pico_w")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	NewService(p).Start(context.Background(), conn)

	sub := conn.Subscribe(bus.T(configPrefix, "#"))
	got := map[string]any{}
	deadline := time.After(time.Second)
	for len(got) < 6 {
		select {
		case m := <-sub.Channel():
			key, ok := m.Topic.At(1).(string)
			if !ok {
				t.Fatalf("topic[1] type %T, want string", m.Topic.At(1))
			}
			got[key] = m.Payload
		case <-deadline:
			t.Fatalf("got %d sections: %v", len(got), got)
		}
	}
	if hb, ok := got["heartbeat"].(types.WatchdogConfig); !ok || hb.PetMs != 300 {
		t.Fatalf("heartbeat section %#v", got["heartbeat"])
	}
	if dev, ok := got["device"].(types.DeviceInfo); !ok || dev.Name != "bench" {
		t.Fatalf("device section %#v", got["device"])
	}
}
