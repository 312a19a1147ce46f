package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"presenter-fw/bus"
	"presenter-fw/transport"
	"presenter-fw/types"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line  string
		check func(command) bool
	}{
		{"connect", func(c command) bool { return c.verb == "connect" }},
		{"sub temp", func(c command) bool { return c.char == transport.CharTemperature && c.on }},
		{"sub presses off", func(c command) bool { return c.char == transport.CharPresses && !c.on }},
		{"interval -3", func(c command) bool { return c.interval == -3*time.Second }},
		{"temp 23.4", func(c command) bool { return c.temp == 234 }},
		{"temp -4", func(c command) bool { return c.temp == -40 }},
		{"press B", func(c command) bool { return c.button == types.ButtonB }},
		{"begin 0x400", func(c command) bool { return c.length == 1024 }},
		{"chunk 16 'deadbeef'", func(c command) bool {
			return c.offset == 16 && bytes.Equal(c.data, []byte{0xde, 0xad, 0xbe, 0xef})
		}},
		{`upload "my image.bin" 64`, func(c command) bool { return c.path == "my image.bin" && c.chunk == 64 }},
		{"sensor fail", func(c command) bool { return c.fail }},
		{"read fw", func(c command) bool { return c.char == transport.CharFirmwareRev }},
	}
	for _, tc := range cases {
		c, err := parseCommand(tc.line)
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if !tc.check(c) {
			t.Fatalf("%q: unexpected parse %+v", tc.line, c)
		}
	}
}

func TestParseCommandRejects(t *testing.T) {
	bad := []string{
		"",
		"warp 9",
		"sub interval",     // not a notifying characteristic
		"sub temp maybe",   // bad toggle
		"interval soon",    // not a number
		"press c",          // no such button
		"chunk 0 zz",       // bad hex
		"verify abcd",      // short digest
		"begin",            // missing length
		"upload img.bin 0", // bad chunk size
		`read "unterminated`,
	}
	for _, line := range bad {
		if _, err := parseCommand(line); err == nil {
			t.Fatalf("%q: expected an error", line)
		}
	}
}

func TestFmtValue(t *testing.T) {
	if got := fmtValue(transport.CharTemperature, types.Temperature(-15).Bytes()); got != "temp: -1.5°C" {
		t.Fatalf("temperature: %q", got)
	}
	if got := fmtValue(transport.CharPresses, types.PressCounts{A: 2, B: 7}.Bytes()); got != "presses: a=2 b=7" {
		t.Fatalf("presses: %q", got)
	}
	st := types.UpdateStatus{State: types.StateFailed, Reason: "out_of_order", Offset: 4, Length: 8}
	if got := fmtValue(transport.CharUpdateStatus, st.Bytes()); got != "status: failed 4/8 (out_of_order)" {
		t.Fatalf("status: %q", got)
	}
	if got := fmtValue(transport.CharModel, nil); got != "model: (empty)" {
		t.Fatalf("empty: %q", got)
	}
}

func startSim(t *testing.T) (*Sim, *console, context.Context) {
	t.Helper()
	sim, err := newSim(Options{Radio: "mem", Temp: 21.5})
	if err != nil {
		t.Fatalf("newSim: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		sim.Close()
	})
	if err := sim.App.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sim, newConsole(sim), ctx
}

func mustRun(t *testing.T, ctx context.Context, con *console, line string) string {
	t.Helper()
	cmd, err := parseCommand(line)
	if err != nil {
		t.Fatalf("%q: %v", line, err)
	}
	out, err := con.exec(ctx, cmd)
	if err != nil {
		t.Fatalf("%q: %v", line, err)
	}
	return out
}

func TestConsoleNeedsConnection(t *testing.T) {
	_, con, ctx := startSim(t)
	cmd, _ := parseCommand("abort")
	if _, err := con.exec(ctx, cmd); err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Fatalf("err = %v", err)
	}
}

func TestConsoleBoardCommands(t *testing.T) {
	sim, con, ctx := startSim(t)

	mustRun(t, ctx, con, "temp 30")
	if v, _ := sim.Sensor.Read(); v != 300 {
		t.Fatalf("sensor = %d", v)
	}
	mustRun(t, ctx, con, "sensor fail")
	if _, err := sim.Sensor.Read(); err == nil {
		t.Fatal("sensor should fail")
	}
	mustRun(t, ctx, con, "sensor ok")

	if got := mustRun(t, ctx, con, "read model"); got != `model: "Host Simulator"` {
		t.Fatalf("read model: %q", got)
	}
}

func TestConsoleUpload(t *testing.T) {
	sim, con, ctx := startSim(t)

	img := make([]byte, 1000)
	for i := range img {
		img[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, ctx, con, "connect")
	out := mustRun(t, ctx, con, "upload "+path+" 128")
	if out != "uploaded 1000 bytes, ready_to_swap" {
		t.Fatalf("upload: %q", out)
	}

	st, ok := types.DecodeUpdateStatus(sim.Mem.Value(transport.CharUpdateStatus))
	if !ok || st.State != types.StateReadyToSwap || st.Offset != 1000 {
		t.Fatalf("status = %+v ok=%v", st, ok)
	}
	select {
	case f := <-con.progress:
		if f != 1 {
			t.Fatalf("progress = %v", f)
		}
	default:
		t.Fatal("no progress reported")
	}

	mustRun(t, ctx, con, "disconnect")
	if con.Peer() != nil {
		t.Fatal("peer still set")
	}
}

func TestModelTracksBus(t *testing.T) {
	sim, _, ctx := startSim(t)
	m := newModel(ctx, sim)

	msg := sim.App.Bus.NewMessage(types.TopicPresses(), types.PressCounts{A: 3, B: 1}, true)
	next, _ := m.Update(busMsg{msg})
	m = next.(model)
	if m.presses.A != 3 || m.presses.B != 1 {
		t.Fatalf("presses = %+v", m.presses)
	}
	if v := m.View(); !strings.Contains(v, "A 3  B 1") {
		t.Fatalf("view missing press counts:\n%s", v)
	}

	note := sim.App.Bus.NewMessage(bus.T("session", "state"), types.SessionNote{Conn: 9, Active: true}, false)
	next, _ = m.Update(busMsg{note})
	m = next.(model)
	if !m.session.Active || len(m.lines) == 0 {
		t.Fatalf("session note not applied: %+v", m.session)
	}
}
