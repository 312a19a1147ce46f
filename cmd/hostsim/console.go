package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"golang.org/x/crypto/blake2s"

	"presenter-fw/errcode"
	"presenter-fw/transport"
	"presenter-fw/transport/memradio"
	"presenter-fw/types"
)

// command is one parsed console line.
type command struct {
	verb string

	char     transport.CharID
	on       bool
	interval time.Duration
	temp     types.Temperature
	button   types.Button
	length   uint32
	offset   uint32
	data     []byte
	path     string
	chunk    int
	fail     bool
}

var charNames = map[string]transport.CharID{
	"temp":         transport.CharTemperature,
	"interval":     transport.CharInterval,
	"presses":      transport.CharPresses,
	"status":       transport.CharUpdateStatus,
	"version":      transport.CharUpdateVersion,
	"manufacturer": transport.CharManufacturer,
	"model":        transport.CharModel,
	"hw":           transport.CharHardwareRev,
	"fw":           transport.CharFirmwareRev,
}

const usage = `connect | disconnect | sub <temp|presses> [on|off] | interval <secs>
read <char> | temp <degC> | press <a|b> | sensor <ok|fail>
begin <len> | chunk <offset> <hex> | verify <hex> | abort | status | upload <file> [chunk]`

var errUsage = errors.New(usage)

func parseCommand(line string) (command, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return command{}, err
	}
	if len(words) == 0 {
		return command{}, errUsage
	}
	c := command{verb: strings.ToLower(words[0])}
	args := words[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s: want %d argument(s), got %d", c.verb, n, len(args))
		}
		return nil
	}

	switch c.verb {
	case "connect", "disconnect", "abort", "status", "help":
		return c, want(0)

	case "sub":
		if len(args) < 1 || len(args) > 2 {
			return c, fmt.Errorf("sub: want <char> [on|off]")
		}
		id, ok := charNames[args[0]]
		if !ok {
			return c, fmt.Errorf("sub: unknown characteristic %q", args[0])
		}
		if _, ok := transport.SubscribeEvent(id, true); !ok {
			return c, fmt.Errorf("sub: %s does not notify", args[0])
		}
		c.char, c.on = id, true
		if len(args) == 2 {
			if c.on, err = parseOnOff(args[1]); err != nil {
				return c, err
			}
		}
		return c, nil

	case "read":
		if err := want(1); err != nil {
			return c, err
		}
		id, ok := charNames[args[0]]
		if !ok {
			return c, fmt.Errorf("read: unknown characteristic %q", args[0])
		}
		c.char = id
		return c, nil

	case "interval":
		if err := want(1); err != nil {
			return c, err
		}
		// Non-positive values are passed through; the device rejects them.
		secs, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return c, fmt.Errorf("interval: %w", err)
		}
		c.interval = time.Duration(secs) * time.Second
		return c, nil

	case "temp":
		if err := want(1); err != nil {
			return c, err
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return c, fmt.Errorf("temp: %w", err)
		}
		d := math.Round(v * 10)
		if d < math.MinInt16 || d > math.MaxInt16 {
			return c, fmt.Errorf("temp: %v out of range", v)
		}
		c.temp = types.Temperature(d)
		return c, nil

	case "press":
		if err := want(1); err != nil {
			return c, err
		}
		switch strings.ToLower(args[0]) {
		case "a":
			c.button = types.ButtonA
		case "b":
			c.button = types.ButtonB
		default:
			return c, fmt.Errorf("press: unknown button %q", args[0])
		}
		return c, nil

	case "sensor":
		if err := want(1); err != nil {
			return c, err
		}
		switch args[0] {
		case "ok":
		case "fail":
			c.fail = true
		default:
			return c, fmt.Errorf("sensor: want ok or fail")
		}
		return c, nil

	case "begin":
		if err := want(1); err != nil {
			return c, err
		}
		n, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return c, fmt.Errorf("begin: %w", err)
		}
		c.length = uint32(n)
		return c, nil

	case "chunk":
		if err := want(2); err != nil {
			return c, err
		}
		off, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return c, fmt.Errorf("chunk: %w", err)
		}
		data, err := hex.DecodeString(args[1])
		if err != nil {
			return c, fmt.Errorf("chunk: %w", err)
		}
		if len(data) == 0 {
			return c, fmt.Errorf("chunk: empty payload")
		}
		c.offset, c.data = uint32(off), data
		return c, nil

	case "verify":
		if err := want(1); err != nil {
			return c, err
		}
		d, err := hex.DecodeString(args[0])
		if err != nil {
			return c, fmt.Errorf("verify: %w", err)
		}
		if len(d) != types.DigestSize {
			return c, fmt.Errorf("verify: digest is %d bytes, want %d", len(d), types.DigestSize)
		}
		c.data = d
		return c, nil

	case "upload":
		if len(args) < 1 || len(args) > 2 {
			return c, fmt.Errorf("upload: want <file> [chunk]")
		}
		c.path = args[0]
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return c, fmt.Errorf("upload: bad chunk size %q", args[1])
			}
			c.chunk = n
		}
		return c, nil
	}
	return c, fmt.Errorf("unknown command %q", c.verb)
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

// charName is the console name of id.
func charName(id transport.CharID) string {
	for k, v := range charNames {
		if v == id {
			return k
		}
	}
	return id.String()
}

func charList() string {
	names := make([]string, 0, len(charNames))
	for k := range charNames {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// uploadStall bounds how long upload waits for the device to take a chunk.
const uploadStall = 2 * time.Second

// console plays the phone app against the in-memory radio.
type console struct {
	sim      *Sim
	chunkMax int

	mu   sync.Mutex
	peer *memradio.Peer

	// progress receives upload completion in [0,1]; latest wins.
	progress chan float64
}

func newConsole(sim *Sim) *console {
	return &console{
		sim:      sim,
		chunkMax: sim.App.Profile.Update.ChunkMax,
		progress: make(chan float64, 1),
	}
}

// Peer is the current connection, or nil.
func (c *console) Peer() *memradio.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Forget drops p if it is still the current peer.
func (c *console) Forget(p *memradio.Peer) {
	c.mu.Lock()
	if c.peer == p {
		c.peer = nil
	}
	c.mu.Unlock()
}

func (c *console) exec(ctx context.Context, cmd command) (string, error) {
	// Board-side commands work on any radio.
	switch cmd.verb {
	case "help":
		return usage + "\nchars: " + charList(), nil
	case "temp":
		c.sim.Sensor.Set(cmd.temp)
		return fmt.Sprintf("sensor now %s", fmtTemp(cmd.temp)), nil
	case "press":
		c.sim.Press(cmd.button)
		return "pressed " + cmd.button.String(), nil
	case "sensor":
		if cmd.fail {
			c.sim.Sensor.Fail(errcode.Error)
			return "sensor reads fail", nil
		}
		c.sim.Sensor.Fail(nil)
		return "sensor reads ok", nil
	}

	if c.sim.Mem == nil {
		return "", fmt.Errorf("%s: the peer console needs --radio=mem", cmd.verb)
	}
	if cmd.verb == "connect" {
		return c.connect(ctx)
	}
	if cmd.verb == "read" {
		return fmtValue(cmd.char, c.sim.Mem.Value(cmd.char)), nil
	}

	p := c.Peer()
	if p == nil {
		return "", fmt.Errorf("%s: not connected", cmd.verb)
	}
	switch cmd.verb {
	case "disconnect":
		p.Disconnect()
		c.Forget(p)
		return "disconnected", nil
	case "sub":
		if err := p.Subscribe(cmd.char, cmd.on); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s notifications %s", charName(cmd.char), onOff(cmd.on)), nil
	case "interval":
		if err := p.WriteInterval(cmd.interval); err != nil {
			return "", err
		}
		return fmt.Sprintf("wrote interval %s", cmd.interval), nil
	case "begin":
		return "begin sent", p.SendUpdate(types.UpdateEvent{Op: types.UpdateBegin, Length: cmd.length})
	case "chunk":
		return fmt.Sprintf("chunk @%d (%d bytes) sent", cmd.offset, len(cmd.data)),
			p.SendUpdate(types.UpdateEvent{Op: types.UpdateChunk, Offset: cmd.offset, Data: cmd.data})
	case "verify":
		return "verify sent", p.SendUpdate(types.UpdateEvent{Op: types.UpdateVerify, Digest: cmd.data})
	case "abort":
		return "abort sent", p.SendUpdate(types.UpdateEvent{Op: types.UpdateAbort})
	case "status":
		return "status refresh sent", p.SendUpdate(types.UpdateEvent{Op: types.UpdateQuery})
	case "upload":
		return c.upload(ctx, p, cmd)
	}
	return "", fmt.Errorf("unknown command %q", cmd.verb)
}

func (c *console) connect(ctx context.Context) (string, error) {
	if c.Peer() != nil {
		return "", errors.New("connect: already connected")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	p, err := c.sim.Mem.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}
	c.mu.Lock()
	c.peer = p
	c.mu.Unlock()
	return fmt.Sprintf("connected (conn %d)", p.Handle()), nil
}

// upload streams a whole image: begin, chunks paced by the status
// characteristic, then verify with the file's BLAKE2s-256 digest.
func (c *console) upload(ctx context.Context, p *memradio.Peer, cmd command) (string, error) {
	img, err := os.ReadFile(cmd.path)
	if err != nil {
		return "", err
	}
	if len(img) == 0 {
		return "", fmt.Errorf("upload: %s is empty", cmd.path)
	}
	size := cmd.chunk
	if size <= 0 {
		size = c.chunkMax
	}

	if err := p.SendUpdate(types.UpdateEvent{Op: types.UpdateBegin, Length: uint32(len(img))}); err != nil {
		return "", err
	}
	if _, err := c.waitStatus(ctx, p, func(s types.UpdateStatus) bool {
		return s.State == types.StateReceiving && s.Length == uint32(len(img))
	}); err != nil {
		return "", err
	}

	for off := 0; off < len(img); off += size {
		end := min(off+size, len(img))
		ev := types.UpdateEvent{Op: types.UpdateChunk, Offset: uint32(off), Data: img[off:end]}
		if err := p.SendUpdate(ev); err != nil {
			return "", err
		}
		if _, err := c.waitStatus(ctx, p, func(s types.UpdateStatus) bool {
			return s.Offset >= uint32(end)
		}); err != nil {
			return "", err
		}
		c.report(float64(end) / float64(len(img)))
	}

	sum := blake2s.Sum256(img)
	if err := p.SendUpdate(types.UpdateEvent{Op: types.UpdateVerify, Digest: sum[:]}); err != nil {
		return "", err
	}
	st, err := c.waitStatus(ctx, p, func(s types.UpdateStatus) bool {
		return s.State == types.StateReadyToSwap
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("uploaded %d bytes, %s", st.Length, st.State), nil
}

// waitStatus polls the status characteristic until done reports true or
// the coordinator fails.
func (c *console) waitStatus(ctx context.Context, p *memradio.Peer, done func(types.UpdateStatus) bool) (types.UpdateStatus, error) {
	deadline := time.NewTimer(uploadStall)
	defer deadline.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for {
		st, ok := types.DecodeUpdateStatus(p.Read(transport.CharUpdateStatus))
		if ok {
			if done(st) {
				return st, nil
			}
			if st.State == types.StateFailed {
				return st, fmt.Errorf("update failed: %s", st.Reason)
			}
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-p.Done():
			return st, errcode.Closed
		case <-deadline.C:
			return st, errcode.Timeout
		case <-poll.C:
		}
	}
}

func (c *console) report(f float64) {
	select {
	case c.progress <- f:
	default:
		select {
		case <-c.progress:
		default:
		}
		select {
		case c.progress <- f:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func fmtTemp(t types.Temperature) string {
	return fmt.Sprintf("%.1f°C", float64(t)/10)
}

// fmtValue renders a characteristic value the way the phone app would.
func fmtValue(id transport.CharID, v []byte) string {
	if len(v) == 0 {
		return charName(id) + ": (empty)"
	}
	var s string
	switch id {
	case transport.CharTemperature:
		if len(v) == 2 {
			s = fmtTemp(types.Temperature(int16(binary.LittleEndian.Uint16(v))))
		}
	case transport.CharInterval:
		if d, err := types.DecodeInterval(v); err == nil {
			s = d.String()
		}
	case transport.CharPresses:
		if pc, ok := types.DecodePressCounts(v); ok {
			s = fmt.Sprintf("a=%d b=%d", pc.A, pc.B)
		}
	case transport.CharUpdateStatus:
		if st, ok := types.DecodeUpdateStatus(v); ok {
			s = fmtStatus(st)
		}
	case transport.CharUpdateVersion, transport.CharManufacturer, transport.CharModel,
		transport.CharHardwareRev, transport.CharFirmwareRev:
		s = strconv.Quote(string(v))
	}
	if s == "" {
		s = hex.EncodeToString(v)
	}
	return charName(id) + ": " + s
}

func fmtStatus(st types.UpdateStatus) string {
	s := fmt.Sprintf("%s %d/%d", st.State, st.Offset, st.Length)
	if st.State == types.StateFailed {
		s += " (" + string(st.Reason) + ")"
	}
	return s
}
