package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"presenter-fw/bus"
	"presenter-fw/services/bridge"
	"presenter-fw/transport/memradio"
	"presenter-fw/types"
)

const maxLines = 12

type focus int

const (
	focusBoard focus = iota
	focusConsole
)

// --- Messages ---

// busMsg carries one message from the firmware bus.
type busMsg struct{ m *bus.Message }

// noteMsg is a notification received by the console peer.
type noteMsg struct {
	peer *memradio.Peer
	n    memradio.Notification
}

// peerGoneMsg signals the device dropped the console peer.
type peerGoneMsg struct{ peer *memradio.Peer }

// resultMsg is the outcome of one console command.
type resultMsg struct {
	line string
	out  string
	err  error
	peer *memradio.Peer // set after a successful connect
}

type progressMsg float64

// model is the bubbletea model for the simulator.
type model struct {
	ctx context.Context
	sim *Sim
	con *console
	sub *bus.Subscription

	focus    focus
	input    textinput.Model
	progress progress.Model
	help     help.Model
	keys     keyMap
	styles   styles
	width    int

	// Firmware state as seen on the bus.
	presses    types.PressCounts
	sample     types.Sample
	haveSample bool
	status     types.UpdateStatus
	bridge     bridge.State
	session    types.SessionNote
	uploading  bool
	pct        float64

	lines []string
}

func newModel(ctx context.Context, sim *Sim) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "help"
	ti.CharLimit = 256

	h := help.New()
	h.ShowAll = false

	st := defaultStyles()
	ti.PromptStyle = st.Prompt

	return model{
		ctx:      ctx,
		sim:      sim,
		con:      newConsole(sim),
		sub:      sim.App.Bus.NewConnection("hostsim").Subscribe(bus.T(bus.MultiLevel)),
		input:    ti,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:     h,
		keys:     defaultKeyMap(),
		styles:   st,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitBus(m.sub), waitProgress(m.con.progress))
}

// --- Async commands ---

func waitBus(sub *bus.Subscription) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub.Channel()
		if !ok {
			return nil
		}
		return busMsg{msg}
	}
}

func waitPeer(p *memradio.Peer) tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-p.Notifications():
			return noteMsg{peer: p, n: n}
		case <-p.Done():
			return peerGoneMsg{peer: p}
		}
	}
}

func waitProgress(ch <-chan float64) tea.Cmd {
	return func() tea.Msg { return progressMsg(<-ch) }
}

func runLine(ctx context.Context, con *console, line string) tea.Cmd {
	return func() tea.Msg {
		cmd, err := parseCommand(line)
		if err != nil {
			return resultMsg{line: line, err: err}
		}
		out, err := con.exec(ctx, cmd)
		r := resultMsg{line: line, out: out, err: err}
		if cmd.verb == "connect" && err == nil {
			r.peer = con.Peer()
		}
		return r
	}
}

// --- Update ---

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.focus == focusConsole {
			return m.handleConsoleKey(msg)
		}
		return m.handleBoardKey(msg)

	case busMsg:
		m.apply(msg.m)
		return m, waitBus(m.sub)

	case noteMsg:
		m.log(m.styles.Muted.Render("notify ") + fmtValue(msg.n.Char, msg.n.Value))
		return m, waitPeer(msg.peer)

	case peerGoneMsg:
		m.con.Forget(msg.peer)
		m.log(m.styles.Warning.Render("peer disconnected"))
		return m, nil

	case progressMsg:
		m.pct = float64(msg)
		return m, waitProgress(m.con.progress)

	case resultMsg:
		if strings.HasPrefix(msg.line, "upload") {
			m.uploading = false
		}
		if msg.err != nil {
			m.log(m.styles.Error.Render(msg.err.Error()))
		} else if msg.out != "" {
			for _, l := range strings.Split(msg.out, "\n") {
				m.log(l)
			}
		}
		if msg.peer != nil {
			return m, waitPeer(msg.peer)
		}
		return m, nil
	}

	if m.focus == focusConsole {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.PressA):
		m.sim.Press(types.ButtonA)
	case key.Matches(msg, m.keys.PressB):
		m.sim.Press(types.ButtonB)
	case key.Matches(msg, m.keys.Warmer):
		m.nudge(5)
	case key.Matches(msg, m.keys.Cooler):
		m.nudge(-5)
	case key.Matches(msg, m.keys.Connect):
		return m, runLine(m.ctx, m.con, "connect")
	case key.Matches(msg, m.keys.Disconnect):
		return m, runLine(m.ctx, m.con, "disconnect")
	case key.Matches(msg, m.keys.Console):
		m.focus = focusConsole
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m model) handleConsoleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.focus = focusBoard
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Run):
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		m.log(m.styles.Prompt.Render("> ") + line)
		if strings.HasPrefix(line, "upload") {
			m.uploading, m.pct = true, 0
		}
		return m, runLine(m.ctx, m.con, line)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// nudge moves the simulated reading by d tenths of a degree.
func (m *model) nudge(d types.Temperature) {
	v, _ := m.sim.Sensor.Read()
	m.sim.Sensor.Set(v + d)
}

func (m *model) apply(msg *bus.Message) {
	switch p := msg.Payload.(type) {
	case types.PressCounts:
		m.presses = p
	case types.Sample:
		m.sample, m.haveSample = p, true
	case types.UpdateStatus:
		m.status = p
	case types.SessionNote:
		m.session = p
		if p.Active {
			m.log(m.styles.Success.Render(fmt.Sprintf("session %d started", p.Conn)))
		} else {
			m.log(m.styles.Muted.Render(fmt.Sprintf("session %d ended: %s", p.Conn, p.Reason)))
		}
	case bridge.State:
		m.bridge = p
	}
}

func (m *model) log(line string) {
	m.lines = append(m.lines, line)
	if n := len(m.lines); n > maxLines {
		m.lines = append(m.lines[:0:0], m.lines[n-maxLines:]...)
	}
}

// --- View ---

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Panel.Render(m.viewBoard()),
		m.styles.Panel.Render(m.viewUpdate()),
	))
	b.WriteString("\n")

	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if m.focus == focusConsole {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	} else {
		b.WriteString(m.styles.Muted.Render("tab opens the peer console"))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
	return m.styles.App.Render(b.String())
}

func (m model) renderTitleBar() string {
	parts := []string{m.styles.Title.Render(m.sim.App.Profile.Device.Name)}

	switch {
	case m.session.Active:
		parts = append(parts, m.styles.Online.Render(fmt.Sprintf("● conn %d", m.session.Conn)))
	case m.sim.Mem != nil:
		if _, adv := m.sim.Mem.Advertising(); adv {
			parts = append(parts, m.styles.Warning.Render("◌ advertising"))
		} else {
			parts = append(parts, m.styles.Offline.Render("○ idle"))
		}
	default:
		parts = append(parts, m.styles.Warning.Render("◌ ble"))
	}
	if m.bridge.Level != "" && m.bridge.Level != "up" {
		parts = append(parts, m.styles.Error.Render("bridge "+m.bridge.Level))
	}
	parts = append(parts, m.styles.Muted.Render("fw "+m.sim.App.Profile.Device.FirmwareRev))
	return strings.Join(parts, "  ")
}

func (m model) viewBoard() string {
	var b strings.Builder
	b.WriteString(m.styles.Heading.Render("Board"))
	b.WriteString("\n")

	cur, err := m.sim.Sensor.Read()
	sensor := fmtTemp(cur)
	if err != nil {
		sensor = m.styles.Error.Render("failing")
	}
	b.WriteString(m.field("sensor", sensor))

	last := "-"
	if m.haveSample {
		last = fmtTemp(m.sample.DeciC)
	}
	b.WriteString(m.field("last sample", last))
	b.WriteString(m.field("interval", m.sim.App.Env.Interval().String()))
	b.WriteString(m.field("presses", fmt.Sprintf("A %d  B %d", m.presses.A, m.presses.B)))
	b.WriteString(m.field("dropped", fmt.Sprintf("%d updates", m.sim.App.Env.UpdateDrops())))
	return b.String()
}

func (m model) viewUpdate() string {
	var b strings.Builder
	b.WriteString(m.styles.Heading.Render("Firmware update"))
	b.WriteString("\n")

	state := m.status.State.String()
	switch m.status.State {
	case types.StateFailed:
		state = m.styles.Error.Render(state + " (" + string(m.status.Reason) + ")")
	case types.StateReadyToSwap:
		state = m.styles.Success.Render(state)
	}
	b.WriteString(m.field("state", state))
	b.WriteString(m.field("progress", fmt.Sprintf("%d / %d", m.status.Offset, m.status.Length)))
	if m.uploading {
		b.WriteString(m.progress.ViewAs(m.pct))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) field(label, value string) string {
	return m.styles.Label.Render(label) + " " + m.styles.Value.Render(value) + "\n"
}
