package main

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the board-mode bindings. In console mode every printable key
// goes to the input line.
type keyMap struct {
	PressA     key.Binding
	PressB     key.Binding
	Warmer     key.Binding
	Cooler     key.Binding
	Connect    key.Binding
	Disconnect key.Binding
	Console    key.Binding
	Run        key.Binding
	Back       key.Binding
	Quit       key.Binding
	Help       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PressA: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "button A"),
		),
		PressB: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "button B"),
		),
		Warmer: key.NewBinding(
			key.WithKeys("up", "+", "k"),
			key.WithHelp("↑/+", "warmer"),
		),
		Cooler: key.NewBinding(
			key.WithKeys("down", "-", "j"),
			key.WithHelp("↓/-", "cooler"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect peer"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "disconnect"),
		),
		Console: key.NewBinding(
			key.WithKeys("tab", ":"),
			key.WithHelp("tab", "console"),
		),
		Run: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "board"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PressA, k.PressB, k.Warmer, k.Cooler, k.Connect, k.Console, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PressA, k.PressB, k.Warmer, k.Cooler},
		{k.Connect, k.Disconnect, k.Console, k.Back, k.Run},
		{k.Help, k.Quit},
	}
}
