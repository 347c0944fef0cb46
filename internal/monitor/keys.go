package monitor

import "github.com/charmbracelet/bubbles/key"

// keyMap defines key bindings for the monitor screen
type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Input       key.Binding
	AllMode     key.Binding
	PassThrough key.Binding
	Lock        key.Binding
	Unlock      key.Binding
	Refresh     key.Binding
	Grid        key.Binding
	Help        key.Binding
	Cancel      key.Binding
	Quit        key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Input, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Input, k.AllMode},
		{k.PassThrough, k.Lock, k.Unlock},
		{k.Refresh, k.Grid, k.Cancel},
		{k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev output"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next output"),
		),
		Input: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"),
			key.WithHelp("1-8", "route input"),
		),
		AllMode: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "route next input to all"),
		),
		PassThrough: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "pass-through"),
		),
		Lock: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "lock panel"),
		),
		Unlock: key.NewBinding(
			key.WithKeys("U"),
			key.WithHelp("U", "unlock panel"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Grid: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "toggle grid"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
