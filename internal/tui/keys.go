package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings active while a run is in progress.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// HelpText returns the help line shown under the spinner.
func (k KeyMap) HelpText() string {
	return k.Quit.Help().Key + " " + k.Quit.Help().Desc
}
