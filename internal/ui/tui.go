// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the playout status view
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control carries signals from the TUI back to the caller
type Control struct {
	Quit chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Quit: make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		backend: "unknown",
		ctrl:    ctrl,
	}
}

// Run creates the TUI program; the caller starts it
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
