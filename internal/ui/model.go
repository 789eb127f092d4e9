// ABOUTME: Bubbletea model for the playout status TUI
// ABOUTME: Shows live device sessions, playing sources and runtime stats
package ui

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/playout/pkg/engine"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Output
	backend  string
	device   string
	sessions []engine.SessionInfo

	// Playback
	sources    []string
	peak       float32
	playErrors int64

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64
	memSys     uint64

	ctrl *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSessions())
	b.WriteString(m.renderSources())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders backend and device
func (m Model) renderHeader() string {
	return fmt.Sprintf(`┌─ Playout ────────────────────────────────────────────┐
│ Backend: %-43s │
│ Device:  %-43s │
├──────────────────────────────────────────────────────┤
`, truncate(m.backend, 43), truncate(m.device, 43))
}

// renderSessions renders one line per live device session
func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return "│ No active sessions                                   │\n"
	}

	s := "│ Sessions:                                            │\n"
	for _, info := range m.sessions {
		line := fmt.Sprintf("%s %s %s src:%d under:%d",
			truncate(string(info.Device), 12),
			info.Format.String(),
			channelName(info.Format.Channels),
			info.Added,
			info.Underruns)
		s += fmt.Sprintf("│   %-50s │\n", truncate(line, 50))
	}
	return s
}

// renderSources renders what is playing and the output level
func (m Model) renderSources() string {
	s := "│                                                      │\n"
	if len(m.sources) == 0 {
		s += "│ Now Playing: (nothing)                               │\n"
	} else {
		s += "│ Now Playing:                                         │\n"
		for _, name := range m.sources {
			s += fmt.Sprintf("│   %-50s │\n", truncate(name, 50))
		}
	}

	level := int(m.peak * 100)
	s += fmt.Sprintf("│ Level:  [%s] %3d%%%-27s │\n", renderBar(level, 100, 10), level, "")
	s += fmt.Sprintf("│ Errors: %-44d │\n", m.playErrors)
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ d:Debug  q:Quit                                      │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders runtime information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ DEBUG:                                               │
│   Goroutines: %-38d │
│   Mem Alloc:  %-38s │
│   Mem Sys:    %-38s │
`, m.goroutines, formatBytes(m.memAlloc), formatBytes(m.memSys))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Device != "" {
		m.device = msg.Device
	}
	if msg.Sessions != nil {
		m.sessions = msg.Sessions
	}
	if msg.Sources != nil {
		m.sources = msg.Sources
	}
	if msg.Peak != nil {
		m.peak = clampLevel(*msg.Peak)
	}
	if msg.PlayErrors != 0 {
		m.playErrors = msg.PlayErrors
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// StatusMsg updates TUI state. Zero fields leave the current value.
type StatusMsg struct {
	Backend    string
	Device     string
	Sessions   []engine.SessionInfo
	Sources    []string
	Peak       *float32
	PlayErrors int64
	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// QuitMsg is sent on Control.Quit when the user quits
type QuitMsg struct{}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

func clampLevel(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
