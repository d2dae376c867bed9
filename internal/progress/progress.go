// Package progress is an optional, read-only terminal UI that renders the
// orchestrator loop's events as they happen. It never touches core
// decision logic — it only subscribes to a feed of rendered lines.
package progress

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// Line is one rendered progress line, already categorized so the TUI can
// style it without re-parsing the event.
type Line struct {
	Kind      string // "task", "verify", "error", "system"
	Text      string
	Timestamp time.Time
}

// Feed is the channel-based event source the model consumes. Close it to
// end the program's Init subscription.
type Feed chan Line

var styles = struct {
	task, verify, error_, system lipgloss.Style
	status                       lipgloss.Style
}{
	task:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	verify:  lipgloss.NewStyle().Foreground(lipgloss.Color("99")),
	error_:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	system:  lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	status:  lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("252")).Padding(0, 1),
}

func styleFor(kind string) lipgloss.Style {
	switch kind {
	case "task":
		return styles.task
	case "verify":
		return styles.verify
	case "error":
		return styles.error_
	default:
		return styles.system
	}
}

// Model is the bubbletea model rendering the progress feed in a scrolling
// viewport with a single status line.
type Model struct {
	feed     Feed
	title    string
	viewport viewport.Model
	lines    []string
	ready    bool
}

// New builds a progress Model bound to feed.
func New(title string, feed Feed) Model {
	return Model{feed: feed, title: title, viewport: viewport.New(0, 0)}
}

type lineMsg Line

func waitForLine(feed Feed) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-feed
		if !ok {
			return tea.Quit()
		}
		return lineMsg(line)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForLine(m.feed)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case lineMsg:
		rendered := styleFor(msg.Kind).Render(
			fmt.Sprintf("[%s] %s", msg.Timestamp.Format("15:04:05"), msg.Text),
		)
		m.lines = append(m.lines, rendered)
		m.viewport.SetContent(wordwrap.String(strings.Join(m.lines, "\n"), max(m.viewport.Width, 20)))
		m.viewport.GotoBottom()
		return m, waitForLine(m.feed)

	case tea.WindowSizeMsg:
		headerHeight := 1
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "initializing…"
	}
	status := styles.status.Render(m.title)
	return status + "\n" + m.viewport.View()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var _ tea.Model = Model{}
