package progress

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateWindowSizeMarksModelReady(t *testing.T) {
	m := New("run-1", make(Feed, 1))

	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	out := updated.(Model)

	assert.Nil(t, cmd)
	assert.True(t, out.ready)
	assert.Equal(t, 80, out.viewport.Width)
	assert.Equal(t, 23, out.viewport.Height)
}

func TestUpdateLineMsgAppendsRenderedLine(t *testing.T) {
	m := New("run-1", make(Feed, 1))
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})

	ts := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	updated, cmd := m.Update(lineMsg{Kind: "task", Text: "dispatching edit", Timestamp: ts})
	out := updated.(Model)

	require.NotNil(t, cmd)
	require.Len(t, out.lines, 1)
	assert.True(t, strings.Contains(out.lines[0], "dispatching edit"))
	assert.True(t, strings.Contains(out.lines[0], "10:30:00"))
}

func TestUpdateKeyCtrlCQuits(t *testing.T) {
	m := New("run-1", make(Feed, 1))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewShowsInitializingBeforeFirstWindowSize(t *testing.T) {
	m := New("run-1", make(Feed, 1))
	assert.Equal(t, "initializing…", m.View())
}

func TestViewRendersStatusAfterReady(t *testing.T) {
	m := New("run-1", make(Feed, 1))
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "run-1")
}

// update is a small helper that keeps tea.Model's interface-returning
// Update ergonomic to chain in tests above.
func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}
