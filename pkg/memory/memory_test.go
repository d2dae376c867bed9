package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCreatesDefaultTemplateOnce(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	require.NoError(t, m.Ensure())

	path := filepath.Join(root, ".rev", "memory", "project_summary.md")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## What This Repo Is")

	require.NoError(t, os.WriteFile(path, []byte("custom content"), 0o644))
	require.NoError(t, m.Ensure())
	data2, _ := os.ReadFile(path)
	assert.Equal(t, "custom content", string(data2))
}

func TestRecordRecentChangesAppendsEntryWithFileLists(t *testing.T) {
	m := New(t.TempDir())
	require.NoError(t, m.RecordRecentChanges([]string{"new.go"}, []string{"main.go"}, nil))

	sections, err := m.readSections()
	require.NoError(t, err)
	body := sections["Recently Changed Files"]
	joined := ""
	for _, l := range body {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "created: new.go")
	assert.Contains(t, joined, "modified: main.go")
	assert.NotContains(t, joined, "(none recorded)")
}

func TestRecordFailureModeDedupesByTitle(t *testing.T) {
	m := New(t.TempDir())
	require.NoError(t, m.RecordFailureMode("Flaky network call", "times out intermittently", "retry with backoff", "task-1"))
	require.NoError(t, m.RecordFailureMode("Flaky network call", "times out intermittently", "retry with backoff", "task-2"))

	sections, err := m.readSections()
	require.NoError(t, err)
	count := 0
	for _, l := range sections["Known Failure Modes + Fixes"] {
		if strings.HasPrefix(l, "- Flaky network call") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMaybeRecordKnownFailureFromErrorMatchesWorkspaceEscape(t *testing.T) {
	m := New(t.TempDir())
	recorded, err := m.MaybeRecordKnownFailureFromError("path is outside allowed workspace roots", "task-1")
	require.NoError(t, err)
	assert.True(t, recorded)
}

func TestMaybeRecordKnownFailureFromErrorMatchesUnresolvedPath(t *testing.T) {
	m := New(t.TempDir())
	recorded, err := m.MaybeRecordKnownFailureFromError("could not resolve the target file", "task-1")
	require.NoError(t, err)
	assert.True(t, recorded)
}

func TestMaybeRecordKnownFailureFromErrorIgnoresUnknownText(t *testing.T) {
	m := New(t.TempDir())
	recorded, err := m.MaybeRecordKnownFailureFromError("some unrelated transient error", "task-1")
	require.NoError(t, err)
	assert.False(t, recorded)
}
