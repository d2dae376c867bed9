package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openForTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestReturnsFalseWhenNoCheckpointsExist(t *testing.T) {
	s := openForTest(t)
	_, ok, err := s.Latest("run-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndLatestRoundTrip(t *testing.T) {
	s := openForTest(t)
	require.NoError(t, s.Save("run-1", 1, "dispatch", map[string]any{"tasks": 2}, map[string]any{"step": 1}))
	require.NoError(t, s.Save("run-1", 2, "verify", map[string]any{"tasks": 3}, map[string]any{"step": 2}))

	snap, ok, err := s.Latest("run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Iteration)
	assert.Equal(t, "verify", snap.Phase)
	assert.Contains(t, snap.PlanJSON, "3")
}

func TestSaveUpsertsSameIteration(t *testing.T) {
	s := openForTest(t)
	require.NoError(t, s.Save("run-1", 1, "dispatch", map[string]any{}, map[string]any{}))
	require.NoError(t, s.Save("run-1", 1, "verify", map[string]any{}, map[string]any{}))

	snap, ok, err := s.Latest("run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "verify", snap.Phase)
}

func TestListRunsReturnsDistinctRunIDs(t *testing.T) {
	s := openForTest(t)
	require.NoError(t, s.Save("run-1", 1, "dispatch", map[string]any{}, map[string]any{}))
	require.NoError(t, s.Save("run-2", 1, "dispatch", map[string]any{}, map[string]any{}))
	require.NoError(t, s.Save("run-1", 2, "verify", map[string]any{}, map[string]any{}))

	ids, err := s.ListRuns()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, ids)
}
