package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusInProgress))
	assert.True(t, CanTransition(StatusInProgress, StatusCompleted))
	assert.True(t, CanTransition(StatusFailed, StatusInProgress))
	assert.False(t, CanTransition(StatusCompleted, StatusInProgress))
	assert.False(t, CanTransition(StatusStopped, StatusInProgress))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}

func TestTaskTransitionEnforcesLegalMoves(t *testing.T) {
	tk := NewTask("do something", ActionEdit)
	require.NoError(t, tk.Transition(StatusInProgress))
	require.NoError(t, tk.Transition(StatusCompleted))
	assert.NotNil(t, tk.CompletedAt)

	err := tk.Transition(StatusInProgress)
	assert.Error(t, err)
}

func TestNormalizeActionType(t *testing.T) {
	cases := map[string]ActionType{
		"Edit":          ActionEdit,
		"create":        ActionAdd,
		"new_file":      ActionAdd,
		"modify":        ActionEdit,
		"remove":        ActionDelete,
		"mkdir":         ActionCreateDirectory,
		"investigate":   ActionResearch,
		"total-nonsense": ActionGeneral,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeActionType(raw), "input %q", raw)
	}
}

func TestDeriveRiskScalesWithScope(t *testing.T) {
	assert.Equal(t, RiskLow, DeriveRisk(ActionRead, 1))
	assert.Equal(t, RiskMedium, DeriveRisk(ActionEdit, 1))
	assert.Equal(t, RiskHigh, DeriveRisk(ActionDelete, 2))
	assert.Equal(t, RiskCritical, DeriveRisk(ActionDelete, 6))
	assert.Equal(t, RiskHigh, DeriveRisk(ActionRefactor, 3))
	assert.Equal(t, RiskCritical, DeriveRisk(ActionRefactor, 11))
}

func TestExecutedOnlyReads(t *testing.T) {
	tk := NewTask("edit file", ActionEdit)
	assert.True(t, tk.ExecutedOnlyReads())

	tk.RecordToolEvent(ToolEvent{ToolName: "read_file"})
	assert.True(t, tk.ExecutedOnlyReads())

	tk.RecordToolEvent(ToolEvent{ToolName: "write_file"})
	assert.False(t, tk.ExecutedOnlyReads())
}

func TestToolEventIsNoop(t *testing.T) {
	ev := ToolEvent{ToolName: "write_file", Result: map[string]any{"changed": false}}
	assert.True(t, ev.IsNoop())

	ev2 := ToolEvent{ToolName: "write_file", Result: map[string]any{"changed": true}}
	assert.False(t, ev2.IsNoop())

	ev3 := ToolEvent{ToolName: "write_file"}
	assert.False(t, ev3.IsNoop())
}

func TestPlanPendingAndCounts(t *testing.T) {
	plan := NewPlan()
	assert.Nil(t, plan.Pending())

	t1 := NewTask("first", ActionRead)
	t2 := NewTask("second", ActionEdit)
	plan.AddTask(t1)
	plan.AddTask(t2)

	assert.Equal(t, t1, plan.Pending())

	require.NoError(t, t1.Transition(StatusInProgress))
	require.NoError(t, t1.Transition(StatusCompleted))
	assert.Equal(t, t2, plan.Pending())

	require.NoError(t, t2.Transition(StatusInProgress))
	require.NoError(t, t2.Transition(StatusFailed))
	assert.Nil(t, plan.Pending())
	assert.True(t, plan.AllTerminal())

	completed, failed, stopped, open := plan.Counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, stopped)
	assert.Equal(t, 0, open)
}

func TestActionTypePriorityOrdering(t *testing.T) {
	assert.Less(t, ActionRead.Priority(), ActionEdit.Priority())
	assert.Less(t, ActionEdit.Priority(), ActionTest.Priority())
	assert.Equal(t, actionPriority[ActionGeneral], ActionType("unregistered").Priority())
}
