package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricEvaluateByTargetType(t *testing.T) {
	boolMetric := &Metric{Target: true, Current: true}
	assert.True(t, boolMetric.Evaluate())

	intMetric := &Metric{Target: 5, Current: 7}
	assert.True(t, intMetric.Evaluate())
	intMetric.Current = 3
	assert.False(t, intMetric.Evaluate())

	stringMetric := &Metric{Target: "passed", Current: "3 tests passed"}
	assert.True(t, stringMetric.Evaluate())

	exactMetric := &Metric{Target: "pending", Current: "pending"}
	assert.True(t, exactMetric.Evaluate())
}

func TestGoalEvaluateAggregatesMetrics(t *testing.T) {
	g := NewGoal("demo", 0)
	assert.Equal(t, GoalPending, g.Evaluate())

	g.AddMetric(&Metric{Target: true, Current: true})
	g.AddMetric(&Metric{Target: true, Current: true})
	assert.Equal(t, GoalAchieved, g.Evaluate())

	g2 := NewGoal("demo2", 0)
	g2.AddMetric(&Metric{Target: true, Current: false})
	g2.AddMetric(&Metric{Target: true, Current: true})
	assert.Equal(t, GoalPartiallyAchieved, g2.Evaluate())

	g3 := NewGoal("demo3", 0)
	g3.AddMetric(&Metric{Target: true, Current: false})
	assert.Equal(t, GoalFailed, g3.Evaluate())
}

func TestDeriveGoalsFromRequestAlwaysIncludesCompletion(t *testing.T) {
	goals := DeriveGoalsFromRequest("just look around", []ActionType{ActionRead})
	assert.Len(t, goals, 1)
	assert.Equal(t, "Complete all tasks successfully", goals[0].Description)
}

func TestDeriveGoalsFromRequestAddsTestGoalForMutatingActions(t *testing.T) {
	goals := DeriveGoalsFromRequest("add a feature", []ActionType{ActionAdd})
	found := false
	for _, g := range goals {
		if g.Description == "Tests pass after changes" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDeriveGoalsFromRequestAddsDomainGoalsFromKeywords(t *testing.T) {
	goals := DeriveGoalsFromRequest("fix the auth vulnerability and the sql migration", []ActionType{ActionFix})
	var descriptions []string
	for _, g := range goals {
		descriptions = append(descriptions, g.Description)
	}
	assert.Contains(t, descriptions, "No new security issues introduced")
	assert.Contains(t, descriptions, "Database changes are consistent")
}
