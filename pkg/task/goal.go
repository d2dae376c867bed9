package task

import (
	"fmt"
	"strings"
)

// GoalStatus mirrors a Goal's evaluation outcome.
type GoalStatus string

const (
	GoalPending           GoalStatus = "PENDING"
	GoalInProgress        GoalStatus = "IN_PROGRESS"
	GoalAchieved          GoalStatus = "ACHIEVED"
	GoalFailed            GoalStatus = "FAILED"
	GoalPartiallyAchieved GoalStatus = "PARTIALLY_ACHIEVED"
)

// Metric is a single measurable condition contributing to a Goal. Target's
// dynamic type selects the evaluation rule: bool -> equality, int/float ->
// threshold (current >= target), string -> substring match, anything else
// -> exact equality.
type Metric struct {
	Name    string
	Target  any
	Current any
	Passed  bool
	Details string
}

// Evaluate sets Passed and Details according to Target's type and returns
// the pass/fail result.
func (m *Metric) Evaluate() bool {
	switch target := m.Target.(type) {
	case bool:
		current, _ := m.Current.(bool)
		m.Passed = current == target
	case int:
		m.Passed = numericPass(m.Current, float64(target))
	case float64:
		m.Passed = numericPass(m.Current, target)
	case string:
		current, ok := m.Current.(string)
		m.Passed = ok && strings.Contains(strings.ToLower(current), strings.ToLower(target))
	default:
		m.Passed = m.Current == m.Target
	}
	if m.Passed {
		m.Details = "passed"
	} else {
		m.Details = "not met"
	}
	return m.Passed
}

func numericPass(current any, target float64) bool {
	var c float64
	switch v := current.(type) {
	case int:
		c = float64(v)
	case float64:
		c = v
	default:
		return false
	}
	return c >= target
}

// Goal groups Metrics under a description; it is ACHIEVED when all metrics
// pass, FAILED when none pass, and PARTIALLY_ACHIEVED otherwise.
type Goal struct {
	Description string
	Metrics     []*Metric
	Status      GoalStatus
	Priority    int
	Notes       []string
}

// NewGoal builds a pending Goal.
func NewGoal(description string, priority int) *Goal {
	return &Goal{Description: description, Status: GoalPending, Priority: priority}
}

// AddMetric appends a metric to the goal.
func (g *Goal) AddMetric(m *Metric) {
	g.Metrics = append(g.Metrics, m)
}

// Evaluate evaluates every metric and derives the goal's overall status.
func (g *Goal) Evaluate() GoalStatus {
	if len(g.Metrics) == 0 {
		g.Status = GoalPending
		return g.Status
	}
	passed := 0
	for _, m := range g.Metrics {
		if m.Evaluate() {
			passed++
		}
	}
	switch {
	case passed == len(g.Metrics):
		g.Status = GoalAchieved
	case passed == 0:
		g.Status = GoalFailed
	default:
		g.Status = GoalPartiallyAchieved
	}
	return g.Status
}

// Summary returns a short human-readable pass/total summary.
func (g *Goal) Summary() string {
	passed := 0
	for _, m := range g.Metrics {
		if m.Passed {
			passed++
		}
	}
	return fmt.Sprintf("%s (%d/%d metrics passed)", g.Description, passed, len(g.Metrics))
}

// DeriveGoalsFromRequest builds the default goal set for a request, mirroring
// derive_goals_from_request: a completion goal is always present; a test
// goal is added when any task type is mutating; security/database/
// performance goals are added when the request text hints at them.
func DeriveGoalsFromRequest(userRequest string, taskTypes []ActionType) []*Goal {
	goals := []*Goal{NewGoal("Complete all tasks successfully", 0)}
	goals[0].AddMetric(&Metric{Name: "all_tasks_completed", Target: true})

	hasMutating := false
	for _, t := range taskTypes {
		if MutatingActions[t] || t == ActionAdd || t == ActionEdit {
			hasMutating = true
			break
		}
	}
	if hasMutating {
		g := NewGoal("Tests pass after changes", 1)
		g.AddMetric(&Metric{Name: "tests_passing", Target: true})
		goals = append(goals, g)
	}

	lower := strings.ToLower(userRequest)
	if containsAny(lower, "security", "auth", "vulnerab", "cve", "injection") {
		g := NewGoal("No new security issues introduced", 1)
		g.AddMetric(&Metric{Name: "security_clean", Target: true})
		goals = append(goals, g)
	}
	if containsAny(lower, "database", "migration", "schema", "sql") {
		g := NewGoal("Database changes are consistent", 1)
		g.AddMetric(&Metric{Name: "schema_consistent", Target: true})
		goals = append(goals, g)
	}
	if containsAny(lower, "performance", "latency", "throughput", "optimi") {
		g := NewGoal("No performance regression", 1)
		g.AddMetric(&Metric{Name: "performance_acceptable", Target: true})
		goals = append(goals, g)
	}
	return goals
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
