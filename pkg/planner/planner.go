// Package planner turns a user request into an executable Plan: it
// post-processes model-proposed tasks with deterministic safety nets
// (broad-task breakdown, test/doc coverage, task-count capping) that do not
// depend on the model behaving well.
package planner

import (
	"strings"

	"github.com/ilkoid/revorc/pkg/task"
)

// ProposedTask is what a model (or any task proposer) returns before
// deterministic post-processing normalizes it.
type ProposedTask struct {
	Description string
	ActionType  string
	Complexity  string // "low", "medium", "high"
}

// Proposer is the out-of-scope collaborator that turns a prompt into
// proposed tasks. The orchestrator core only depends on this interface;
// no concrete LLM-backed implementation ships in this package.
type Proposer interface {
	Propose(requestOrPrompt string) ([]ProposedTask, error)
}

// MaxRecursiveDepth bounds recursive breakdown of overly broad tasks.
const MaxRecursiveDepth = 2

// broadIndicators are substrings whose presence marks a task description as
// likely too broad to execute atomically.
var broadIndicators = []string{
	"many ", "multiple ", "several ", "various ", "all ",
	"implement", "build", "create system", "add features", "framework", "integrate", "migration",
	"analyze", "review all", "audit",
	"goal is to", "should be",
}

var broadActionWords = []string{"add", "implement", "create", "update", "modify", "review", "test", "integrate"}

// IsOverlyBroad reports whether a task description looks like a multi-step
// request that should be broken down before execution.
func IsOverlyBroad(description string) bool {
	lower := strings.ToLower(description)

	hasBroadIndicator := false
	for _, ind := range broadIndicators {
		if strings.Contains(lower, ind) {
			hasBroadIndicator = true
			break
		}
	}

	isLong := len(description) > 200

	actionCount := 0
	for _, w := range broadActionWords {
		if strings.Contains(lower, w) {
			actionCount++
		}
	}

	return hasBroadIndicator || isLong || actionCount >= 2
}

// Breakdown recursively splits an overly-broad proposed task using
// proposer, bounded by MaxRecursiveDepth. If proposer is nil or proposes
// nothing useful, the original task is returned unchanged at medium
// complexity.
func Breakdown(p ProposedTask, proposer Proposer, depth int) []ProposedTask {
	if depth >= MaxRecursiveDepth || proposer == nil {
		p.Complexity = "medium"
		return []ProposedTask{p}
	}
	sub, err := proposer.Propose(p.Description)
	if err != nil || len(sub) == 0 {
		p.Complexity = "medium"
		return []ProposedTask{p}
	}
	var out []ProposedTask
	for _, s := range sub {
		if IsOverlyBroad(s.Description) {
			out = append(out, Breakdown(s, proposer, depth+1)...)
		} else {
			out = append(out, s)
		}
	}
	return out
}

// Build converts proposed tasks into Plan tasks, applying recursive
// breakdown to any that are overly broad.
func Build(proposals []ProposedTask, proposer Proposer) *task.Plan {
	plan := task.NewPlan()
	for _, p := range proposals {
		items := []ProposedTask{p}
		if IsOverlyBroad(p.Description) {
			items = Breakdown(p, proposer, 0)
		}
		for _, it := range items {
			t := task.NewTask(it.Description, task.NormalizeActionType(it.ActionType))
			plan.AddTask(t)
		}
	}
	EnsureTestAndDocCoverage(plan)
	ExtractValidationSteps(plan)
	CoerceActionability(plan)
	return plan
}

// EnsureTestAndDocCoverage is a deterministic safety net guaranteeing code
// changes are accompanied by a test task (always) and a doc task (when more
// than two mutating tasks are present).
func EnsureTestAndDocCoverage(plan *task.Plan) {
	hasCodeChange := false
	hasTestTask := false
	hasDocTask := false
	mutatingCount := 0
	for _, t := range plan.Tasks {
		if t.Action == task.ActionEdit || t.Action == task.ActionAdd {
			hasCodeChange = true
			mutatingCount++
		}
		if t.Action == task.ActionTest {
			hasTestTask = true
		}
		if t.Action == "doc" {
			hasDocTask = true
		}
	}
	if hasCodeChange && !hasTestTask {
		plan.AddTask(task.NewTask("Run automated tests relevant to the recent code changes", task.ActionTest))
	}
	if hasCodeChange && !hasDocTask && mutatingCount > 2 {
		plan.AddTask(task.NewTask("Update documentation to reflect code changes", "doc"))
	}
}

// lowValueActions are the action types preferred for trimming when a plan
// must be capped.
var lowValueActions = map[task.ActionType]bool{
	"doc": true, task.ActionTest: true, task.ActionReview: true, task.ActionGeneral: true,
}

var lintKeywords = []string{"lint", "ruff", "flake8", "format", "black", "isort", "mypy", "type check", "vet", "golangci"}
var testKeywords = []string{"pytest", "test", "unit test", "integration test", "coverage"}

// CapTasks enforces maxTasks by merging redundant lint/test tasks into one
// of each and then trimming low-value tasks from the tail, preserving
// order. Returns the original task count before capping.
func CapTasks(plan *task.Plan, maxTasks int) int {
	original := len(plan.Tasks)
	if maxTasks <= 0 || original <= maxTasks {
		return original
	}

	var mergedLint, mergedTest bool
	var kept []*task.Task
	for _, t := range plan.Tasks {
		text := strings.ToLower(t.Description)
		if containsAny(text, lintKeywords...) {
			mergedLint = true
			continue
		}
		if containsAny(text, testKeywords...) {
			mergedTest = true
			continue
		}
		kept = append(kept, t)
	}

	protected := map[*task.Task]bool{}
	if mergedLint {
		lintTask := task.NewTask("Run lint/format/type checks and address findings", task.ActionTest)
		protected[lintTask] = true
		kept = append(kept, lintTask)
	}
	if mergedTest {
		testTask := task.NewTask("Run automated tests and resolve failures", task.ActionTest)
		protected[testTask] = true
		kept = append(kept, testTask)
	}

	for len(kept) > maxTasks {
		removed := false
		for i := len(kept) - 1; i >= 0; i-- {
			t := kept[i]
			if protected[t] {
				continue
			}
			if lowValueActions[t.Action] {
				kept = append(kept[:i], kept[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			kept = kept[:len(kept)-1]
		}
	}

	plan.Tasks = kept
	return original
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
