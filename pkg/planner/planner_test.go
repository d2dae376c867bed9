package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ilkoid/revorc/pkg/task"
)

func TestIsOverlyBroadDetectsIndicatorsLengthAndActionCount(t *testing.T) {
	assert.True(t, IsOverlyBroad("implement a new authentication framework"))
	assert.True(t, IsOverlyBroad("add a helper and also update the caller"))
	assert.False(t, IsOverlyBroad("fix the off-by-one in parse.go"))
}

type stubProposer struct {
	byPrompt map[string][]ProposedTask
	err      error
}

func (p stubProposer) Propose(prompt string) ([]ProposedTask, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.byPrompt[prompt], nil
}

func TestBreakdownReturnsOriginalWhenProposerNil(t *testing.T) {
	p := ProposedTask{Description: "implement a big framework"}
	out := Breakdown(p, nil, 0)
	assert.Len(t, out, 1)
	assert.Equal(t, "medium", out[0].Complexity)
}

func TestBreakdownReturnsOriginalWhenProposerErrors(t *testing.T) {
	p := ProposedTask{Description: "implement a big framework"}
	out := Breakdown(p, stubProposer{err: fmt.Errorf("boom")}, 0)
	assert.Len(t, out, 1)
}

func TestBreakdownRecursesIntoSubtasksUntilDepthCap(t *testing.T) {
	top := ProposedTask{Description: "implement the whole system"}
	proposer := stubProposer{byPrompt: map[string][]ProposedTask{
		"implement the whole system": {
			{Description: "implement subsystem A"},
			{Description: "edit config.go"},
		},
		"implement subsystem A": {
			{Description: "edit subsystem_a.go"},
		},
	}}

	out := Breakdown(top, proposer, 0)

	var descs []string
	for _, o := range out {
		descs = append(descs, o.Description)
	}
	assert.Contains(t, descs, "edit config.go")
	assert.Contains(t, descs, "edit subsystem_a.go")
}

func TestBuildAppliesBreakdownAndSafetyNets(t *testing.T) {
	proposals := []ProposedTask{
		{Description: "edit parser.go to fix a bug", ActionType: "edit"},
	}
	plan := Build(proposals, nil)

	var hasTest bool
	for _, tk := range plan.Tasks {
		if tk.Action == task.ActionTest {
			hasTest = true
		}
	}
	assert.True(t, hasTest, "a code-change plan must always get a test task")
}

func TestEnsureTestAndDocCoverageAddsDocTaskOnlyWhenManyMutations(t *testing.T) {
	plan := task.NewPlan()
	plan.AddTask(task.NewTask("edit a.go", task.ActionEdit))
	plan.AddTask(task.NewTask("edit b.go", task.ActionEdit))
	plan.AddTask(task.NewTask("edit c.go", task.ActionEdit))

	EnsureTestAndDocCoverage(plan)

	var hasTest, hasDoc bool
	for _, tk := range plan.Tasks {
		if tk.Action == task.ActionTest {
			hasTest = true
		}
		if tk.Action == task.ActionType("doc") {
			hasDoc = true
		}
	}
	assert.True(t, hasTest)
	assert.True(t, hasDoc)
}

func TestEnsureTestAndDocCoverageSkipsWhenNoCodeChange(t *testing.T) {
	plan := task.NewPlan()
	plan.AddTask(task.NewTask("investigate the architecture", task.ActionResearch))

	EnsureTestAndDocCoverage(plan)

	assert.Len(t, plan.Tasks, 1)
}

func TestExtractValidationStepsPullsHintsOutOfDescription(t *testing.T) {
	plan := task.NewPlan()
	tk := task.NewTask("edit parser.go\nValidation: go test ./...", task.ActionEdit)
	plan.AddTask(tk)

	ExtractValidationSteps(plan)

	assert.Equal(t, []string{"go test ./..."}, tk.ValidationSteps)
	assert.NotContains(t, tk.Description, "Validation:")
}

func TestExtractValidationStepsSkipsTestTasks(t *testing.T) {
	plan := task.NewPlan()
	tk := task.NewTask("Validation: go test ./...", task.ActionTest)
	plan.AddTask(tk)

	ExtractValidationSteps(plan)

	assert.Empty(t, tk.ValidationSteps)
}

func TestCoerceActionabilityAddsListDirHintToBareReviewTask(t *testing.T) {
	plan := task.NewPlan()
	tk := task.NewTask("review the authentication logic", task.ActionReview)
	plan.AddTask(tk)

	CoerceActionability(plan)

	assert.Contains(t, tk.Description, "using list_dir on")
}

func TestCoerceActionabilityDemotesPathlessEditToReview(t *testing.T) {
	plan := task.NewPlan()
	tk := task.NewTask("edit the thing we discussed", task.ActionEdit)
	plan.AddTask(tk)

	CoerceActionability(plan)

	assert.Equal(t, task.ActionReview, tk.Action)
	assert.Contains(t, tk.Description, "search for the target of")
}

func TestCoerceActionabilityLeavesEditWithPathAlone(t *testing.T) {
	plan := task.NewPlan()
	tk := task.NewTask("edit parser.go to fix the bug", task.ActionEdit)
	plan.AddTask(tk)

	CoerceActionability(plan)

	assert.Equal(t, task.ActionEdit, tk.Action)
}

func TestCapTasksMergesLintAndTestTasksAndTrimsLowValue(t *testing.T) {
	plan := task.NewPlan()
	plan.AddTask(task.NewTask("edit a.go", task.ActionEdit))
	plan.AddTask(task.NewTask("edit b.go", task.ActionEdit))
	plan.AddTask(task.NewTask("run pytest -q", task.ActionTest))
	plan.AddTask(task.NewTask("run ruff lint", task.ActionTest))
	plan.AddTask(task.NewTask("review the diff", task.ActionReview))

	original := CapTasks(plan, 3)

	assert.Equal(t, 5, original)
	assert.LessOrEqual(t, len(plan.Tasks), 3)
}

func TestCapTasksNoopWhenUnderLimit(t *testing.T) {
	plan := task.NewPlan()
	plan.AddTask(task.NewTask("edit a.go", task.ActionEdit))

	original := CapTasks(plan, 5)

	assert.Equal(t, 1, original)
	assert.Len(t, plan.Tasks, 1)
}
