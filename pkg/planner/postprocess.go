package planner

import (
	"regexp"
	"strings"

	"github.com/ilkoid/revorc/pkg/task"
)

// validationHintRe matches an inline "Validation: <command>" hint embedded
// in a task description, one command per line.
var validationHintRe = regexp.MustCompile(`(?i)validation:\s*(.+)`)

// ExtractValidationSteps pulls inline "Validation: <cmd>" hints out of every
// non-test task's description into a typed ValidationSteps list, and strips
// them from the description text. Tasks whose action is already `test` are
// left untouched (they are the validation).
func ExtractValidationSteps(plan *task.Plan) {
	for _, t := range plan.Tasks {
		if t.Action == task.ActionTest {
			continue
		}
		matches := validationHintRe.FindAllStringSubmatch(t.Description, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			step := strings.TrimSpace(m[1])
			if step != "" {
				t.ValidationSteps = append(t.ValidationSteps, step)
			}
		}
		t.Description = strings.TrimSpace(validationHintRe.ReplaceAllString(t.Description, ""))
	}
}

var toolHintRe = regexp.MustCompile(`(?i)\b(using|with|via)\s+\w+`)
var pathHintRe = regexp.MustCompile(`[A-Za-z0-9_./\\-]+\.[A-Za-z0-9]+`)

// CoerceActionability rewrites tasks that cannot be executed as stated: a
// review task with no named tool becomes a list_dir-based review, and an
// edit task naming no path becomes a review/search task instead.
func CoerceActionability(plan *task.Plan) {
	for _, t := range plan.Tasks {
		switch t.Action {
		case task.ActionReview:
			if !toolHintRe.MatchString(t.Description) {
				target := firstPathOrRoot(t.Description)
				t.Description = strings.TrimSpace(t.Description) + " using list_dir on " + target
			}
		case task.ActionEdit:
			if !pathHintRe.MatchString(t.Description) {
				t.Action = task.ActionReview
				t.Description = "search for the target of: " + t.Description
			}
		}
	}
}

func firstPathOrRoot(desc string) string {
	if m := pathHintRe.FindString(desc); m != "" {
		return m
	}
	return "."
}
