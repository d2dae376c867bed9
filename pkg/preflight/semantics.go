// Package preflight runs the two checks the orchestrator performs before
// dispatching a task: action-semantics coercion and path correction.
package preflight

import (
	"regexp"
	"strings"

	"github.com/ilkoid/revorc/pkg/task"
)

var (
	readIntentRe = regexp.MustCompile(
		`(?i)\b(read|inspect|review|analyze|analysis|understand|locate|find|search|inventory|identify|list|show|explain)\b`)
	writeIntentRe = regexp.MustCompile(
		`(?i)\b(edit|update|modify|change|refactor|remove|delete|rename|create|add|write|generate|apply)\b` +
			`|split_python_module_classes|replace_in_file|write_file|apply_patch|append_to_file|create_directory`)
)

var mutateActions = map[task.ActionType]bool{
	task.ActionEdit: true, task.ActionAdd: true, task.ActionCreateDirectory: true,
	task.ActionRefactor: true, task.ActionDelete: true, task.ActionRename: true, task.ActionFix: true,
}

var readActions = map[task.ActionType]bool{
	task.ActionRead: true, task.ActionAnalyze: true, task.ActionReview: true, task.ActionResearch: true,
}

var installCommandRe = regexp.MustCompile(`(?i)\b(npm|pip|yum|choco|apt-get)\s+install\b`)

// CheckActionSemantics coerces an overloaded mutating action to "read" when
// the description shows inspection-only intent, and rejects a read-labeled
// action whose description shows mutation intent without read intent.
// Returns (ok, messages).
func CheckActionSemantics(t *task.Task) (bool, []string) {
	action := t.Action
	desc := strings.TrimSpace(t.Description)
	if action == "" || desc == "" {
		return true, nil
	}

	// Install-command descriptions belong to an execution-runner agent, not
	// whatever action the planner originally tagged them with.
	if installCommandRe.MatchString(desc) {
		if action != task.ActionTest {
			t.Action = task.ActionTest
			return true, []string{"coerced install-command task -> 'test'"}
		}
		return true, nil
	}

	readIntent := readIntentRe.MatchString(desc)
	writeIntent := writeIntentRe.MatchString(desc)

	var messages []string

	if mutateActions[action] && readIntent && !writeIntent {
		messages = append(messages, "coerced action '"+string(action)+"' -> 'read' (inspection-only task)")
		t.Action = task.ActionRead
		return true, messages
	}

	if readActions[action] && writeIntent && !readIntent {
		messages = append(messages, "action '"+string(action)+"' conflicts with write intent; choose edit/refactor instead")
		return false, messages
	}

	return true, messages
}

// Signature builds the repeated-preflight-failure signature for this check,
// namespaced so it never collides with the path-check signature space.
func Signature(t *task.Task, messages []string) string {
	first := ""
	if len(messages) > 0 {
		first = messages[0]
	}
	return "action_semantics::" + string(t.Action) + "::" + first
}
