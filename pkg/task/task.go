// Package task defines the Task and Plan data model: the five-state task
// state machine, tool events, risk derivation, and the Goal/Metric
// evaluation used to judge whether a plan's objective was met.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a Task's position in its state machine. COMPLETED is the only
// terminal status; FAILED is recoverable by a retry back to IN_PROGRESS and
// STOPPED by a resume back to PENDING.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusStopped    Status = "STOPPED"
)

// legalTransitions enumerates exactly the allowed status transitions:
// PENDING→IN_PROGRESS, PENDING→STOPPED, IN_PROGRESS→{COMPLETED, FAILED,
// STOPPED}, FAILED→IN_PROGRESS (retry), STOPPED→PENDING (resume).
var legalTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true, StatusStopped: true},
	StatusInProgress: {StatusCompleted: true, StatusFailed: true, StatusStopped: true},
	StatusCompleted:  {},
	StatusFailed:     {StatusInProgress: true},
	StatusStopped:    {StatusPending: true},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	next, ok := legalTransitions[from]
	return ok && next[to]
}

// ActionType is the closed set of action kinds a Task may carry. Unknown
// model output normalizes to ActionGeneral.
type ActionType string

const (
	ActionRead            ActionType = "read"
	ActionAnalyze         ActionType = "analyze"
	ActionReview          ActionType = "review"
	ActionResearch        ActionType = "research"
	ActionCreateDirectory ActionType = "create_directory"
	ActionAdd             ActionType = "add"
	ActionEdit            ActionType = "edit"
	ActionRefactor        ActionType = "refactor"
	ActionDelete          ActionType = "delete"
	ActionRename          ActionType = "rename"
	ActionFix             ActionType = "fix"
	ActionTest            ActionType = "test"
	ActionCreateTool      ActionType = "create_tool"
	ActionTool            ActionType = "tool"
	ActionGeneral         ActionType = "general"
)

// actionPriority orders action dispatch with a read-first bias, grounded on
// the original orchestrator's _order_available_actions bucket table.
var actionPriority = map[ActionType]int{
	ActionRead:            0,
	ActionAnalyze:         1,
	ActionReview:          2,
	ActionResearch:        3,
	ActionCreateDirectory: 10,
	ActionAdd:             11,
	ActionEdit:            12,
	ActionRefactor:        13,
	ActionDelete:          14,
	ActionRename:          15,
	ActionFix:             16,
	ActionTest:            30,
	ActionCreateTool:      40,
	ActionTool:            41,
	ActionGeneral:         90,
}

// Priority returns the dispatch-ordering bucket for an action type.
func (a ActionType) Priority() int {
	if p, ok := actionPriority[a]; ok {
		return p
	}
	return actionPriority[ActionGeneral]
}

// MutatingActions is the set of action types that must leave at least one
// successful tool event behind to be considered legitimately COMPLETED.
var MutatingActions = map[ActionType]bool{
	ActionAdd: true, ActionEdit: true, ActionRefactor: true, ActionCreateDirectory: true,
	ActionDelete: true, ActionRename: true, ActionFix: true,
}

// VerifiableActions is the set of action types the Verifier inspects after
// completion; all others pass through unverified.
var VerifiableActions = map[ActionType]bool{
	ActionRefactor: true, ActionAdd: true, ActionCreateTool: true, ActionEdit: true,
	ActionCreateDirectory: true, ActionTest: true,
}

// NormalizeActionType maps free-form model output to the closed ActionType
// set, defaulting to ActionGeneral.
func NormalizeActionType(raw string) ActionType {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	switch ActionType(norm) {
	case ActionRead, ActionAnalyze, ActionReview, ActionResearch, ActionCreateDirectory,
		ActionAdd, ActionEdit, ActionRefactor, ActionDelete, ActionRename, ActionFix,
		ActionTest, ActionCreateTool, ActionTool, ActionGeneral:
		return ActionType(norm)
	case "create", "write", "new_file":
		return ActionAdd
	case "modify", "update":
		return ActionEdit
	case "remove":
		return ActionDelete
	case "mkdir", "make_directory":
		return ActionCreateDirectory
	case "investigate":
		return ActionResearch
	default:
		return ActionGeneral
	}
}

// RiskLevel is a coarse estimate of how much damage a task could do if
// misapplied, derived from its action type.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DeriveRisk assigns a RiskLevel from an action type: read-only actions are
// low risk, single-file mutations medium, structural/destructive actions
// high, and delete-at-scale or rename-at-scale critical (the caller supplies
// scope via affectedFiles).
func DeriveRisk(action ActionType, affectedFiles int) RiskLevel {
	switch action {
	case ActionRead, ActionAnalyze, ActionReview, ActionResearch:
		return RiskLow
	case ActionAdd, ActionEdit, ActionTest, ActionCreateDirectory, ActionCreateTool, ActionTool:
		return RiskMedium
	case ActionDelete, ActionRename:
		if affectedFiles > 5 {
			return RiskCritical
		}
		return RiskHigh
	case ActionRefactor, ActionFix:
		if affectedFiles > 10 {
			return RiskCritical
		}
		return RiskHigh
	default:
		return RiskMedium
	}
}

// ToolEvent records one tool invocation made while executing a Task.
type ToolEvent struct {
	ToolName    string
	Args        map[string]any
	Result      map[string]any
	Err         error
	ArtifactRef string
	Timestamp   time.Time
}

// IsNoop reports whether this event represents a no-op signature: a
// successful call whose result explicitly marks nothing changed.
func (e ToolEvent) IsNoop() bool {
	if e.Result == nil {
		return false
	}
	if skipped, ok := e.Result["skipped"].(bool); ok && skipped {
		return true
	}
	if changed, ok := e.Result["changed"].(bool); ok && !changed {
		return true
	}
	return false
}

// IsMutating reports whether the named tool is understood to change
// workspace state (as opposed to reads like list_dir/read_file/search).
func (e ToolEvent) IsMutating() bool {
	switch e.ToolName {
	case "read_file", "list_dir", "search_code", "search", "grep", "analyze":
		return false
	default:
		return e.Err == nil
	}
}

// Task is a single unit of work within a Plan.
type Task struct {
	ID             string
	Description    string
	Action         ActionType
	Status         Status
	Risk           RiskLevel
	ValidationSteps []string
	RollbackPlan    string
	ToolEvents      []ToolEvent
	Transitions     []Status
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Metadata        map[string]any
}

// NewTask builds a PENDING task with a freshly generated ID.
func NewTask(description string, action ActionType) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Action:      action,
		Status:      StatusPending,
		Risk:        DeriveRisk(action, 1),
		Transitions: []Status{StatusPending},
		CreatedAt:   time.Now(),
		Metadata:    map[string]any{},
	}
}

// Transition moves the task to newStatus, enforcing the legal-transition
// table. COMPLETED is the only terminal status; FAILED may retry to
// IN_PROGRESS and STOPPED may resume back to PENDING.
func (t *Task) Transition(newStatus Status) error {
	if !CanTransition(t.Status, newStatus) {
		return fmt.Errorf("illegal task transition %s -> %s for task %s", t.Status, newStatus, t.ID)
	}
	t.Status = newStatus
	t.Transitions = append(t.Transitions, newStatus)
	if newStatus == StatusCompleted || newStatus == StatusFailed || newStatus == StatusStopped {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// RecordToolEvent appends a tool event to the task's history.
func (t *Task) RecordToolEvent(ev ToolEvent) {
	t.ToolEvents = append(t.ToolEvents, ev)
}

// LastToolEvent returns the most recent tool event, or nil if none.
func (t *Task) LastToolEvent() *ToolEvent {
	if len(t.ToolEvents) == 0 {
		return nil
	}
	return &t.ToolEvents[len(t.ToolEvents)-1]
}

// ExecutedOnlyReads reports whether every recorded tool event was read-only,
// which is illegal for a task whose action type is in MutatingActions.
func (t *Task) ExecutedOnlyReads() bool {
	if len(t.ToolEvents) == 0 {
		return true
	}
	for _, ev := range t.ToolEvents {
		if ev.IsMutating() && !ev.IsNoop() {
			return false
		}
	}
	return true
}

// Plan is an ordered collection of tasks plus the Goals it aims to satisfy.
type Plan struct {
	ID    string
	Tasks []*Task
	Goals []*Goal
}

// NewPlan builds an empty plan with a fresh ID.
func NewPlan() *Plan {
	return &Plan{ID: uuid.NewString()}
}

// AddTask appends a task in priority order is NOT done here; ordering is the
// Planner's responsibility (see pkg/planner).
func (p *Plan) AddTask(t *Task) {
	p.Tasks = append(p.Tasks, t)
}

// Pending returns the first task still in PENDING status, or nil if none
// remain.
func (p *Plan) Pending() *Task {
	for _, t := range p.Tasks {
		if t.Status == StatusPending {
			return t
		}
	}
	return nil
}

// AllTerminal reports whether every task has settled in COMPLETED, FAILED,
// or STOPPED, i.e. none is PENDING or IN_PROGRESS. Only COMPLETED is
// terminal in the state machine; FAILED and STOPPED tasks may still recover.
func (p *Plan) AllTerminal() bool {
	for _, t := range p.Tasks {
		if t.Status != StatusCompleted && t.Status != StatusFailed && t.Status != StatusStopped {
			return false
		}
	}
	return true
}

// Counts returns (completed, failed, stopped, pendingOrInProgress).
func (p *Plan) Counts() (completed, failed, stopped, open int) {
	for _, t := range p.Tasks {
		switch t.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusStopped:
			stopped++
		default:
			open++
		}
	}
	return
}
