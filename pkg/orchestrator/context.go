package orchestrator

import (
	"time"

	"github.com/ilkoid/revorc/pkg/budget"
	"github.com/ilkoid/revorc/pkg/task"
	"github.com/ilkoid/revorc/pkg/verifier"
)

// AgentRequestKind is the closed set of structured messages a sub-agent can
// send back to the loop, replacing exception-based control flow.
type AgentRequestKind string

const (
	RequestReplan             AgentRequestKind = "REPLAN_REQUEST"
	RequestResearchExhausted  AgentRequestKind = "RESEARCH_BUDGET_EXHAUSTED"
	RequestRedundantFileRead  AgentRequestKind = "REDUNDANT_FILE_READ"
)

// AgentRequest is one structured message appended to the Context's pending
// request queue.
type AgentRequest struct {
	Kind   AgentRequestKind
	Reason string
	Path   string // populated for RequestRedundantFileRead
}

// WorkEvent is one line of the work-history log the grounding check and
// anti-thrash heuristics scan.
type WorkEvent struct {
	Action      task.ActionType
	Description string
	IsRead      bool
	IsWrite     bool
	Passed      bool
	Timestamp   time.Time
}

// Context is the single mutable object the loop, executor, and verifier
// share for the duration of one request.
type Context struct {
	Request     string
	WorkspaceRoot string
	ReadOnly    bool

	Plan   *task.Plan
	Budget *budget.Resource

	// Runner, ValidationMode, and TDDEnabled configure S3/S4 verification;
	// the caller (cmd/revctl) wires these in after NewContext. A nil Runner
	// disables S3 command execution; ValidationMode defaults to
	// verifier.ValidationFast when unset.
	Runner         verifier.CommandRunner
	ValidationMode verifier.ValidationMode
	TDDEnabled     bool

	AgentState    map[string]any
	WorkHistory   []WorkEvent
	AgentRequests []AgentRequest

	fileReadCounts map[string]int
}

// NewContext builds a Context for one request.
func NewContext(request, workspaceRoot string, readOnly bool, res *budget.Resource) *Context {
	return &Context{
		Request:        request,
		WorkspaceRoot:  workspaceRoot,
		ReadOnly:       readOnly,
		Plan:           task.NewPlan(),
		Budget:         res,
		AgentState:     map[string]any{},
		fileReadCounts: map[string]int{},
	}
}

// RecordWork timestamps a WorkEvent and appends it to the work history.
func (c *Context) RecordWork(ev WorkEvent) {
	ev.Timestamp = time.Now()
	c.WorkHistory = append(c.WorkHistory, ev)
}

// SetAgentState sets a key in the ephemeral agent_state map.
func (c *Context) SetAgentState(key string, value any) {
	c.AgentState[key] = value
}

// GetAgentState reads a key from the ephemeral agent_state map.
func (c *Context) GetAgentState(key string) (any, bool) {
	v, ok := c.AgentState[key]
	return v, ok
}

// EnqueueAgentRequest appends a structured agent request.
func (c *Context) EnqueueAgentRequest(r AgentRequest) {
	c.AgentRequests = append(c.AgentRequests, r)
}

// DrainAgentRequests returns and clears pending agent requests.
func (c *Context) DrainAgentRequests() []AgentRequest {
	reqs := c.AgentRequests
	c.AgentRequests = nil
	return reqs
}

// RecordFileRead increments and returns the read count for path, used by
// the redundant-read guard (refuse at >=5).
func (c *Context) RecordFileRead(path string) int {
	c.fileReadCounts[path]++
	return c.fileReadCounts[path]
}

// MaxRedundantReads is the threshold at which a repeated read of the same
// file is refused and reported as a REDUNDANT_FILE_READ agent request.
const MaxRedundantReads = 5

// HasConcreteAction reports whether any work event represents a concrete
// mutating action (edit/write/refactor/create), per the completion
// grounding rule.
func (c *Context) HasConcreteAction() bool {
	for _, ev := range c.WorkHistory {
		if ev.IsWrite {
			return true
		}
	}
	return false
}

// HasResearchEvent reports whether any work event represents a
// research/search/read action, per the completion grounding rule.
func (c *Context) HasResearchEvent() bool {
	for _, ev := range c.WorkHistory {
		if ev.IsRead {
			return true
		}
	}
	return false
}

// IsGrounded reports whether completion grounding's two conditions both
// hold.
func (c *Context) IsGrounded() bool {
	return c.HasConcreteAction() && c.HasResearchEvent()
}
