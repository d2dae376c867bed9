// Package executor dispatches a PENDING task to the agent responsible for
// its action kind, normalizing sentinel and tool-call-shaped replies into
// structured tool events.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ilkoid/revorc/pkg/task"
	"github.com/ilkoid/revorc/pkg/toolkit"
)

// Sentinel prefixes a sub-agent may return instead of structured output.
const (
	SentinelRecoveryRequested = "[RECOVERY_REQUESTED]"
	SentinelFinalFailure      = "[FINAL_FAILURE]"
	SentinelUserRejected      = "[USER_REJECTED]"
)

// Outcome is the dispatch result for one task.
type Outcome struct {
	NewStatus   task.Status
	Message     string
	NeedsReroute bool
	Fatal        bool
}

// Agent is the out-of-scope collaborator that actually performs a task's
// action (an LLM-backed sub-agent, or a deterministic tool wrapper for
// tests). It returns either a structured payload (via ToolCalls) or raw
// text, which may itself be a tool-call-shaped string to be tolerantly
// recovered.
type Agent interface {
	Act(ctx context.Context, t *task.Task, contextSnapshot string) (AgentReply, error)
}

// AgentReply is what an Agent hands back.
type AgentReply struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation the agent made (or, after tolerant
// recovery, one we inferred it meant to make).
type ToolCall struct {
	Name    string
	Args    string // raw JSON
	Result  string
	Err     error
}

// AgentTable maps an action kind to the agent responsible for it.
type AgentTable map[task.ActionType]Agent

// Executor dispatches tasks to agents and records their tool evidence.
type Executor struct {
	agents     AgentTable
	dispatcher *toolkit.Dispatcher
	// allowedTools restricts tolerant tool-call recovery to a known set per
	// action kind; nil means "allow any registered tool".
	allowedTools map[task.ActionType]map[string]bool
}

// New builds an Executor.
func New(agents AgentTable, dispatcher *toolkit.Dispatcher) *Executor {
	return &Executor{agents: agents, dispatcher: dispatcher}
}

// SetAllowedTools restricts which tool names are eligible for tolerant
// recovery under a given action kind.
func (e *Executor) SetAllowedTools(action task.ActionType, tools ...string) {
	if e.allowedTools == nil {
		e.allowedTools = map[task.ActionType]map[string]bool{}
	}
	set := map[string]bool{}
	for _, t := range tools {
		set[t] = true
	}
	e.allowedTools[action] = set
}

var pyFileRe = regexp.MustCompile(`(?i)\.py\b`)

// normalizeDispatchAction applies the directory/py-file coercion rule:
// create_directory whose description mentions a .py file is really an add.
func normalizeDispatchAction(t *task.Task) {
	if t.Action == task.ActionCreateDirectory && pyFileRe.MatchString(t.Description) {
		t.Action = task.ActionAdd
	}
}

// toolCallShapeRe recognizes plain text that looks like a described tool
// call the model failed to emit structurally, e.g. `call write_file(path=...)`.
var toolCallShapeRe = regexp.MustCompile(`(?i)\b(call|invoke|use)\s+(\w+)\s*\(([^)]*)\)`)

// Dispatch runs one task through its agent and returns the resulting
// Outcome, transitioning the task's status as it goes.
func (e *Executor) Dispatch(ctx context.Context, t *task.Task, contextSnapshot string) Outcome {
	normalizeDispatchAction(t)

	if t.Action == task.ActionCreateDirectory {
		if existing, ok := t.Metadata["directory_exists"].(bool); ok && existing {
			t.RecordToolEvent(task.ToolEvent{
				ToolName: "create_directory",
				Result:   map[string]any{"skipped": true},
			})
			_ = t.Transition(task.StatusInProgress)
			_ = t.Transition(task.StatusCompleted)
			return Outcome{NewStatus: task.StatusCompleted, Message: "directory already exists"}
		}
	}

	if err := t.Transition(task.StatusInProgress); err != nil {
		return Outcome{NewStatus: t.Status, Message: err.Error(), Fatal: true}
	}

	agent, ok := e.agents[t.Action]
	if !ok {
		agent, ok = e.agents[task.ActionGeneral]
	}
	if !ok {
		_ = t.Transition(task.StatusFailed)
		return Outcome{NewStatus: task.StatusFailed, Message: fmt.Sprintf("no agent registered for action %q", t.Action)}
	}

	reply, err := agent.Act(ctx, t, contextSnapshot)
	if err != nil {
		_ = t.Transition(task.StatusFailed)
		return Outcome{NewStatus: task.StatusFailed, Message: err.Error()}
	}

	if out := e.handleSentinel(t, reply.Text); out != nil {
		return *out
	}

	calls := reply.ToolCalls
	if len(calls) == 0 {
		if rec := e.tolerantRecover(ctx, t, reply.Text); rec != nil {
			calls = append(calls, *rec)
		}
	}

	for _, c := range calls {
		result := e.runCall(ctx, t, c)
		t.RecordToolEvent(result)
	}

	if err := t.Transition(task.StatusCompleted); err != nil {
		return Outcome{NewStatus: t.Status, Message: err.Error(), Fatal: true}
	}
	return Outcome{NewStatus: task.StatusCompleted}
}

func (e *Executor) handleSentinel(t *task.Task, text string) *Outcome {
	switch {
	case strings.HasPrefix(text, SentinelRecoveryRequested):
		_ = t.Transition(task.StatusFailed)
		return &Outcome{NewStatus: task.StatusFailed, Message: strings.TrimPrefix(text, SentinelRecoveryRequested), NeedsReroute: true}
	case strings.HasPrefix(text, SentinelFinalFailure):
		_ = t.Transition(task.StatusFailed)
		return &Outcome{NewStatus: task.StatusFailed, Message: strings.TrimPrefix(text, SentinelFinalFailure), Fatal: true}
	case strings.HasPrefix(text, SentinelUserRejected):
		_ = t.Transition(task.StatusStopped)
		return &Outcome{NewStatus: task.StatusStopped, Message: strings.TrimPrefix(text, SentinelUserRejected)}
	default:
		return nil
	}
}

// tolerantRecover parses a described-but-not-emitted tool call out of plain
// text, so the agent doesn't spiral re-describing a call it never issues.
func (e *Executor) tolerantRecover(ctx context.Context, t *task.Task, text string) *ToolCall {
	m := toolCallShapeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	name := m[2]
	if allowed, ok := e.allowedTools[t.Action]; ok && !allowed[name] {
		return nil
	}
	argsText := m[3]
	return &ToolCall{Name: name, Args: argsToJSON(argsText)}
}

// argsToJSON is a best-effort conversion of a "key=value, key2=value2"
// argument list into a flat JSON object; unparseable input yields "{}".
func argsToJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	parts := strings.Split(raw, ",")
	var b strings.Builder
	b.WriteString("{")
	first := true
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if !first {
			b.WriteString(",")
		}
		first = false
		fmt.Fprintf(&b, "%q:%q", key, val)
	}
	b.WriteString("}")
	if first {
		return "{}"
	}
	return b.String()
}

func (e *Executor) runCall(ctx context.Context, t *task.Task, c ToolCall) task.ToolEvent {
	if c.Result != "" || c.Err != nil {
		return task.ToolEvent{ToolName: c.Name, Err: c.Err, Result: map[string]any{"raw": c.Result}}
	}
	if e.dispatcher == nil {
		return task.ToolEvent{ToolName: c.Name, Err: fmt.Errorf("no dispatcher configured")}
	}
	res := e.dispatcher.Dispatch(ctx, c.Name, c.Args)
	ev := task.ToolEvent{ToolName: c.Name, Result: map[string]any{"raw": res.Output, "truncated": res.Truncated}}
	if res.Err != nil {
		ev.Err = res.Err
	}
	return ev
}
