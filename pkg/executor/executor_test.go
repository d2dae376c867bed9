package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/revorc/pkg/task"
	"github.com/ilkoid/revorc/pkg/toolkit"
)

// stubAgent returns a fixed reply or error, recording the last task it saw.
type stubAgent struct {
	reply   AgentReply
	err     error
	lastTsk *task.Task
}

func (s *stubAgent) Act(_ context.Context, t *task.Task, _ string) (AgentReply, error) {
	s.lastTsk = t
	return s.reply, s.err
}

// echoTool is a minimal toolkit.Tool that always succeeds.
type echoTool struct{ name string }

func (e echoTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        e.name,
		Description: "echoes back",
		Parameters:  toolkit.JSONSchema{"type": "object"},
	}
}

func (e echoTool) Execute(_ context.Context, argsJSON string) (string, error) {
	return "ok:" + argsJSON, nil
}

func newDispatcherWithTool(t *testing.T, name string) *toolkit.Dispatcher {
	t.Helper()
	reg := toolkit.NewRegistry()
	require.NoError(t, reg.Register(echoTool{name: name}))
	return toolkit.NewDispatcher(reg)
}

func TestDispatchCompletesOnStructuredToolCalls(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{ToolCalls: []ToolCall{{Name: "write_file", Args: `{"path":"a.go"}`}}}}
	ex := New(AgentTable{task.ActionEdit: agent}, newDispatcherWithTool(t, "write_file"))
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	require.Len(t, tk.ToolEvents, 1)
	assert.Equal(t, "write_file", tk.ToolEvents[0].ToolName)
	assert.NoError(t, tk.ToolEvents[0].Err)
}

func TestDispatchFallsBackToGeneralAgent(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: "done"}}
	ex := New(AgentTable{task.ActionGeneral: agent}, nil)
	tk := task.NewTask("do something unusual", task.ActionTool)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	assert.Same(t, tk, agent.lastTsk)
}

func TestDispatchFailsWithNoAgentRegistered(t *testing.T) {
	ex := New(AgentTable{}, nil)
	tk := task.NewTask("mystery task", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusFailed, out.NewStatus)
	assert.Contains(t, out.Message, "no agent registered")
}

func TestDispatchFailsWhenAgentErrors(t *testing.T) {
	agent := &stubAgent{err: fmt.Errorf("model unavailable")}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusFailed, out.NewStatus)
	assert.Equal(t, task.StatusFailed, tk.Status)
}

func TestDispatchHandlesRecoveryRequestedSentinel(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: SentinelRecoveryRequested + "need smaller scope"}}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusFailed, out.NewStatus)
	assert.True(t, out.NeedsReroute)
	assert.Equal(t, "need smaller scope", out.Message)
}

func TestDispatchHandlesFinalFailureSentinel(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: SentinelFinalFailure + "unrecoverable"}}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.True(t, out.Fatal)
	assert.Equal(t, task.StatusFailed, out.NewStatus)
}

func TestDispatchHandlesUserRejectedSentinel(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: SentinelUserRejected + "user said no"}}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusStopped, out.NewStatus)
}

func TestDispatchCreateDirectorySkipsWhenAlreadyExists(t *testing.T) {
	ex := New(AgentTable{}, nil)
	tk := task.NewTask("create directory internal/widget", task.ActionCreateDirectory)
	tk.Metadata["directory_exists"] = true

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	assert.Equal(t, "directory already exists", out.Message)
	require.Len(t, tk.ToolEvents, 1)
	assert.True(t, tk.ToolEvents[0].IsNoop())
}

func TestDispatchCoercesCreateDirectoryMentioningPyFileToAdd(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: "done"}}
	ex := New(AgentTable{task.ActionAdd: agent}, nil)
	tk := task.NewTask("create directory for script.py", task.ActionCreateDirectory)

	ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.ActionAdd, tk.Action)
}

func TestDispatchTolerantlyRecoversDescribedToolCall(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: `I will call write_file(path="a.go", content="x")`}}
	ex := New(AgentTable{task.ActionEdit: agent}, newDispatcherWithTool(t, "write_file"))
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	require.Len(t, tk.ToolEvents, 1)
	assert.Equal(t, "write_file", tk.ToolEvents[0].ToolName)
}

func TestDispatchTolerantRecoveryRespectsAllowedToolsFilter(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{Text: `I will call run_command(cmd="rm -rf /")`}}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	ex.SetAllowedTools(task.ActionEdit, "write_file")
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	assert.Empty(t, tk.ToolEvents)
}

func TestDispatchRecordsDispatchErrorAsToolEvent(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{ToolCalls: []ToolCall{{Name: "missing_tool", Args: "{}"}}}}
	ex := New(AgentTable{task.ActionEdit: agent}, newDispatcherWithTool(t, "write_file"))
	tk := task.NewTask("edit a.go", task.ActionEdit)

	out := ex.Dispatch(context.Background(), tk, "")

	assert.Equal(t, task.StatusCompleted, out.NewStatus)
	require.Len(t, tk.ToolEvents, 1)
	assert.Error(t, tk.ToolEvents[0].Err)
}

func TestDispatchWithoutDispatcherRecordsConfigurationError(t *testing.T) {
	agent := &stubAgent{reply: AgentReply{ToolCalls: []ToolCall{{Name: "write_file", Args: "{}"}}}}
	ex := New(AgentTable{task.ActionEdit: agent}, nil)
	tk := task.NewTask("edit a.go", task.ActionEdit)

	ex.Dispatch(context.Background(), tk, "")

	require.Len(t, tk.ToolEvents, 1)
	assert.ErrorContains(t, tk.ToolEvents[0].Err, "no dispatcher configured")
}

func TestArgsToJSONParsesKeyValuePairs(t *testing.T) {
	assert.Equal(t, `{"path":"a.go","mode":"w"}`, argsToJSON(`path=a.go, mode="w"`))
	assert.Equal(t, "{}", argsToJSON(""))
	assert.Equal(t, "{}", argsToJSON("not-a-kv-pair"))
}
