package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/revorc/pkg/toolerr"
)

// MaxResultBytes bounds how much of a tool's raw output is kept before
// truncation; dispatch callers still get the full length in CallResult.
const MaxResultBytes = 16 * 1024

// Call is one recorded invocation through the Dispatcher.
type Call struct {
	ToolName string
	Args     map[string]any
}

// CallResult is what the dispatcher hands back after invoking a tool: the
// raw (possibly truncated) output, whether it was truncated, and a
// structured error when the tool failed.
type CallResult struct {
	Output      string
	Truncated   bool
	OriginalLen int
	Err         *toolerr.Error
}

// Dispatcher resolves tool names through a Registry and executes them,
// normalizing panics and foreign errors into the toolerr taxonomy.
type Dispatcher struct {
	registry     *Registry
	lastCall     *Call
	lastToolName string
}

// NewDispatcher builds a Dispatcher bound to a Registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// LastCall returns the most recent dispatched call, or nil if none yet.
func (d *Dispatcher) LastCall() *Call {
	return d.lastCall
}

// Dispatch looks up toolName (by canonical name or alias), executes it with
// argsJSON, and returns a normalized CallResult. It never returns a Go
// error itself; failures are reported via CallResult.Err so callers can
// record a consistent tool event regardless of outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, argsJSON string) (res CallResult) {
	defer func() {
		if r := recover(); r != nil {
			res = CallResult{Err: toolerr.FromException(fmt.Errorf("panic: %v", r), toolName)}
		}
	}()

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return CallResult{Err: toolerr.NewValidation(
				fmt.Sprintf("invalid JSON arguments: %v", err), nil, toolName)}
		}
	}
	d.lastCall = &Call{ToolName: toolName, Args: args}
	d.lastToolName = toolName

	tool, err := d.registry.Get(toolName)
	if err != nil {
		return CallResult{Err: toolerr.NewFileNotFound(toolName, "dispatcher")}
	}

	out, err := tool.Execute(ctx, argsJSON)
	if err != nil {
		return CallResult{Err: toolerr.FromException(err, toolName)}
	}

	return truncate(out)
}

func truncate(out string) CallResult {
	if len(out) <= MaxResultBytes {
		return CallResult{Output: out, OriginalLen: len(out)}
	}
	return CallResult{
		Output:      out[:MaxResultBytes],
		Truncated:   true,
		OriginalLen: len(out),
	}
}
