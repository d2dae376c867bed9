// Package orchestrator implements the continuous REPL: plan next →
// preflight → dispatch → verify → update budgets → maybe inject recovery
// tasks → loop, until the request is satisfied or a circuit breaker fires.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/revorc/pkg/budget"
	"github.com/ilkoid/revorc/pkg/executor"
	"github.com/ilkoid/revorc/pkg/preflight"
	"github.com/ilkoid/revorc/pkg/task"
	"github.com/ilkoid/revorc/pkg/toolerr"
	"github.com/ilkoid/revorc/pkg/verifier"
)

// NextActionProposer asks for the single next task in continuous mode,
// given the recent work history, pending agent requests, and flags. A nil
// task with a nil error means the planner believes the goal is achieved.
type NextActionProposer interface {
	Next(ctx context.Context, c *Context) (*task.Task, error)
}

// Result is the structured outcome the loop returns, mirroring
// OrchestratorResult: success flag, phase reached, no-retry flag, errors,
// and the number of iterations run.
type Result struct {
	Success      bool
	PhaseReached string
	NoRetry      bool
	Errors       []string
	Iterations   int
}

// Loop drives one request through plan/preflight/dispatch/verify until
// success, a circuit breaker, or budget exhaustion.
type Loop struct {
	Proposer  NextActionProposer
	Executor  *executor.Executor
	Memory    MemoryRecorder
	Weights   AnchoringWeights

	preflightSignatures *budget.SignatureTracker
	actionSignatures    *budget.SignatureTracker
	failureSignatures   *budget.SignatureTracker
	recovery            *budget.RecoveryBudgets
}

// MemoryRecorder is the narrow project-memory surface the loop writes to;
// satisfied by *pkg/memory.Memory.
type MemoryRecorder interface {
	MaybeRecordKnownFailureFromError(errorText, evidenceRef string) (bool, error)
}

// NewLoop builds a Loop with fresh circuit-breaker trackers and default
// recovery budgets.
func NewLoop(proposer NextActionProposer, exec *executor.Executor, mem MemoryRecorder) *Loop {
	return &Loop{
		Proposer:            proposer,
		Executor:            exec,
		Memory:              mem,
		Weights:             DefaultAnchoringWeights,
		preflightSignatures: budget.NewSignatureTracker(),
		actionSignatures:    budget.NewSignatureTracker(),
		failureSignatures:   budget.NewSignatureTracker(),
		recovery:            budget.NewRecoveryBudgets(nil),
	}
}

func actionSignature(t *task.Task) string {
	desc := strings.ToLower(strings.TrimSpace(t.Description))
	desc = strings.Join(strings.Fields(desc), " ")
	return string(t.Action) + "::" + desc
}

func failureSignature(t *task.Task, message string) string {
	firstLine := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		firstLine = message[:idx]
	}
	return string(t.Action) + "::" + firstLine
}

// Run executes the continuous loop for one request until it returns a
// terminal Result. ctx's cancellation is checked at the top of every
// iteration and again just before each sub-agent dispatch (the "escape
// flag" in the original design).
func (l *Loop) Run(ctx context.Context, c *Context) Result {
	iter := 0
	var currentTask *task.Task

	for {
		iter++

		select {
		case <-ctx.Done():
			if currentTask != nil {
				_ = currentTask.Transition(task.StatusStopped)
			}
			return Result{Success: false, PhaseReached: "interrupted", Errors: []string{"cancelled"}}
		default:
		}

		if c.Budget != nil {
			c.Budget.RecordStep(0)
			if exceeded, msg := c.Budget.Exceeded(); exceeded {
				return Result{Success: false, PhaseReached: "budget", NoRetry: true, Errors: []string{msg}, Iterations: iter}
			}
		}

		nextTask, err := l.Proposer.Next(ctx, c)
		if err != nil {
			return Result{Success: false, PhaseReached: "planning", Errors: []string{err.Error()}, Iterations: iter}
		}
		if nextTask == nil {
			if c.IsGrounded() {
				return Result{Success: true, PhaseReached: "complete", Iterations: iter}
			}
			grounding := groundingFixTask(c)
			if _, seen := c.GetAgentState("grounding_fix_injected"); seen {
				return Result{Success: false, PhaseReached: "planning", NoRetry: true,
					Errors: []string{"planner exhaustion: completion not grounded after injected fix"}, Iterations: iter}
			}
			c.SetAgentState("grounding_fix_injected", true)
			c.Plan.AddTask(grounding)
			continue
		}
		currentTask = nextTask

		if v, ok := c.GetAgentState("tdd_require_test"); ok && v == true && nextTask.Action != task.ActionTest {
			nextTask.Action = task.ActionTest
			nextTask.Description = "(tdd) run tests to confirm the source change: " + nextTask.Description
			c.SetAgentState("tdd_require_test", false)
		}

		if c.ReadOnly && preflightMutating(nextTask) {
			nextTask.Action = task.ActionReview
			nextTask.Description = "(read-only mode) " + nextTask.Description
		}

		if ok, msgs := preflight.CheckActionSemantics(nextTask); !ok {
			sig := preflight.Signature(nextTask, msgs)
			if l.preflightSignatures.Record(sig) >= budget.SignatureThreshold {
				return Result{Success: false, PhaseReached: "preflight", NoRetry: true,
					Errors: []string{"circuit breaker: repeated preflight failure"}, Iterations: iter}
			}
			c.RecordWork(WorkEvent{Action: nextTask.Action, Description: nextTask.Description, Passed: false})
			continue
		}
		if ok, msgs := preflight.CheckTaskPaths(nextTask, c.WorkspaceRoot); !ok {
			sig := preflight.PathSignature(nextTask, msgs)
			if l.preflightSignatures.Record(sig) >= budget.SignatureThreshold {
				return Result{Success: false, PhaseReached: "preflight", NoRetry: true,
					Errors: []string{"circuit breaker: repeated preflight failure"}, Iterations: iter}
			}
			c.RecordWork(WorkEvent{Action: nextTask.Action, Description: nextTask.Description, Passed: false})
			continue
		}

		actSig := actionSignature(nextTask)
		if l.actionSignatures.Record(actSig) >= budget.SignatureThreshold {
			return Result{Success: false, PhaseReached: "dispatch", NoRetry: true,
				Errors: []string{"circuit breaker: repeating action"}, Iterations: iter}
		}

		if nextTask.Action == task.ActionRead {
			if path := firstPathToken(nextTask.Description); path != "" {
				if n := c.RecordFileRead(path); n >= MaxRedundantReads {
					c.EnqueueAgentRequest(AgentRequest{Kind: RequestRedundantFileRead, Path: path,
						Reason: fmt.Sprintf("file %s already read %d times", path, n)})
					continue
				}
			}
		}

		select {
		case <-ctx.Done():
			_ = nextTask.Transition(task.StatusStopped)
			return Result{Success: false, PhaseReached: "interrupted", Errors: []string{"cancelled"}, Iterations: iter}
		default:
		}

		outcome := l.Executor.Dispatch(ctx, nextTask, "")
		if outcome.Fatal {
			return Result{Success: false, PhaseReached: "dispatch", NoRetry: true, Errors: []string{outcome.Message}, Iterations: iter}
		}

		if task.VerifiableActions[nextTask.Action] && nextTask.Status == task.StatusCompleted {
			mode := c.ValidationMode
			if mode == "" {
				mode = verifier.ValidationFast
			}
			pendingGreen, _ := c.GetAgentState("tdd_pending_green")
			vr := verifier.Verify(nextTask, c.WorkspaceRoot,
				verifier.WithRunner(c.Runner),
				verifier.WithMode(mode),
				verifier.WithTDD(c.TDDEnabled, pendingGreen == true))
			if g, ok := vr.Details[verifier.DetailTDDPendingGreen]; ok {
				c.SetAgentState("tdd_pending_green", g)
			}
			if req, ok := vr.Details[verifier.DetailTDDRequireTest]; ok && req == true {
				c.SetAgentState("tdd_require_test", true)
			}
			if vr.Inconclusive {
				c.Plan.AddTask(synthesizeTestTask(nextTask))
				c.RecordWork(toWorkEvent(nextTask, vr.Passed))
				continue
			}
			if !vr.Passed {
				_ = nextTask.Transition(task.StatusFailed)
				kind := classifyVerificationFailure(vr)
				if !l.recovery.Decrement(kind) {
					return Result{Success: false, PhaseReached: "verify", NoRetry: true,
						Errors: []string{fmt.Sprintf("budget exhausted for %s", kind)}, Iterations: iter}
				}
				fSig := failureSignature(nextTask, vr.Message)
				if l.failureSignatures.Record(fSig) >= budget.SignatureThreshold {
					return Result{Success: false, PhaseReached: "verify", NoRetry: true,
						Errors: []string{"circuit breaker: repeated verification failure"}, Iterations: iter}
				}
				if l.Memory != nil {
					_, _ = l.Memory.MaybeRecordKnownFailureFromError(vr.Message, nextTask.ID)
				}
				if nextTask.Action != task.ActionTest {
					c.Plan.Tasks = append(c.Plan.Tasks, decomposeFailedTask(nextTask, vr)...)
				}
				c.RecordWork(toWorkEvent(nextTask, false))
				continue
			}
		}

		c.RecordWork(toWorkEvent(nextTask, true))
		if task.MutatingActions[nextTask.Action] && nextTask.Status == task.StatusCompleted {
			c.SetAgentState("last_code_change_iteration", iter)
			c.SetAgentState("tests_blocked_no_changes", false)
		}
	}
}

func preflightMutating(t *task.Task) bool {
	switch t.Action {
	case task.ActionEdit, task.ActionAdd, task.ActionCreateDirectory, task.ActionRefactor,
		task.ActionDelete, task.ActionRename, task.ActionFix:
		return true
	default:
		return false
	}
}

func toWorkEvent(t *task.Task, passed bool) WorkEvent {
	isRead := t.Action == task.ActionRead || t.Action == task.ActionAnalyze ||
		t.Action == task.ActionReview || t.Action == task.ActionResearch
	isWrite := task.MutatingActions[t.Action]
	return WorkEvent{Action: t.Action, Description: t.Description, IsRead: isRead, IsWrite: isWrite, Passed: passed}
}

func groundingFixTask(c *Context) *task.Task {
	if !c.HasResearchEvent() {
		return task.NewTask("search the workspace to confirm the requested change's target exists", task.ActionResearch)
	}
	return task.NewTask("verify the requested change was actually applied", task.ActionReview)
}

func synthesizeTestTask(t *task.Task) *task.Task {
	runner := "npm test"
	desc := strings.ToLower(t.Description)
	if strings.HasSuffix(desc, ".py") || strings.Contains(desc, ".py") {
		runner = "pytest -q"
	}
	return task.NewTask(fmt.Sprintf("run %s to validate the inconclusive change", runner), task.ActionTest)
}

func classifyVerificationFailure(vr verifier.Result) toolerr.Kind {
	msg := strings.ToLower(vr.Message)
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such"):
		return toolerr.NotFound
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return toolerr.Timeout
	case strings.Contains(msg, "permission"):
		return toolerr.PermissionDenied
	case strings.Contains(msg, "already exists") || strings.Contains(msg, "conflict"):
		return toolerr.Conflict
	case strings.Contains(msg, "syntax"):
		return toolerr.SyntaxError
	default:
		return toolerr.Unknown
	}
}

// decomposeFailedTask is a deterministic, LLM-free fallback: when no
// decomposition collaborator is wired, it simply re-queues the task as a
// review step to gather more context before retrying.
func decomposeFailedTask(t *task.Task, vr verifier.Result) []*task.Task {
	return []*task.Task{
		task.NewTask(fmt.Sprintf("investigate why verification failed: %s (original task: %s)", vr.Message, t.Description), task.ActionReview),
	}
}

var pathTokenSimpleRe = func() func(string) string {
	return func(s string) string {
		for _, f := range strings.Fields(s) {
			if strings.Contains(f, ".") && strings.Contains(f, "/") {
				return f
			}
		}
		return ""
	}
}()

func firstPathToken(desc string) string {
	return pathTokenSimpleRe(desc)
}
