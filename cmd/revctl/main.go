// revctl is a demo entry point wiring the orchestrator core end to end:
// logger → config → workspace resolver → router → tool registry → loop.
//
// It ships a minimal static planner and a handful of filesystem tools so
// the loop can be exercised without a live LLM; wire a real
// planner.Proposer and executor.Agent table for production use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilkoid/revorc/pkg/budget"
	"github.com/ilkoid/revorc/pkg/config"
	"github.com/ilkoid/revorc/pkg/executor"
	"github.com/ilkoid/revorc/pkg/memory"
	"github.com/ilkoid/revorc/pkg/orchestrator"
	"github.com/ilkoid/revorc/pkg/revlog"
	"github.com/ilkoid/revorc/pkg/router"
	"github.com/ilkoid/revorc/pkg/task"
	"github.com/ilkoid/revorc/pkg/toolkit"
	"github.com/ilkoid/revorc/pkg/toolkit/fstools"
	"github.com/ilkoid/revorc/pkg/workspace"
)

// shellCommandRunner executes an S3 validation command through the system
// shell, the same way run_command does for agent-issued shell tool calls.
type shellCommandRunner struct{}

func (shellCommandRunner) Run(ctx context.Context, command, dir string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return outBuf.String(), errBuf.String(), -1, runErr
		}
	}
	return outBuf.String(), errBuf.String(), code, nil
}

var (
	flagConfig  = flag.String("config", "", "path to config.yaml (default: built-in defaults)")
	flagRequest = flag.String("request", "", "user request to plan and execute")
	flagRoot    = flag.String("root", ".", "workspace root")
	flagTimeout = flag.Duration("timeout", 5*time.Minute, "overall run timeout")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()
	if strings.TrimSpace(*flagRequest) == "" {
		return fmt.Errorf("revctl: -request is required")
	}

	logger, err := revlog.Open(*flagRoot)
	if err != nil {
		return fmt.Errorf("revctl: open logger: %w", err)
	}
	defer logger.Close()
	logger.Info("revctl started", "request", *flagRequest)

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return fmt.Errorf("revctl: load config: %w", err)
	}

	ws := workspace.New(*flagRoot, cfg.App.ExtraRoots...)
	resolved, err := ws.Resolve(*flagRoot, "workspace root")
	if err != nil {
		return fmt.Errorf("revctl: resolve workspace root: %w", err)
	}
	logger.Info("workspace resolved", "root", resolved.AbsPath)

	decision := router.New().Route(*flagRequest, router.RepoStats{})
	logger.Info("routed request", "mode", decision.Mode, "reasoning", decision.Reasoning)

	registry := toolkit.NewRegistry()
	if err := fstools.Register(registry, ws, cfg.App.ReadOnly); err != nil {
		return fmt.Errorf("revctl: register tools: %w", err)
	}
	dispatcher := toolkit.NewDispatcher(registry)

	exec := executor.New(executor.AgentTable{}, dispatcher)

	mem := memory.New(resolved.AbsPath)
	if cfg.App.MemoryEnabled {
		if err := mem.Ensure(); err != nil {
			logger.Warn("memory init failed", "error", err)
		}
	}

	res := budget.NewResource(cfg.Budget.TokenCap, cfg.Budget.StepCap, cfg.Budget.WallclockCapDuration())
	rootTask := task.NewTask(*flagRequest, task.ActionResearch)
	c := orchestrator.NewContext(*flagRequest, resolved.AbsPath, cfg.App.ReadOnly, res)
	c.Plan.AddTask(rootTask)

	if decision.EnableValidation {
		c.Runner = shellCommandRunner{}
	}
	c.ValidationMode = cfg.ValidationModeFor(decision.Mode)
	c.TDDEnabled = cfg.Validation.TDDEnabled
	logger.Info("validation configured", "mode", c.ValidationMode, "tdd_enabled", c.TDDEnabled)

	proposer := &staticProposer{}
	loop := orchestrator.NewLoop(proposer, exec, mem)

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()
	defer setupGracefulShutdown(logger, cancel)()

	result := loop.Run(ctx, c)
	printResult(result)
	return nil
}

// setupGracefulShutdown cancels ctx on SIGINT/SIGTERM so an in-flight loop
// iteration observes ctx.Done() and stops instead of leaving partial work.
// The returned func stops the signal relay and should run via defer.
func setupGracefulShutdown(logger *revlog.Logger, cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

// staticProposer serves the plan's own pending tasks in plan order,
// signalling completion once none remain — a deterministic stand-in for
// the real LLM-backed planner/proposer collaborator.
type staticProposer struct{}

func (p *staticProposer) Next(ctx context.Context, c *orchestrator.Context) (*task.Task, error) {
	next := c.Plan.Pending()
	if next == nil {
		return nil, nil
	}
	return next, nil
}

func printResult(r orchestrator.Result) {
	sep := strings.Repeat("=", 60)
	fmt.Println(sep)
	fmt.Println("RUN RESULT")
	fmt.Println(sep)
	fmt.Printf("success: %v\n", r.Success)
	fmt.Printf("phase:   %s\n", r.PhaseReached)
	fmt.Printf("iters:   %d\n", r.Iterations)
	if len(r.Errors) > 0 {
		fmt.Println("errors:")
		for _, e := range r.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Println(sep)
}
