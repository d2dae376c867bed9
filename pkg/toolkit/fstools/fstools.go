// Package fstools provides the concrete filesystem and shell tools the
// executor dispatches: reading, listing, searching, and editing files
// within the resolved workspace, and running validation/build commands.
// Every path argument is resolved through a workspace.Resolver before
// touching disk, so a tool call can never escape the allowed roots.
package fstools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ilkoid/revorc/pkg/toolkit"
	"github.com/ilkoid/revorc/pkg/workspace"
)

// MaxReadBytes caps how much of a single file read_file returns.
const MaxReadBytes = 256 * 1024

// ReadFileTool returns a file's contents, optionally windowed by line range.
type ReadFileTool struct {
	Resolver *workspace.Resolver
}

func (t *ReadFileTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        "read_file",
		Description: "Read a file's contents, optionally restricted to a line range.",
		Parameters: toolkit.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"path":       map[string]any{"type": "string", "description": "File path relative to a workspace root, or absolute within one."},
				"start_line": map[string]any{"type": "integer", "description": "1-based first line to include (optional)."},
				"end_line":   map[string]any{"type": "integer", "description": "1-based last line to include (optional)."},
			},
			"required": []string{"path"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("read_file: invalid arguments: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.Path, "read")
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved.AbsPath)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if len(data) > MaxReadBytes && args.StartLine == 0 && args.EndLine == 0 {
		data = data[:MaxReadBytes]
	}
	if args.StartLine == 0 && args.EndLine == 0 {
		return string(data), nil
	}
	return windowLines(string(data), args.StartLine, args.EndLine), nil
}

func windowLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return ""
	}
	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%d\t%s\n", i, lines[i-1])
	}
	return b.String()
}

// ListDirTool lists a directory's immediate children.
type ListDirTool struct {
	Resolver *workspace.Resolver
}

func (t *ListDirTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        "list_dir",
		Description: "List the immediate entries of a directory.",
		Parameters: toolkit.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Directory path relative to a workspace root, or '.' for the root itself."},
			},
			"required": []string{"path"},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("list_dir: invalid arguments: %w", err)
	}
	if args.Path == "" {
		args.Path = "."
	}
	resolved, err := t.Resolver.Resolve(args.Path, "list_dir")
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved.AbsPath)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// GrepTool searches files under a directory for a regular expression.
type GrepTool struct {
	Resolver *workspace.Resolver
}

// MaxGrepMatches caps the number of matches returned per call.
const MaxGrepMatches = 200

func (t *GrepTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        "grep",
		Description: "Search files under a path for lines matching a regular expression.",
		Parameters: toolkit.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "RE2 regular expression to search for."},
				"path":    map[string]any{"type": "string", "description": "Directory to search under, relative to a workspace root. Defaults to the root."},
				"glob":    map[string]any{"type": "string", "description": "Optional filename glob filter, e.g. '*.go'."},
			},
			"required": []string{"pattern"},
		},
	}
}

func (t *GrepTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("grep: invalid arguments: %w", err)
	}
	if args.Path == "" {
		args.Path = "."
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return "", fmt.Errorf("grep: invalid pattern: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.Path, "grep")
	if err != nil {
		return "", err
	}

	var matches []string
	walkErr := filepath.WalkDir(resolved.AbsPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if args.Glob != "" {
			if ok, _ := filepath.Match(args.Glob, d.Name()); !ok {
				return nil
			}
		}
		if len(matches) >= MaxGrepMatches {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				rel, _ := filepath.Rel(resolved.AllowedRoot, p)
				matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, lineNo, scanner.Text()))
				if len(matches) >= MaxGrepMatches {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("grep: %w", walkErr)
	}
	if len(matches) == 0 {
		return "no matches", nil
	}
	return strings.Join(matches, "\n"), nil
}

// WriteFileTool creates or overwrites a file with the given content. It is
// the primitive an edit/add task's execution ultimately calls.
type WriteFileTool struct {
	Resolver *workspace.Resolver
	ReadOnly bool
}

func (t *WriteFileTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content, creating parent directories as needed.",
		Parameters: toolkit.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "File path relative to a workspace root."},
				"content": map[string]any{"type": "string", "description": "Full file content to write."},
			},
			"required": []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	if t.ReadOnly {
		return "", fmt.Errorf("write_file: workspace is read-only")
	}
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("write_file: invalid arguments: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.Path, "write")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved.AbsPath), 0o755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(resolved.AbsPath, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), resolved.RelPath), nil
}

// RunCommandTool shells out to a validation/build command within the
// workspace root. Output is captured and returned regardless of exit code
// so the caller (planner's validation step, verifier) can interpret it.
type RunCommandTool struct {
	Resolver *workspace.Resolver
	ReadOnly bool
}

func (t *RunCommandTool) Definition() toolkit.Definition {
	return toolkit.Definition{
		Name:        "run_command",
		Description: "Run a shell command inside the workspace root and return its combined output.",
		Parameters: toolkit.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "Shell command to execute, e.g. 'go test ./...'."},
				"cwd":     map[string]any{"type": "string", "description": "Working directory relative to a workspace root. Defaults to the root."},
			},
			"required": []string{"command"},
		},
	}
}

func (t *RunCommandTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	if t.ReadOnly {
		return "", fmt.Errorf("run_command: workspace is read-only")
	}
	var args struct {
		Command string `json:"command"`
		Cwd     string `json:"cwd"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("run_command: invalid arguments: %w", err)
	}
	if args.Cwd == "" {
		args.Cwd = "."
	}
	resolved, err := t.Resolver.Resolve(args.Cwd, "run_command")
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
	cmd.Dir = resolved.AbsPath
	out, err := cmd.CombinedOutput()
	result := string(out)
	if err != nil {
		return result, fmt.Errorf("run_command: %w (output: %s)", err, truncateForError(result))
	}
	return result, nil
}

func truncateForError(s string) string {
	const max = 2048
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Register adds every filesystem/shell tool to registry, bound to resolver
// and the workspace's read-only flag.
func Register(registry *toolkit.Registry, resolver *workspace.Resolver, readOnly bool) error {
	tools := []toolkit.Tool{
		&ReadFileTool{Resolver: resolver},
		&ListDirTool{Resolver: resolver},
		&GrepTool{Resolver: resolver},
		&WriteFileTool{Resolver: resolver, ReadOnly: readOnly},
		&RunCommandTool{Resolver: resolver, ReadOnly: readOnly},
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("fstools: register %s: %w", tool.Definition().Name, err)
		}
	}
	return nil
}
