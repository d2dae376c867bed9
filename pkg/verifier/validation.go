package verifier

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Language is a detected project ecosystem, used to select the default
// validation command matrix.
type Language string

const (
	LangNode   Language = "node"
	LangPython Language = "python"
	LangGo     Language = "go"
	LangRust   Language = "rust"
	LangJava   Language = "java"
	LangRuby   Language = "ruby"
	LangDotnet Language = "dotnet"
	LangCPP    Language = "cpp"
	LangDart   Language = "dart"
	LangUnknown Language = "unknown"
)

// markerFiles maps a project-root marker file to the language it implies.
var markerFiles = []struct {
	file string
	lang Language
}{
	{"package.json", LangNode},
	{"pyproject.toml", LangPython},
	{"go.mod", LangGo},
	{"Cargo.toml", LangRust},
	{"pom.xml", LangJava},
	{"Gemfile", LangRuby},
	{"CMakeLists.txt", LangCPP},
	{"Makefile", LangCPP},
	{"pubspec.yaml", LangDart},
}

// DetectLanguage inspects projectRoot for marker files first, falling back
// to the extension of touchedPaths, else LangUnknown.
func DetectLanguage(projectRoot string, touchedPaths []string) Language {
	for _, m := range markerFiles {
		if _, err := os.Stat(filepath.Join(projectRoot, m.file)); err == nil {
			return m.lang
		}
	}
	for _, p := range touchedPaths {
		if strings.HasSuffix(p, ".csproj") {
			return LangDotnet
		}
		switch filepath.Ext(p) {
		case ".go":
			return LangGo
		case ".py":
			return LangPython
		case ".js", ".jsx", ".ts", ".tsx":
			return LangNode
		case ".rs":
			return LangRust
		case ".java":
			return LangJava
		case ".rb":
			return LangRuby
		case ".dart":
			return LangDart
		}
	}
	return LangUnknown
}

// ValidationMode selects how thorough S3 validation should be.
type ValidationMode string

const (
	ValidationNone     ValidationMode = "none"
	ValidationSmoke    ValidationMode = "smoke"
	ValidationFast     ValidationMode = "fast"
	ValidationTargeted ValidationMode = "targeted"
	ValidationTestOnly ValidationMode = "test_only"
	ValidationStrict   ValidationMode = "strict"
)

// CommandSet is the fixed { build, lint, test, typecheck } command matrix
// for one language.
type CommandSet struct {
	Build     string
	Lint      string
	Test      string
	TypeCheck string
}

// DefaultCommandMatrix is the built-in per-language command set, overridable
// via pkg/config.
var DefaultCommandMatrix = map[Language]CommandSet{
	LangGo:     {Build: "go build ./...", Lint: "go vet ./...", Test: "go test ./...", TypeCheck: ""},
	LangPython: {Build: "python -m py_compile", Lint: "ruff check", Test: "pytest -q", TypeCheck: "mypy ."},
	LangNode:   {Build: "npm run build", Lint: "eslint .", Test: "npm test", TypeCheck: "tsc --noEmit"},
	LangRust:   {Build: "cargo build", Lint: "cargo clippy", Test: "cargo test", TypeCheck: ""},
	LangJava:   {Build: "mvn compile", Lint: "", Test: "mvn test", TypeCheck: ""},
	LangRuby:   {Build: "", Lint: "rubocop", Test: "rspec", TypeCheck: ""},
	LangDotnet: {Build: "dotnet build", Lint: "", Test: "dotnet test", TypeCheck: ""},
	LangCPP:    {Build: "make", Lint: "", Test: "ctest", TypeCheck: ""},
	LangDart:   {Build: "", Lint: "dart analyze", Test: "flutter test", TypeCheck: ""},
}

// CommandsForMode narrows a language's full CommandSet to the subset a mode
// runs: none skips validation entirely, smoke runs only build, test_only
// runs only the test command (no build/lint/type-check), fast adds test on
// top of build, targeted adds lint on top of that (compile/syntax + test +
// lint, no type-check), and strict (full) runs all four.
func CommandsForMode(set CommandSet, mode ValidationMode) []string {
	if mode == ValidationNone {
		return nil
	}
	if mode == ValidationTestOnly {
		if set.Test == "" {
			return nil
		}
		return []string{set.Test}
	}
	var cmds []string
	if set.Build != "" {
		cmds = append(cmds, set.Build)
	}
	if mode == ValidationSmoke {
		return cmds
	}
	if set.Test != "" {
		cmds = append(cmds, set.Test)
	}
	if mode == ValidationFast {
		return cmds
	}
	if set.Lint != "" {
		cmds = append(cmds, set.Lint)
	}
	if mode == ValidationTargeted {
		return cmds
	}
	if set.TypeCheck != "" {
		cmds = append(cmds, set.TypeCheck)
	}
	return cmds
}

// CommandRunner is the out-of-scope collaborator that actually executes a
// shell command in the workspace; no concrete implementation ships here,
// only the contract and the deterministic decision logic around it.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) (stdout, stderr string, exitCode int, err error)
}

// InstallGuard throttles auto-install attempts to once per dependency-file
// modification time, keyed by the dependency file's path.
type InstallGuard struct {
	attempted map[string]int64 // path -> mtime unix seconds already attempted
}

// NewInstallGuard builds an empty guard.
func NewInstallGuard() *InstallGuard {
	return &InstallGuard{attempted: map[string]int64{}}
}

// ShouldAttempt reports whether an auto-install should run for depFile,
// given its current mtime; it records the attempt so a repeat with the
// same mtime is refused.
func (g *InstallGuard) ShouldAttempt(depFile string, mtimeUnix int64) bool {
	if last, ok := g.attempted[depFile]; ok && last == mtimeUnix {
		return false
	}
	g.attempted[depFile] = mtimeUnix
	return true
}

// RewriteNoTestsCommand applies the conservative one-shot fallback rewrite
// when a runner reports "no tests found": Jest gets --runTestsByPath,
// Vitest keeps --run and drops Jest-only flags, and python -m unittest
// file paths are converted to dotted module paths.
func RewriteNoTestsCommand(command string) string {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "jest"):
		if !strings.Contains(lower, "--runtestsbypath") {
			return command + " --runTestsByPath"
		}
	case strings.Contains(lower, "vitest"):
		cleaned := strings.ReplaceAll(command, "--coverage", "")
		if !strings.Contains(cleaned, "--run") {
			cleaned += " --run"
		}
		return strings.TrimSpace(cleaned)
	case strings.Contains(lower, "python -m unittest") || strings.Contains(lower, "python3 -m unittest"):
		return toDottedModulePath(command)
	}
	return command
}

func toDottedModulePath(command string) string {
	parts := strings.Fields(command)
	for i, p := range parts {
		if strings.HasSuffix(p, ".py") {
			mod := strings.TrimSuffix(p, ".py")
			mod = strings.ReplaceAll(mod, "/", ".")
			mod = strings.ReplaceAll(mod, "\\", ".")
			parts[i] = mod
		}
	}
	return strings.Join(parts, " ")
}

// InferRunnerFromCommand decides the test framework by command text first;
// only a generic command (npm test, node runner.js) falls back to output
// sniffing via InferRunnerFromOutput.
func InferRunnerFromCommand(command string) string {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "vitest"):
		return "vitest"
	case strings.Contains(lower, "jest"):
		return "jest"
	case strings.Contains(lower, "pytest"):
		return "pytest"
	case strings.Contains(lower, "unittest"):
		return "unittest"
	case strings.Contains(lower, "go test"):
		return "go test"
	default:
		return ""
	}
}

// InferRunnerFromOutput sniffs a test framework from command output, used
// only when InferRunnerFromCommand could not decide from the command text.
func InferRunnerFromOutput(output string) string {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "vitest"):
		return "vitest"
	case strings.Contains(lower, "jest"):
		return "jest"
	case strings.Contains(lower, "pytest") || strings.Contains(lower, "passed") && strings.Contains(lower, "collected"):
		return "pytest"
	default:
		return "unknown"
	}
}

// RunValidation executes the applicable validation steps for a completed
// task: its explicit ValidationSteps if present, else the mode-driven
// default command set for the detected language. It returns the first
// failing command's output as the failure message, or "" on success.
func RunValidation(ctx context.Context, runner CommandRunner, dir string, explicitSteps []string, mode ValidationMode, lang Language) (passed bool, message string) {
	var cmds []string
	if len(explicitSteps) > 0 {
		cmds = explicitSteps
	} else {
		cmds = CommandsForMode(DefaultCommandMatrix[lang], mode)
	}
	if runner == nil || len(cmds) == 0 {
		return true, ""
	}
	for _, cmd := range cmds {
		stdout, stderr, rc, err := runner.Run(ctx, cmd, dir)
		if err != nil || rc != 0 {
			return false, "validation command failed: " + cmd + "\n" + stdout + "\n" + stderr
		}
	}
	return true, ""
}
