// Package memory implements the append-only project memory file at
// <workspace>/.rev/memory/project_summary.md: five fixed sections, deduped
// entries, and a bounded recent-changes window.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// sectionOrder is the fixed set and order of level-2 headings the file
// always carries.
var sectionOrder = []string{
	"What This Repo Is",
	"Current Architecture",
	"Known Failure Modes + Fixes",
	"Conventions",
	"Recently Changed Files",
}

const maxRecentChangeLines = 30
const maxFailureModeLines = 60

// Memory wraps the on-disk project_summary.md file for one workspace.
type Memory struct {
	path string
}

// New builds a Memory bound to <workspaceRoot>/.rev/memory/project_summary.md.
func New(workspaceRoot string) *Memory {
	return &Memory{path: filepath.Join(workspaceRoot, ".rev", "memory", "project_summary.md")}
}

func defaultTemplate() string {
	return `# Project Memory

This file is maintained automatically.
It is intentionally concise and operational.

## What This Repo Is
- (none recorded)

## Current Architecture
- (none recorded)

## Known Failure Modes + Fixes
- (none recorded)

## Conventions
- (none recorded)

## Recently Changed Files
- (none recorded)
`
}

// Ensure creates the memory file with the default template if it does not
// already exist.
func (m *Memory) Ensure() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("memory: create directory: %w", err)
	}
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return os.WriteFile(m.path, []byte(defaultTemplate()), 0o644)
	}
	return nil
}

var headingRe = regexp.MustCompile(`^##\s+(.*)\s*$`)

func parseSections(md string) map[string][]string {
	sections := map[string][]string{}
	var current string
	has := false
	for _, line := range strings.Split(md, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			has = true
			if _, ok := sections[current]; !ok {
				sections[current] = nil
			}
			continue
		}
		if !has {
			continue
		}
		sections[current] = append(sections[current], line)
	}
	return sections
}

func renderSections(sections map[string][]string) string {
	var b strings.Builder
	b.WriteString("# Project Memory\n\nThis file is maintained automatically.\nIt is intentionally concise and operational.\n\n")
	for _, name := range sectionOrder {
		fmt.Fprintf(&b, "## %s\n", name)
		body := trimBlankEdges(sections[name])
		if len(body) == 0 {
			body = []string{"- (none recorded)"}
		}
		for _, l := range body {
			b.WriteString(l)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func dedupeKeepRecent(lines []string, maxItems int) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range lines {
		key := strings.TrimSpace(line)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}

func utcStamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04Z")
}

func dropPlaceholder(lines []string) []string {
	var out []string
	for _, l := range lines {
		if !strings.Contains(l, "(none recorded)") {
			out = append(out, l)
		}
	}
	return out
}

func (m *Memory) readSections() (map[string][]string, error) {
	if err := m.Ensure(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("memory: read file: %w", err)
	}
	return parseSections(string(raw)), nil
}

func (m *Memory) write(sections map[string][]string) error {
	return os.WriteFile(m.path, []byte(renderSections(sections)), 0o644)
}

// RecordRecentChanges appends a compact entry to "Recently Changed Files",
// keeping at most maxRecentChangeLines lines total.
func (m *Memory) RecordRecentChanges(created, modified, deleted []string) error {
	sections, err := m.readSections()
	if err != nil {
		return err
	}

	entry := []string{"- " + utcStamp()}
	if len(created) > 0 {
		entry = append(entry, "  - created: "+joinTail(created, 10))
	}
	if len(modified) > 0 {
		entry = append(entry, "  - modified: "+joinTail(modified, 10))
	}
	if len(deleted) > 0 {
		entry = append(entry, "  - deleted: "+joinTail(deleted, 10))
	}

	existing := dropPlaceholder(sections["Recently Changed Files"])
	merged := append(append(entry, ""), existing...)
	if len(merged) > maxRecentChangeLines {
		merged = merged[:maxRecentChangeLines]
	}
	sections["Recently Changed Files"] = merged
	return m.write(sections)
}

func joinTail(items []string, n int) string {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return strings.Join(items, ", ")
}

// RecordFailureMode appends a deduped entry (by title) to "Known Failure
// Modes + Fixes".
func (m *Memory) RecordFailureMode(title, symptom, fix, evidenceRef string) error {
	sections, err := m.readSections()
	if err != nil {
		return err
	}
	existing := dropPlaceholder(sections["Known Failure Modes + Fixes"])
	for _, l := range existing {
		if strings.HasPrefix(strings.TrimSpace(l), "- "+title+" ") {
			return nil
		}
	}

	lines := []string{
		fmt.Sprintf("- %s (%s)", title, utcStamp()),
		"  - symptom: " + symptom,
		"  - fix: " + fix,
	}
	if evidenceRef != "" {
		lines = append(lines, "  - evidence: "+evidenceRef)
	}

	merged := append(append(lines, ""), existing...)
	sections["Known Failure Modes + Fixes"] = dedupeKeepRecent(merged, maxFailureModeLines)
	return m.write(sections)
}

// MaybeRecordKnownFailureFromError matches a handful of known error
// signatures and records a failure-mode entry for the first one that
// matches, returning whether the text matched a known signature (true even
// when RecordFailureMode skips the entry as a duplicate title).
func (m *Memory) MaybeRecordKnownFailureFromError(errorText, evidenceRef string) (bool, error) {
	text := strings.ToLower(errorText)
	switch {
	case strings.Contains(text, "outside allowed workspace roots") || strings.Contains(text, "/add-dir"):
		return true, m.RecordFailureMode(
			"Workspace path outside allowed roots",
			"tools/verifiers reject a path as outside the workspace",
			"run from the target repo root or allowlist the directory with /add-dir <path>",
			evidenceRef,
		)
	case strings.Contains(text, "could not determine file path to verify") || strings.Contains(text, "could not resolve"):
		return true, m.RecordFailureMode(
			"Verification cannot determine file path",
			"verifier reports it cannot determine the file path to verify",
			"ensure tool results include path_abs/path_rel and the verifier uses the tool-args fallback",
			evidenceRef,
		)
	default:
		return false, nil
	}
}
