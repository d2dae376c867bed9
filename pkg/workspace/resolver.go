// Package workspace resolves tool-supplied paths against a set of allowed
// workspace roots, preventing escape and correcting common LLM path
// mistakes (quoting, duplicated root-name prefixes, relative drift).
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathError reports a path that could not be resolved within any allowed
// root.
type PathError struct {
	Input        string
	Purpose      string
	AllowedRoots []string
}

func (e *PathError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve path %q for %s; allowed roots: %s",
		e.Input, e.Purpose, strings.Join(e.AllowedRoots, ", "))
	b.WriteString("; use /add-dir <path> to allow another root")
	return b.String()
}

// Resolved is an immutable record of a path that was confirmed to live
// within an allowed root.
type Resolved struct {
	AbsPath     string
	RelPath     string
	AllowedRoot string
}

// Resolver holds the allowed roots for one workspace session. The first
// root registered is the primary project root.
type Resolver struct {
	roots []string
}

// New builds a Resolver. primaryRoot must be an absolute, cleaned path.
func New(primaryRoot string, extraRoots ...string) *Resolver {
	r := &Resolver{roots: []string{filepath.Clean(primaryRoot)}}
	for _, extra := range extraRoots {
		r.AddRoot(extra)
	}
	return r
}

// AddRoot allowlists an additional root (the effect of /add-dir).
func (r *Resolver) AddRoot(root string) {
	clean := filepath.Clean(root)
	for _, existing := range r.roots {
		if existing == clean {
			return
		}
	}
	r.roots = append(r.roots, clean)
}

// Root returns the primary (first-registered) root.
func (r *Resolver) Root() string {
	return r.roots[0]
}

// Roots returns all currently allowed roots.
func (r *Resolver) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

func cleanPathInput(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `"'`)
	return path
}

func isWithinRoot(absPath, root string) bool {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Resolve resolves path against the allowed roots for the given purpose
// (e.g. "read", "write", "create_directory"), used only in error messages.
//
// Resolution order, mirroring common LLM path mistakes:
//  1. Strip surrounding quotes/whitespace.
//  2. If path is already absolute, check it against every allowed root.
//  3. If path begins with "<root-basename>/", strip that mistaken prefix
//     and retry relative to that root (the model repeated the root name).
//  4. Otherwise resolve relative to each allowed root in registration order
//     and accept the first root under which the resulting path exists
//     inside that root's tree (not necessarily on disk).
func (r *Resolver) Resolve(path string, purpose string) (*Resolved, error) {
	if purpose == "" {
		purpose = "access"
	}
	cleaned := cleanPathInput(path)
	if cleaned == "" {
		return nil, &PathError{Input: path, Purpose: purpose, AllowedRoots: r.Roots()}
	}

	if filepath.IsAbs(cleaned) {
		absPath := filepath.Clean(cleaned)
		for _, root := range r.roots {
			if isWithinRoot(absPath, root) {
				rel, _ := filepath.Rel(root, absPath)
				return &Resolved{AbsPath: absPath, RelPath: rel, AllowedRoot: root}, nil
			}
		}
		return nil, &PathError{Input: path, Purpose: purpose, AllowedRoots: r.Roots()}
	}

	for _, root := range r.roots {
		rootName := filepath.Base(root)
		prefix := rootName + string(filepath.Separator)
		candidate := cleaned
		if strings.HasPrefix(cleaned, prefix) {
			candidate = strings.TrimPrefix(cleaned, prefix)
		}
		absPath := filepath.Clean(filepath.Join(root, candidate))
		if isWithinRoot(absPath, root) {
			rel, _ := filepath.Rel(root, absPath)
			return &Resolved{AbsPath: absPath, RelPath: rel, AllowedRoot: root}, nil
		}
	}

	return nil, &PathError{Input: path, Purpose: purpose, AllowedRoots: r.Roots()}
}
