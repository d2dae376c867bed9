package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ilkoid/revorc/pkg/task"
)

// pathTokenRe finds path-like tokens ending in a source extension; Go's
// pack is language-agnostic, so this matches any common source/config
// extension rather than the original's Python-only ".py"/".py.bak".
var pathTokenRe = regexp.MustCompile(
	`(?i)([A-Za-z]:[\\/][^\s"'` + "`" + `]+\.[a-z0-9]+(?:\.bak)?\b|(?:\./)?[A-Za-z0-9_./\\-]+\.[a-z0-9]+(?:\.bak)?\b)`)

var excludeDirs = map[string]bool{
	".rev": true, ".git": true, "node_modules": true, "vendor": true,
	"__pycache__": true, "tmp_test": true, "artifacts": true, "cache": true,
	"logs": true, "sessions": true,
}

func normalizePath(raw string) string {
	return filepath.ToSlash(strings.TrimSpace(raw))
}

// dedupeNestedPrefix collapses a path whose leading directory segments were
// duplicated (e.g. a split tool invoked against its own output), such as
// `lib/analysts/lib/analysts/__init__.py` -> `lib/analysts/__init__.py`.
// Returns p unchanged if no such repeated run is found. Only the longest
// repeated prefix is collapsed; filename segments never participate.
func dedupeNestedPrefix(p string) string {
	segs := strings.Split(p, "/")
	if len(segs) < 3 {
		return p
	}
	for l := (len(segs) - 1) / 2; l >= 1; l-- {
		if 2*l > len(segs)-1 {
			continue
		}
		match := true
		for i := 0; i < l; i++ {
			if segs[i] != segs[l+i] {
				match = false
				break
			}
		}
		if match {
			deduped := append(append([]string{}, segs[:l]...), segs[2*l:]...)
			return strings.Join(deduped, "/")
		}
	}
	return p
}

// findByBasename walks root looking for files named basename, skipping
// well-known transient directories, capped at limit hits.
func findByBasename(root, basename string, limit int) []string {
	if basename == "" {
		return nil
	}
	lower := strings.ToLower(basename)
	var hits []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if excludeDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(hits) >= limit {
			return nil
		}
		if strings.ToLower(info.Name()) == lower {
			rel, rerr := filepath.Rel(root, path)
			if rerr == nil {
				hits = append(hits, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	return hits
}

// chooseBestMatch picks the most likely intended match among several
// candidates, or "" if the top two tie (ambiguous). Scoring mirrors the
// original: prefer lib/src/app roots, penalize tests/, prefer a suffix
// match against the original token, prefer shallower paths.
func chooseBestMatch(original string, matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	if len(matches) == 1 {
		return matches[0]
	}
	originalLower := strings.ToLower(strings.ReplaceAll(original, "\\", "/"))

	score := func(relPosix string) (int, int) {
		p := strings.ToLower(relPosix)
		s := 0
		wrapped := "/" + p + "/"
		if strings.Contains(wrapped, "/lib/") {
			s += 10
		}
		if strings.Contains(wrapped, "/src/") {
			s += 8
		}
		if strings.Contains(wrapped, "/app/") {
			s += 6
		}
		if strings.Contains(wrapped, "/tests/") {
			s -= 5
		}
		if originalLower != "" && strings.HasSuffix(p, originalLower) {
			s += 3
		}
		depth := strings.Count(p, "/")
		return s, -depth
	}

	ranked := append([]string(nil), matches...)
	sort.Slice(ranked, func(i, j int) bool {
		si, di := score(ranked[i])
		sj, dj := score(ranked[j])
		if si != sj {
			return si > sj
		}
		return di > dj
	})
	s0, d0 := score(ranked[0])
	s1, d1 := score(ranked[1])
	if s0 == s1 && d0 == d1 {
		return ""
	}
	return ranked[0]
}

// CheckTaskPaths corrects path mistakes in a task's description: it
// normalizes existing absolute references to workspace-relative form and
// substitutes missing-but-locatable basenames with their resolved path.
// Returns (ok, messages).
func CheckTaskPaths(t *task.Task, projectRoot string) (bool, []string) {
	desc := t.Description
	var messages []string
	action := t.Action

	tokenSet := map[string]bool{}
	for _, m := range pathTokenRe.FindAllString(desc, -1) {
		tokenSet[m] = true
	}
	if len(tokenSet) == 0 {
		return true, nil
	}
	candidates := make([]string, 0, len(tokenSet))
	for c := range tokenSet {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)

	existingAny := 0
	var missingUnresolved []string

	for _, raw := range candidates {
		normalized := normalizePath(raw)
		if strings.HasSuffix(strings.ToLower(normalized), "/__init__.py") {
			continue
		}

		absPath := normalized
		if !filepath.IsAbs(absPath) {
			absPath = filepath.Join(projectRoot, filepath.FromSlash(normalized))
		}

		if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
			existingAny++
			if rel, rerr := filepath.Rel(projectRoot, absPath); rerr == nil {
				relPosix := filepath.ToSlash(rel)
				if relPosix != normalized && strings.Contains(desc, raw) {
					desc = strings.ReplaceAll(desc, raw, relPosix)
					messages = append(messages, fmt.Sprintf("normalized path '%s' -> '%s'", raw, relPosix))
				}
			}
			continue
		}

		if deduped := dedupeNestedPrefix(normalized); deduped != normalized {
			dedupedAbs := filepath.Join(projectRoot, filepath.FromSlash(deduped))
			if info, err := os.Stat(dedupedAbs); err == nil && !info.IsDir() {
				existingAny++
				if strings.Contains(desc, raw) {
					desc = strings.ReplaceAll(desc, raw, deduped)
					messages = append(messages, fmt.Sprintf("deduplicated nested path '%s' -> '%s'", raw, deduped))
				}
				continue
			}
		}

		// Backup-only states (a `.py.bak` file standing in for the real
		// source file) never count as a resolved match: operating on a
		// backup is forbidden regardless of direction.
		basename := filepath.Base(filepath.FromSlash(normalized))
		basenames := []string{basename}

		var matches []string
		seen := map[string]bool{}
		for _, bn := range basenames {
			for _, m := range findByBasename(projectRoot, bn, 25) {
				if !seen[m] {
					seen[m] = true
					matches = append(matches, m)
				}
			}
		}
		sort.Strings(matches)

		chosen := chooseBestMatch(normalized, matches)
		if chosen != "" {
			if strings.Contains(desc, raw) {
				desc = strings.ReplaceAll(desc, raw, chosen)
			}
			if strings.Contains(desc, normalized) {
				desc = strings.ReplaceAll(desc, normalized, chosen)
			}
			messages = append(messages, fmt.Sprintf("corrected missing path '%s' -> '%s'", raw, chosen))
			existingAny++
			continue
		}

		if len(matches) > 0 {
			n := len(matches)
			if n > 5 {
				n = 5
			}
			missingUnresolved = append(missingUnresolved,
				fmt.Sprintf("ambiguous missing path '%s' (matches=%s)", raw, strings.Join(matches[:n], ",")))
		} else {
			missingUnresolved = append(missingUnresolved, fmt.Sprintf("missing path '%s' (no matches found)", raw))
		}
	}

	t.Description = desc

	if len(missingUnresolved) == 0 {
		return true, messages
	}

	if readActions[action] {
		messages = append(messages, missingUnresolved[0])
		return false, messages
	}

	if existingAny == 0 {
		messages = append(messages, missingUnresolved[0])
		return false, messages
	}

	messages = append(messages, "ignored missing output path(s); at least one input path exists")
	return true, messages
}

// PathSignature builds the repeated-preflight-failure signature namespaced
// for the path check.
func PathSignature(t *task.Task, messages []string) string {
	first := ""
	if len(messages) > 0 {
		first = messages[0]
	}
	return "paths::" + string(t.Action) + "::" + first
}

// OrderActions returns action names ordered read-first, mirroring
// _order_available_actions. Ties keep original relative order.
func OrderActions(actions []task.ActionType) []task.ActionType {
	type idxAction struct {
		a   task.ActionType
		idx int
	}
	seen := map[task.ActionType]bool{}
	var cleaned []idxAction
	for i, a := range actions {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		cleaned = append(cleaned, idxAction{a, i})
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		pi, pj := cleaned[i].a.Priority(), cleaned[j].a.Priority()
		if pi != pj {
			return pi < pj
		}
		return cleaned[i].idx < cleaned[j].idx
	})
	out := make([]task.ActionType, len(cleaned))
	for i, c := range cleaned {
		out[i] = c.a
	}
	return out
}
