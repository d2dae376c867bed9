package orchestrator

import "math"

// AnchoringWeights tunes the completion-grounding score; these are
// deliberately exposed knobs rather than pinned constants (an Open
// Question in the source spec), defaulted to values that weight concrete
// evidence over raw claim volume.
type AnchoringWeights struct {
	ToolDampening      float64 // log-dampens the distinct-tools-used bonus
	UnresolvedPenalty  float64
	MissingFilePenalty float64
	StopThreshold      float64
	MismatchThreshold  float64
}

// DefaultAnchoringWeights are reasonable defaults absent configuration.
var DefaultAnchoringWeights = AnchoringWeights{
	ToolDampening:      1.0,
	UnresolvedPenalty:  0.15,
	MissingFilePenalty: 0.2,
	StopThreshold:      0.35,
	MismatchThreshold:  3,
}

// Evidence summarizes one iteration's history for anchoring purposes.
type Evidence struct {
	Claims            int
	Citations         int
	TestOutputs       int
	DistinctTools     int
	UnresolvedSymbols int
	MissingFiles      int
}

// Score computes the anchoring score: evidence density, dampened
// logarithmically by distinct tool usage, penalized for unresolved symbols
// and missing files. Higher is more grounded.
func Score(e Evidence, w AnchoringWeights) float64 {
	claims := e.Claims
	if claims == 0 {
		claims = 1
	}
	density := float64(e.Citations+e.TestOutputs) / float64(claims)
	dampening := math.Log(1+float64(e.DistinctTools)) * w.ToolDampening
	if dampening < 1 {
		dampening = 1
	}
	score := density / dampening
	score -= float64(e.UnresolvedSymbols) * w.UnresolvedPenalty
	score -= float64(e.MissingFiles) * w.MissingFilePenalty
	if score < 0 {
		score = 0
	}
	return score
}

// MismatchRisk estimates how likely the evidence contradicts a completion
// claim; ≥ w.MismatchThreshold forces a structural-check branch.
func MismatchRisk(e Evidence) float64 {
	return float64(e.UnresolvedSymbols + e.MissingFiles)
}

// NeedsMoreResearch reports whether the score falls below the stop
// threshold, meaning the loop should inject more research before accepting
// completion.
func NeedsMoreResearch(score float64, w AnchoringWeights) bool {
	return score < w.StopThreshold
}

// NeedsStructuralCheck reports whether the mismatch risk crossed the
// configured threshold.
func NeedsStructuralCheck(risk float64, w AnchoringWeights) bool {
	return risk >= w.MismatchThreshold
}
