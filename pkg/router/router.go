// Package router classifies a user request into an execution mode and the
// agent configuration that mode implies (research depth, review strictness,
// parallelism, retry budget).
package router

import "strings"

// Mode is the closed set of execution modes a request can route to.
type Mode string

const (
	ModeQuickEdit      Mode = "quick_edit"
	ModeFocusedFeature Mode = "focused_feature"
	ModeFullFeature    Mode = "full_feature"
	ModeRefactor       Mode = "refactor"
	ModeTestFocus      Mode = "test_focus"
	ModeExploration    Mode = "exploration"
	ModeSecurityAudit  Mode = "security_audit"
)

// Priority ranks how urgently a routed request should be handled.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Decision is everything the router decided about how to run a request.
type Decision struct {
	Mode                Mode
	EnableLearning      bool
	EnableResearch      bool
	EnableReview        bool
	EnableValidation    bool
	ReviewStrictness    string // strict, moderate, lenient
	ParallelWorkers     int
	EnableActionReview  bool
	ResearchDepth       string // shallow, medium, deep
	MaxRetries          int
	Priority            Priority
	Reasoning           string
}

// RepoStats is optional repository context the router may use to refine a
// decision (not currently used to branch, but accepted for forward
// compatibility with config-driven overrides).
type RepoStats struct {
	FileCount int
	HasTests  bool
}

// Router classifies requests using keyword heuristics.
type Router struct{}

// New builds a Router.
func New() *Router {
	return &Router{}
}

// Route classifies userRequest into a Decision. Checks run in a fixed
// priority order: security audit, structural change, test focus, refactor,
// full feature, exploration, and finally the quick_edit default.
func (r *Router) Route(userRequest string, stats RepoStats) Decision {
	text := strings.ToLower(userRequest)

	switch {
	case isSecurityAudit(text):
		return Decision{
			Mode: ModeSecurityAudit, EnableLearning: true, EnableResearch: true,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "strict",
			ParallelWorkers: 1, EnableActionReview: true, ResearchDepth: "deep",
			MaxRetries: 3, Priority: PriorityCritical,
			Reasoning: "security audit requires thorough analysis and strict review",
		}
	case isStructuralChange(text):
		return Decision{
			Mode: ModeFullFeature, EnableLearning: true, EnableResearch: true,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "strict",
			ParallelWorkers: 1, EnableActionReview: true, ResearchDepth: "deep",
			MaxRetries: 3, Priority: PriorityHigh,
			Reasoning: "structural changes require deep investigation to avoid duplication",
		}
	case isTestFocus(text):
		return Decision{
			Mode: ModeTestFocus, EnableLearning: false, EnableResearch: false,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "moderate",
			ParallelWorkers: 2, ResearchDepth: "shallow", MaxRetries: 2,
			Priority: PriorityHigh,
			Reasoning: "test-focused task requires validation but minimal research",
		}
	case isRefactor(text):
		return Decision{
			Mode: ModeRefactor, EnableLearning: true, EnableResearch: true,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "strict",
			ParallelWorkers: 1, ResearchDepth: "deep", MaxRetries: 3,
			Priority: PriorityHigh,
			Reasoning: "refactoring requires deep analysis and careful review",
		}
	case isFullFeature(text) && isBroadScope(text):
		return Decision{
			Mode: ModeFullFeature, EnableLearning: true, EnableResearch: true,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "moderate",
			ParallelWorkers: 3, ResearchDepth: "medium", MaxRetries: 3,
			Priority: PriorityNormal,
			Reasoning: "full feature implementation with all agents enabled",
		}
	case isFullFeature(text):
		return Decision{
			Mode: ModeFocusedFeature, EnableLearning: false, EnableResearch: true,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "moderate",
			ParallelWorkers: 2, ResearchDepth: "shallow", MaxRetries: 2,
			Priority: PriorityNormal,
			Reasoning: "single, narrowly-scoped feature addition",
		}
	case isExploration(text):
		return Decision{
			Mode: ModeExploration, EnableLearning: true, EnableResearch: true,
			EnableReview: false, EnableValidation: false, ParallelWorkers: 1,
			ResearchDepth: "deep", MaxRetries: 1, Priority: PriorityLow,
			Reasoning: "exploratory task focused on research and learning",
		}
	default:
		return Decision{
			Mode: ModeQuickEdit, EnableLearning: false, EnableResearch: false,
			EnableReview: true, EnableValidation: true, ReviewStrictness: "lenient",
			ParallelWorkers: 2, ResearchDepth: "shallow", MaxRetries: 2,
			Priority: PriorityNormal,
			Reasoning: "simple quick edit with minimal overhead",
		}
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func isSecurityAudit(text string) bool {
	return containsAny(text, "security audit", "vulnerability", "cve", "exploit",
		"penetration test", "security scan", "threat")
}

func isStructuralChange(text string) bool {
	structureKeywords := []string{
		"prisma", "schema", "database", "enum", "model", "migration", "sequelize",
		"typeorm", "mongoose", "table", "entity", "sql",
		"class", "interface", "type", "typedef", "struct", "dataclass",
		"readme", "documentation", "docs", "api documentation", "guide", "tutorial",
		"config", "configuration", "settings", "environment", ".env", "config file",
	}
	actionVerbs := []string{"add", "create", "update", "modify", "change", "define", "implement", "build", "generate"}
	return containsAny(text, structureKeywords...) && containsAny(text, actionVerbs...)
}

func isTestFocus(text string) bool {
	hasTest := containsAny(text, "test", "testing", "coverage", "pytest")
	notFeature := !containsAny(text, "add", "build", "implement", "create", "feature")
	return hasTest && notFeature
}

func isRefactor(text string) bool {
	return containsAny(text, "refactor", "cleanup", "restructure", "reorganize",
		"simplify", "optimize code", "improve structure")
}

func isBroadScope(text string) bool {
	return containsAny(text, "entire", "whole", "system", "across the codebase",
		"multiple modules", "end-to-end", "from scratch", "overhaul", "platform")
}

func isFullFeature(text string) bool {
	return containsAny(text, "add", "build", "implement", "create", "feature",
		"functionality", "new capability", "integrate")
}

func isExploration(text string) bool {
	return containsAny(text, "explore", "investigate", "analyze", "research",
		"understand", "how does", "what is", "explain")
}
