// Package budget tracks the orchestrator's resource consumption (tokens,
// steps, wall-clock) and the signature-repetition circuit breakers that
// stop a runaway loop.
package budget

import (
	"fmt"
	"time"

	"github.com/ilkoid/revorc/pkg/toolerr"
)

// Resource tracks consumption against fixed caps. Exceeded when any one cap
// is passed.
type Resource struct {
	TokensUsed     int
	Steps          int
	WallclockStart time.Time
	TokenCap       int
	StepCap        int
	WallclockCap   time.Duration
}

// NewResource builds a Resource budget starting now.
func NewResource(tokenCap, stepCap int, wallclockCap time.Duration) *Resource {
	return &Resource{
		WallclockStart: time.Now(),
		TokenCap:       tokenCap,
		StepCap:        stepCap,
		WallclockCap:   wallclockCap,
	}
}

// Exceeded reports whether any cap has been passed.
func (r *Resource) Exceeded() (bool, string) {
	if r.TokenCap > 0 && r.TokensUsed >= r.TokenCap {
		return true, fmt.Sprintf("token budget exhausted (%d/%d)", r.TokensUsed, r.TokenCap)
	}
	if r.StepCap > 0 && r.Steps >= r.StepCap {
		return true, fmt.Sprintf("step budget exhausted (%d/%d)", r.Steps, r.StepCap)
	}
	if r.WallclockCap > 0 && time.Since(r.WallclockStart) >= r.WallclockCap {
		return true, fmt.Sprintf("wallclock budget exhausted (%s/%s)", time.Since(r.WallclockStart), r.WallclockCap)
	}
	return false, ""
}

// RecordStep increments the step counter and adds consumed tokens.
func (r *Resource) RecordStep(tokens int) {
	r.Steps++
	r.TokensUsed += tokens
}

// DefaultRecoveryBudgets is the default per-error-kind retry allowance
// before the corresponding circuit breaker trips.
var DefaultRecoveryBudgets = map[toolerr.Kind]int{
	toolerr.Transient:        8,
	toolerr.Timeout:          6,
	toolerr.Network:          6,
	toolerr.NotFound:         3,
	toolerr.SyntaxError:      3,
	toolerr.ValidationError:  3,
	toolerr.Conflict:         2,
	toolerr.Unknown:          2,
	toolerr.PermissionDenied: 1,
}

// RecoveryBudgets is a mutable per-kind retry counter, decremented on each
// verification failure classified under that kind.
type RecoveryBudgets struct {
	remaining map[toolerr.Kind]int
}

// NewRecoveryBudgets builds a RecoveryBudgets initialized from defaults (or
// overrides, if non-nil).
func NewRecoveryBudgets(overrides map[toolerr.Kind]int) *RecoveryBudgets {
	remaining := make(map[toolerr.Kind]int, len(DefaultRecoveryBudgets))
	for k, v := range DefaultRecoveryBudgets {
		remaining[k] = v
	}
	for k, v := range overrides {
		remaining[k] = v
	}
	return &RecoveryBudgets{remaining: remaining}
}

// Decrement consumes one unit of budget for kind and reports whether budget
// remains (false means the kind's circuit breaker should trip now).
func (b *RecoveryBudgets) Decrement(kind toolerr.Kind) bool {
	b.remaining[kind]--
	return b.remaining[kind] > 0
}

// Remaining returns the current counter for kind.
func (b *RecoveryBudgets) Remaining(kind toolerr.Kind) int {
	return b.remaining[kind]
}

// TripKind is which circuit breaker fired.
type TripKind string

const (
	TripPreflight          TripKind = "preflight"
	TripRepeatAction       TripKind = "repeat_action"
	TripRepeatVerification TripKind = "repeat_verification"
	TripRecoveryExhausted  TripKind = "recovery_exhausted"
)

// Trip describes a fired circuit breaker; once non-nil the orchestrator
// loop must stop with no_retry=true.
type Trip struct {
	Kind      TripKind
	Signature string
	Message   string
}

// SignatureThreshold is the repeat count that trips any signature-based
// circuit breaker.
const SignatureThreshold = 3

// SignatureTracker counts repeated occurrences of opaque signature strings
// and reports when a threshold is crossed, grounded on the orchestrator's
// preflight/action/verification-failure signature dictionaries.
type SignatureTracker struct {
	counts map[string]int
}

// NewSignatureTracker builds an empty tracker.
func NewSignatureTracker() *SignatureTracker {
	return &SignatureTracker{counts: make(map[string]int)}
}

// Record increments the count for signature and reports the new count.
func (t *SignatureTracker) Record(signature string) int {
	t.counts[signature]++
	return t.counts[signature]
}

// Tripped reports whether signature has reached SignatureThreshold.
func (t *SignatureTracker) Tripped(signature string) bool {
	return t.counts[signature] >= SignatureThreshold
}

// Count returns the current count for signature without modifying it.
func (t *SignatureTracker) Count(signature string) int {
	return t.counts[signature]
}
