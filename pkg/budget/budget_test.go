package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ilkoid/revorc/pkg/toolerr"
)

func TestResourceExceededByTokenCap(t *testing.T) {
	r := NewResource(10, 0, 0)
	exceeded, msg := r.Exceeded()
	assert.False(t, exceeded)

	r.RecordStep(10)
	exceeded, msg = r.Exceeded()
	assert.True(t, exceeded)
	assert.Contains(t, msg, "token budget")
}

func TestResourceExceededByStepCap(t *testing.T) {
	r := NewResource(0, 2, 0)
	r.RecordStep(0)
	assert.False(t, firstBool(r.Exceeded()))
	r.RecordStep(0)
	assert.True(t, firstBool(r.Exceeded()))
}

func TestResourceExceededByWallclock(t *testing.T) {
	r := NewResource(0, 0, time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	exceeded, msg := r.Exceeded()
	assert.True(t, exceeded)
	assert.Contains(t, msg, "wallclock budget")
}

func TestResourceNeverExceededWithoutCaps(t *testing.T) {
	r := NewResource(0, 0, 0)
	r.RecordStep(1_000_000)
	assert.False(t, firstBool(r.Exceeded()))
}

func firstBool(b bool, _ string) bool { return b }

func TestRecoveryBudgetsDecrementAndTrip(t *testing.T) {
	rb := NewRecoveryBudgets(map[toolerr.Kind]int{toolerr.Conflict: 2})
	assert.Equal(t, 2, rb.Remaining(toolerr.Conflict))

	assert.True(t, rb.Decrement(toolerr.Conflict))
	assert.Equal(t, 1, rb.Remaining(toolerr.Conflict))

	assert.False(t, rb.Decrement(toolerr.Conflict))
	assert.Equal(t, 0, rb.Remaining(toolerr.Conflict))
}

func TestRecoveryBudgetsFallsBackToDefaults(t *testing.T) {
	rb := NewRecoveryBudgets(nil)
	assert.Equal(t, DefaultRecoveryBudgets[toolerr.Transient], rb.Remaining(toolerr.Transient))
}

func TestSignatureTrackerTripsAtThreshold(t *testing.T) {
	tr := NewSignatureTracker()
	sig := "edit::main.go"
	for i := 0; i < SignatureThreshold-1; i++ {
		tr.Record(sig)
		assert.False(t, tr.Tripped(sig))
	}
	tr.Record(sig)
	assert.True(t, tr.Tripped(sig))
	assert.Equal(t, SignatureThreshold, tr.Count(sig))
}

func TestSignatureTrackerIsolatesSignatures(t *testing.T) {
	tr := NewSignatureTracker()
	tr.Record("a")
	tr.Record("a")
	assert.Equal(t, 0, tr.Count("b"))
}
