package toolerr

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	assert.True(t, Transient.IsRetryable())
	assert.True(t, Timeout.IsRetryable())
	assert.False(t, NotFound.IsRetryable())

	assert.True(t, NotFound.RecoverableByAgent())
	assert.False(t, PermissionDenied.RecoverableByAgent())

	assert.True(t, PermissionDenied.RequiresUserInput())
	assert.True(t, Conflict.RequiresUserInput())
	assert.False(t, Transient.RequiresUserInput())
}

func TestFromExceptionClassifiesByMessage(t *testing.T) {
	cases := map[string]Kind{
		"open foo.go: no such file or directory": NotFound,
		"open foo.go: permission denied":          PermissionDenied,
		"mkdir: foo already exists":               Conflict,
		"context deadline exceeded":               Timeout,
		"dial tcp: connection refused":            Network,
		"1:1: syntax error near unexpected token":  SyntaxError,
		"invalid argument to tool":                ValidationError,
		"something went sideways":                 Unknown,
	}
	for msg, want := range cases {
		e := FromException(fmt.Errorf(msg), "read_file")
		assert.Equal(t, want, e.Kind, "message %q", msg)
	}
}

func TestFromExceptionClassifiesBySentinelWrap(t *testing.T) {
	wrapped := fmt.Errorf("custom context: %w", os.ErrNotExist)
	e := FromException(wrapped, "read_file")
	// os.ErrNotExist text contains "file does not exist", not matched by the
	// sentinel errors.Is branches here, so falls through to message match.
	assert.Contains(t, []Kind{NotFound, Unknown}, e.Kind)
}

func TestErrorToMapAndFromMapRoundTrip(t *testing.T) {
	e := NewFileNotFound("main.go", "read_file")
	m := e.ToMap()

	restored := FromMap(m)
	assert.Equal(t, e.Kind, restored.Kind)
	assert.Equal(t, e.Message, restored.Message)
	assert.Equal(t, e.Recoverable, restored.Recoverable)
}

func TestFromMapUnknownKindFallsBack(t *testing.T) {
	restored := FromMap(map[string]any{"error_type": "not_a_real_kind", "error": "oops"})
	assert.Equal(t, Unknown, restored.Kind)
	assert.Equal(t, "oops", restored.Message)
}

func TestNewValidationAttachesInvalidParams(t *testing.T) {
	e := NewValidation("missing field", map[string]any{"field": "path"}, "write_file")
	assert.Equal(t, ValidationError, e.Kind)
	assert.Equal(t, map[string]any{"field": "path"}, e.Context["invalid_params"])
}

func TestErrorSatisfiesErrorInterface(t *testing.T) {
	var err error = NewTimeout("run tests", 30, "run_command")
	assert.Contains(t, err.Error(), "timed out")
}
