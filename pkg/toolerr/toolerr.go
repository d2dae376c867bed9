// Package toolerr implements the closed-set tool error taxonomy: a small
// vocabulary of error kinds tools report, plus the derived properties the
// orchestrator uses to decide whether to retry, recover unattended, or stop
// and ask the user.
package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of a fixed set of tool error classifications. No other values
// are valid; unrecognized input classifies as Unknown.
type Kind string

const (
	Transient        Kind = "transient"
	Timeout          Kind = "timeout"
	Network          Kind = "network"
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	SyntaxError      Kind = "syntax_error"
	ValidationError  Kind = "validation_error"
	Conflict         Kind = "conflict"
	Unknown          Kind = "unknown"
)

// IsRetryable reports whether this kind should trigger automatic retry.
func (k Kind) IsRetryable() bool {
	switch k {
	case Transient, Timeout, Network:
		return true
	default:
		return false
	}
}

// RecoverableByAgent reports whether the orchestrator can recover without
// user input.
func (k Kind) RecoverableByAgent() bool {
	switch k {
	case Transient, Timeout, Network, NotFound, SyntaxError, ValidationError:
		return true
	default:
		return false
	}
}

// RequiresUserInput reports whether this kind can only be resolved by a
// human decision.
func (k Kind) RequiresUserInput() bool {
	switch k {
	case PermissionDenied, Conflict:
		return true
	default:
		return false
	}
}

// Error is the structured representation every tool result carries on
// failure.
type Error struct {
	Kind              Kind
	Message           string
	Context           map[string]any
	Recoverable       bool
	SuggestedRecovery []string
	OriginalError     string
}

func (e *Error) Error() string {
	return e.Message
}

// ToMap renders the error into the JSON-shaped payload tools exchange with
// the dispatcher.
func (e *Error) ToMap() map[string]any {
	return map[string]any{
		"error":              e.Message,
		"error_type":         string(e.Kind),
		"recoverable":        e.Recoverable,
		"suggested_recovery": e.SuggestedRecovery,
		"context":            e.Context,
		"original_error":     e.OriginalError,
	}
}

// FromMap reconstructs an Error from a decoded JSON payload, e.g. one a tool
// reported over the wire. Unknown error_type values fall back to Unknown.
func FromMap(data map[string]any) *Error {
	kind := Unknown
	if s, ok := data["error_type"].(string); ok {
		if k := Kind(s); isValidKind(k) {
			kind = k
		}
	}
	msg, _ := data["error"].(string)
	if msg == "" {
		msg, _ = data["message"].(string)
	}
	if msg == "" {
		msg = "Unknown error"
	}
	recoverable := true
	if r, ok := data["recoverable"].(bool); ok {
		recoverable = r
	}
	var recovery []string
	if raw, ok := data["suggested_recovery"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				recovery = append(recovery, s)
			}
		}
	}
	ctx, _ := data["context"].(map[string]any)
	orig, _ := data["original_error"].(string)
	return &Error{
		Kind:              kind,
		Message:           msg,
		Context:           ctx,
		Recoverable:       recoverable,
		SuggestedRecovery: recovery,
		OriginalError:     orig,
	}
}

func isValidKind(k Kind) bool {
	switch k {
	case Transient, Timeout, Network, NotFound, PermissionDenied, SyntaxError, ValidationError, Conflict, Unknown:
		return true
	default:
		return false
	}
}

// FromException classifies a Go error raised during tool execution into a
// structured Error, mirroring the original classification priority order:
// not-found, permission, conflict, timeout, network, syntax, validation,
// else unknown.
func FromException(err error, toolName string) *Error {
	kind := classify(err)
	msg := fmt.Sprintf("%s: %s", toolName, err.Error())
	return &Error{
		Kind:    kind,
		Message: msg,
		Context: map[string]any{
			"exception_type": fmt.Sprintf("%T", err),
			"tool":           toolName,
		},
		Recoverable:       kind.RecoverableByAgent(),
		SuggestedRecovery: suggestedRecovery(kind),
		OriginalError:     err.Error(),
	}
}

func classify(err error) Kind {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, errNotFound) || strings.Contains(msg, "no such file") || strings.Contains(msg, "not found"):
		return NotFound
	case errors.Is(err, errPermission) || strings.Contains(msg, "permission denied"):
		return PermissionDenied
	case errors.Is(err, errConflict) || strings.Contains(msg, "already exists"):
		return Conflict
	case errors.Is(err, errTimeout) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return Timeout
	case errors.Is(err, errNetwork) || strings.Contains(msg, "connection"):
		return Network
	case strings.Contains(msg, "syntax error") || strings.Contains(msg, "parse error"):
		return SyntaxError
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation"):
		return ValidationError
	default:
		return Unknown
	}
}

// Unexported sentinel errors that classify matches with errors.Is ahead of
// the message text. Code outside this package cannot wrap them, so errors
// from other packages are classified by their message text alone.
var (
	errNotFound   = errors.New("not found")
	errPermission = errors.New("permission denied")
	errConflict   = errors.New("conflict")
	errTimeout    = errors.New("timeout")
	errNetwork    = errors.New("network")
)

func suggestedRecovery(kind Kind) []string {
	switch kind {
	case NotFound:
		return []string{
			"use search or list_dir to locate the missing file",
			"check if the path is relative to the workspace root",
			"verify the file name spelling and extension",
		}
	case PermissionDenied:
		return []string{
			"check workspace permissions for the target path",
			"verify the file or directory is not in use",
			"consider using a different file path",
		}
	case SyntaxError:
		return []string{
			"review the generated code for syntax issues",
			"use a linter to identify the specific error location",
		}
	case ValidationError:
		return []string{
			"verify the tool arguments match the expected schema",
			"check the tool documentation for required parameters",
		}
	case Timeout:
		return []string{
			"the operation took too long; consider breaking it into smaller steps",
			"check if the command is waiting for user input",
		}
	case Network:
		return []string{
			"check network connectivity",
			"retry the operation after a short delay",
		}
	case Conflict:
		return []string{
			"the resource already exists or has conflicting changes",
			"consider using a different name or explicitly overwrite",
		}
	case Transient:
		return []string{
			"retry the operation after a short delay",
		}
	default:
		return nil
	}
}

// NewFileNotFound builds a NOT_FOUND error for a missing file path.
func NewFileNotFound(path, toolName string) *Error {
	return &Error{
		Kind:        NotFound,
		Message:     fmt.Sprintf("%s: file not found: %s", toolName, path),
		Context:     map[string]any{"file_path": path, "tool": toolName},
		Recoverable: true,
		SuggestedRecovery: []string{
			"use search or list_dir to locate the file",
			"check if the path is relative to the workspace root",
		},
	}
}

// NewPermissionDenied builds a PERMISSION_DENIED error.
func NewPermissionDenied(path, toolName string) *Error {
	return &Error{
		Kind:        PermissionDenied,
		Message:     fmt.Sprintf("%s: permission denied: %s", toolName, path),
		Context:     map[string]any{"path": path, "tool": toolName},
		Recoverable: false,
		SuggestedRecovery: []string{
			fmt.Sprintf("check workspace permissions for %s", path),
			"verify the file or directory is not in use",
		},
	}
}

// NewValidation builds a VALIDATION_ERROR with the offending parameters
// attached for diagnostics.
func NewValidation(msg string, invalidParams map[string]any, toolName string) *Error {
	ctx := map[string]any{"tool": toolName}
	if invalidParams != nil {
		ctx["invalid_params"] = invalidParams
	}
	return &Error{
		Kind:        ValidationError,
		Message:     fmt.Sprintf("%s: validation error - %s", toolName, msg),
		Context:     ctx,
		Recoverable: true,
		SuggestedRecovery: []string{
			"verify the tool arguments match the expected schema",
			"check the tool documentation for required parameters",
		},
	}
}

// NewTimeout builds a TIMEOUT error, optionally noting the timeout duration
// in seconds (0 to omit).
func NewTimeout(operation string, timeoutSeconds int, toolName string) *Error {
	msg := fmt.Sprintf("%s: operation timed out - %s", toolName, operation)
	if timeoutSeconds > 0 {
		msg += fmt.Sprintf(" (timeout: %ds)", timeoutSeconds)
	}
	return &Error{
		Kind:    Timeout,
		Message: msg,
		Context: map[string]any{"operation": operation, "timeout": timeoutSeconds, "tool": toolName},
		SuggestedRecovery: []string{
			"the operation took too long; consider breaking it into smaller steps",
		},
		Recoverable: true,
	}
}
