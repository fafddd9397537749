package node

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry and node-level failures.
var (
	ErrNotFound          = errors.New("node type not registered")
	ErrAlreadyRegistered = errors.New("node type already registered")
	ErrTimeout           = errors.New("operation timed out")
	ErrCancelled         = errors.New("execution cancelled")
)

// ValidationError reports that a node's declared parameters failed either
// JSON Schema validation or a handler's cross-field Validate check.
type ValidationError struct {
	NodeID  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" && e.Field != "" {
		return fmt.Sprintf("node %q: field %q: %s", e.NodeID, e.Field, e.Message)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Message)
	}
	return e.Message
}

// NewValidationError constructs a ValidationError.
func NewValidationError(nodeID, field, message string) *ValidationError {
	return &ValidationError{NodeID: nodeID, Field: field, Message: message}
}

// ExecutionError wraps a failure raised by a handler's Execute call,
// carrying whether the caller (the retry control node) may retry it.
type ExecutionError struct {
	NodeID    string
	NodeType  string
	Err       error
	Retryable bool
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error represents a transient condition.
func (e *ExecutionError) IsRetryable() bool { return e.Retryable }

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(nodeID, nodeType string, err error, retryable bool) *ExecutionError {
	return &ExecutionError{NodeID: nodeID, NodeType: nodeType, Err: err, Retryable: retryable}
}

// IsRetryableError reports whether err should be retried by the retry
// control node: explicit ExecutionError.Retryable, or timeout.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.IsRetryable()
	}
	return false
}
