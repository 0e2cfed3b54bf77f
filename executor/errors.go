//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound reports a call to a name absent from the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrTypeMismatch reports a value of the wrong shape for an operation,
	// such as a non-array input to map-each or an ordering comparison
	// between incompatible types. It is never silently coerced to false.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotImplemented reports execution of a pattern variant that is
	// declared for catalog compatibility but not executed by this core.
	ErrNotImplemented = errors.New("pattern not implemented")

	// ErrInvalidInput reports call input rejected by the tool's input schema.
	ErrInvalidInput = errors.New("invalid input")
)

// StepError tags a failure with the failing step or pattern element so every
// runtime failure names its origin.
type StepError struct {
	// Step is the failing step id or pattern element label.
	Step string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }

// InvocationError wraps the external invoker's failure for one backend tool
// call.
type InvocationError struct {
	// Tool is the invoked tool name or backend reference.
	Tool string

	// Err is the invoker's error.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool invocation %q failed: %v", e.Tool, e.Err)
}

// Unwrap returns the invoker's error.
func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError reports an elapsed pattern or step timeout. It is always
// distinguishable from an ordinary invocation failure.
type TimeoutError struct {
	// Op names the timed-out operation (pattern type or step id).
	Op string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// SagaError reports a saga that did not complete. Status records whether
// compensation fully succeeded (CompensatedFailure), partially or fully
// failed (CompensationFailed), or the saga timed out with all attempted
// compensations succeeding (TimedOut).
type SagaError struct {
	// Status is the saga's terminal status.
	Status SagaStatus

	// Original is the forward-pass failure that triggered compensation.
	Original error

	// CompensationErrors collects every failed compensation attempt, in
	// attempt (reverse completion) order. Empty when all attempts succeeded.
	CompensationErrors []error

	// Compensated lists step ids whose compensation succeeded, in attempt
	// order.
	Compensated []string

	// Skipped lists completed step ids that declared no compensation.
	Skipped []string
}

// Error implements the error interface.
func (e *SagaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga %s: %v", e.Status, e.Original)
	if len(e.CompensationErrors) > 0 {
		fmt.Fprintf(&b, " (compensation errors: %d)", len(e.CompensationErrors))
	}
	return b.String()
}

// Unwrap returns the forward-pass failure.
func (e *SagaError) Unwrap() error { return e.Original }
