//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/log"
	"github.com/toolmesh/toolmesh/registry"
)

// SagaStatus is the lifecycle state of one saga execution.
type SagaStatus string

// Saga statuses.
const (
	// SagaExecuting means the forward pass is in progress.
	SagaExecuting SagaStatus = "executing"

	// SagaCompleted means every forward step succeeded.
	SagaCompleted SagaStatus = "completed"

	// SagaCompensating means a forward step failed and undo is in progress.
	SagaCompensating SagaStatus = "compensating"

	// SagaCompensatedFailure means the forward pass failed and every
	// attempted compensation succeeded.
	SagaCompensatedFailure SagaStatus = "compensated_failure"

	// SagaCompensationFailed means at least one compensation attempt failed;
	// manual intervention may be required.
	SagaCompensationFailed SagaStatus = "compensation_failed"

	// SagaTimedOut means the saga's own timeout elapsed and every attempted
	// compensation succeeded.
	SagaTimedOut SagaStatus = "timed_out"
)

// SagaExecution is the per-call state of one saga run. It is exclusively
// owned by the run and never shared across calls.
type SagaExecution struct {
	// ID uniquely identifies this run.
	ID string

	// Status is the current lifecycle state.
	Status SagaStatus

	// Completed lists step ids that finished the forward pass, in completion
	// order. Compensation walks it backwards.
	Completed []string

	// StepResults records each completed step's output by step id.
	StepResults map[string]any
}

// runSaga executes forward steps in order and, on any forward failure,
// compensates every completed step in strict reverse completion order. The
// saga's timeout is treated as a forward failure: compensation still runs,
// detached from the expired deadline.
func (e *Executor) runSaga(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.SagaSpec,
	input any,
) (any, error) {
	exec := &SagaExecution{
		ID:          uuid.NewString(),
		Status:      SagaExecuting,
		StepResults: make(map[string]any, len(p.Steps)),
	}

	sagaCtx := ctx
	if p.TimeoutMS > 0 {
		var cancel context.CancelFunc
		sagaCtx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	prev := input
	for i := range p.Steps {
		step := &p.Steps[i]

		stepInput := prev
		if step.Input != nil {
			resolved, err := binding.Resolve(step.Input, input, exec.StepResults)
			if err != nil {
				return nil, e.compensate(ctx, reg, p, exec, input, &StepError{Step: step.ID, Err: err})
			}
			stepInput = resolved
		}

		out, err := e.runSagaStep(sagaCtx, reg, step, stepInput)
		if err != nil {
			return nil, e.compensate(ctx, reg, p, exec, input, &StepError{Step: step.ID, Err: err})
		}
		exec.StepResults[step.ID] = out
		exec.Completed = append(exec.Completed, step.ID)
		prev = out
	}
	exec.Status = SagaCompleted

	if p.Output != nil {
		return binding.Resolve(p.Output, input, exec.StepResults)
	}
	return prev, nil
}

// runSagaStep runs one forward step under its own timeout, if declared.
// Deadline expiry surfaces as a TimeoutError naming the step.
func (e *Executor) runSagaStep(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	step *registry.SagaStep,
	input any,
) (any, error) {
	stepCtx := ctx
	if step.TimeoutMS > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	out, err := e.runOperation(stepCtx, reg, step.Action, input)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		// The saga's deadline is reported by the caller; only a step-local
		// deadline is named here.
		if ctxErr := ctx.Err(); ctxErr == nil {
			return nil, &TimeoutError{Op: step.ID}
		}
	}
	return out, err
}

// compensate undoes the completed steps in reverse completion order, then
// builds the saga's terminal error. Compensation runs detached from the
// incoming deadline so a saga timeout cannot kill the undo actions. Every
// compensation is attempted even after one fails.
func (e *Executor) compensate(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.SagaSpec,
	exec *SagaExecution,
	input any,
	original error,
) *SagaError {
	exec.Status = SagaCompensating
	log.Debugf("saga %s compensating %d completed step(s): %v", exec.ID, len(exec.Completed), original)

	timedOut := p.TimeoutMS > 0 && errors.Is(original, context.DeadlineExceeded)
	if timedOut {
		original = &TimeoutError{Op: string(registry.PatternSaga)}
	}

	undoCtx := context.WithoutCancel(ctx)
	sagaErr := &SagaError{Original: original}

	steps := make(map[string]*registry.SagaStep, len(p.Steps))
	for i := range p.Steps {
		steps[p.Steps[i].ID] = &p.Steps[i]
	}

	for i := len(exec.Completed) - 1; i >= 0; i-- {
		id := exec.Completed[i]
		step := steps[id]
		if step.Compensate == nil {
			sagaErr.Skipped = append(sagaErr.Skipped, id)
			continue
		}

		undoInput := exec.StepResults[id]
		if step.Compensate.Input != nil {
			resolved, err := binding.Resolve(step.Compensate.Input, input, exec.StepResults)
			if err != nil {
				sagaErr.CompensationErrors = append(sagaErr.CompensationErrors, &StepError{Step: id, Err: err})
				continue
			}
			undoInput = resolved
		}

		if _, err := e.runOperation(undoCtx, reg, step.Compensate.StepOperation, undoInput); err != nil {
			sagaErr.CompensationErrors = append(sagaErr.CompensationErrors, &StepError{Step: id, Err: err})
			continue
		}
		sagaErr.Compensated = append(sagaErr.Compensated, id)
	}

	switch {
	case len(sagaErr.CompensationErrors) > 0:
		exec.Status = SagaCompensationFailed
	case timedOut:
		exec.Status = SagaTimedOut
	default:
		exec.Status = SagaCompensatedFailure
	}
	sagaErr.Status = exec.Status
	return sagaErr
}
