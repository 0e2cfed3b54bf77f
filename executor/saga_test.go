//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/toolmesh/registry"
)

// orderSaga is a three-step reserve/charge/ship saga; the ship step's
// behavior is controlled per test through the invoker.
func orderSaga(t *testing.T) *registry.CompiledRegistry {
	t.Helper()
	return compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "place_order",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						Steps: []registry.SagaStep{
							{
								ID:     "reserve",
								Action: registry.StepOperation{Tool: "backend/reserve"},
								Compensate: &registry.CompensationSpec{
									StepOperation: registry.StepOperation{Tool: "backend/release"},
								},
							},
							{
								ID:     "charge",
								Action: registry.StepOperation{Tool: "backend/charge"},
								Compensate: &registry.CompensationSpec{
									StepOperation: registry.StepOperation{Tool: "backend/refund"},
								},
							},
							{
								ID:     "ship",
								Action: registry.StepOperation{Tool: "backend/ship"},
							},
						},
					},
				},
			},
		},
	})
}

func TestSagaCompletes(t *testing.T) {
	invoker := newRecordingInvoker()
	invoker.on("backend/reserve", func(any) (any, error) { return map[string]any{"hold": "h1"}, nil })
	invoker.on("backend/charge", func(input any) (any, error) {
		// Default chaining: the previous step's output is this step's input.
		assert.Equal(t, map[string]any{"hold": "h1"}, input)
		return map[string]any{"charge": "c1"}, nil
	})
	invoker.on("backend/ship", func(any) (any, error) { return map[string]any{"tracking": "t1"}, nil })

	e := newExecutor(t, orderSaga(t), invoker)
	out, err := e.Execute(context.Background(), "place_order", map[string]any{"sku": "mug"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tracking": "t1"}, out)
	assert.Equal(t, []string{"backend/reserve", "backend/charge", "backend/ship"}, invoker.recorded())
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	invoker := newRecordingInvoker()
	invoker.on("backend/reserve", func(any) (any, error) { return map[string]any{"hold": "h1"}, nil })
	invoker.on("backend/charge", func(any) (any, error) { return map[string]any{"charge": "c1"}, nil })
	invoker.on("backend/ship", func(any) (any, error) { return nil, fmt.Errorf("warehouse offline") })

	var refundInput, releaseInput any
	invoker.on("backend/refund", func(input any) (any, error) {
		refundInput = input
		return "refunded", nil
	})
	invoker.on("backend/release", func(input any) (any, error) {
		releaseInput = input
		return "released", nil
	})

	e := newExecutor(t, orderSaga(t), invoker)
	_, err := e.Execute(context.Background(), "place_order", nil)
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, SagaCompensatedFailure, sagaErr.Status)
	assert.Equal(t, []string{"charge", "reserve"}, sagaErr.Compensated)
	assert.Empty(t, sagaErr.CompensationErrors)

	var stepErr *StepError
	require.ErrorAs(t, sagaErr.Original, &stepErr)
	assert.Equal(t, "ship", stepErr.Step)

	// Strict reverse completion order, each undo fed its step's own result.
	assert.Equal(t, []string{
		"backend/reserve", "backend/charge", "backend/ship",
		"backend/refund", "backend/release",
	}, invoker.recorded())
	assert.Equal(t, map[string]any{"charge": "c1"}, refundInput)
	assert.Equal(t, map[string]any{"hold": "h1"}, releaseInput)
}

func TestSagaSkipsStepsWithoutCompensation(t *testing.T) {
	// The ship step completes but declares no compensation; a later failure
	// must skip it rather than fail.
	compiled := compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "flow",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						Steps: []registry.SagaStep{
							{
								ID:     "audit",
								Action: registry.StepOperation{Tool: "backend/audit"},
							},
							{
								ID:     "commit",
								Action: registry.StepOperation{Tool: "backend/commit"},
								Compensate: &registry.CompensationSpec{
									StepOperation: registry.StepOperation{Tool: "backend/rollback"},
								},
							},
							{
								ID:     "notify",
								Action: registry.StepOperation{Tool: "backend/notify"},
							},
						},
					},
				},
			},
		},
	})

	invoker := newRecordingInvoker()
	invoker.on("backend/audit", func(any) (any, error) { return "logged", nil })
	invoker.on("backend/commit", func(any) (any, error) { return "committed", nil })
	invoker.on("backend/notify", func(any) (any, error) { return nil, fmt.Errorf("smtp down") })
	invoker.on("backend/rollback", func(any) (any, error) { return "rolled back", nil })

	e := newExecutor(t, compiled, invoker)
	_, err := e.Execute(context.Background(), "flow", nil)
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, SagaCompensatedFailure, sagaErr.Status)
	assert.Equal(t, []string{"commit"}, sagaErr.Compensated)
	assert.Equal(t, []string{"audit"}, sagaErr.Skipped)
}

func TestSagaCompensationFailureIsReported(t *testing.T) {
	invoker := newRecordingInvoker()
	invoker.on("backend/reserve", func(any) (any, error) { return "held", nil })
	invoker.on("backend/charge", func(any) (any, error) { return "charged", nil })
	invoker.on("backend/ship", func(any) (any, error) { return nil, fmt.Errorf("warehouse offline") })
	invoker.on("backend/refund", func(any) (any, error) { return nil, fmt.Errorf("refund rejected") })
	invoker.on("backend/release", func(any) (any, error) { return "released", nil })

	e := newExecutor(t, orderSaga(t), invoker)
	_, err := e.Execute(context.Background(), "place_order", nil)
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, SagaCompensationFailed, sagaErr.Status)
	require.Len(t, sagaErr.CompensationErrors, 1)
	assert.Contains(t, sagaErr.CompensationErrors[0].Error(), "refund rejected")

	// The release attempt still ran after the refund failed.
	assert.Equal(t, []string{"reserve"}, sagaErr.Compensated)
}

func TestSagaExplicitCompensationInput(t *testing.T) {
	compiled := compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "transfer",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						Steps: []registry.SagaStep{
							{
								ID:     "debit",
								Action: registry.StepOperation{Tool: "backend/debit"},
								Compensate: &registry.CompensationSpec{
									StepOperation: registry.StepOperation{Tool: "backend/credit"},
									Input: &registry.DataBinding{
										Type: registry.BindConstruct,
										Fields: map[string]*registry.DataBinding{
											"txn":    {Type: registry.BindStep, Step: "debit", Path: "$.txn"},
											"amount": {Type: registry.BindInput, Path: "$.amount"},
										},
									},
								},
							},
							{
								ID:     "credit_other",
								Action: registry.StepOperation{Tool: "backend/fail"},
							},
						},
					},
				},
			},
		},
	})

	invoker := newRecordingInvoker()
	invoker.on("backend/debit", func(any) (any, error) { return map[string]any{"txn": "t9"}, nil })
	invoker.on("backend/fail", func(any) (any, error) { return nil, fmt.Errorf("account frozen") })

	var creditInput any
	invoker.on("backend/credit", func(input any) (any, error) {
		creditInput = input
		return "ok", nil
	})

	e := newExecutor(t, compiled, invoker)
	_, err := e.Execute(context.Background(), "transfer", map[string]any{"amount": float64(25)})
	require.Error(t, err)

	assert.Equal(t, map[string]any{"txn": "t9", "amount": float64(25)}, creditInput)
}

func TestSagaOutputBinding(t *testing.T) {
	compiled := compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "enroll",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						Steps: []registry.SagaStep{
							{ID: "create", Action: registry.StepOperation{Tool: "backend/create"}},
							{ID: "welcome", Action: registry.StepOperation{Tool: "backend/welcome"}},
						},
						Output: &registry.DataBinding{
							Type: registry.BindConstruct,
							Fields: map[string]*registry.DataBinding{
								"id":     {Type: registry.BindStep, Step: "create", Path: "$.id"},
								"mailed": {Type: registry.BindStep, Step: "welcome"},
							},
						},
					},
				},
			},
		},
	})

	invoker := newRecordingInvoker()
	invoker.on("backend/create", func(any) (any, error) { return map[string]any{"id": "u1"}, nil })
	invoker.on("backend/welcome", func(any) (any, error) { return true, nil })

	e := newExecutor(t, compiled, invoker)
	out, err := e.Execute(context.Background(), "enroll", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "u1", "mailed": true}, out)
}

func TestSagaTimeoutTriggersCompensation(t *testing.T) {
	compiled := compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "slow_flow",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						TimeoutMS: 30,
						Steps: []registry.SagaStep{
							{
								ID:     "fast",
								Action: registry.StepOperation{Tool: "backend/fast"},
								Compensate: &registry.CompensationSpec{
									StepOperation: registry.StepOperation{Tool: "backend/undo"},
								},
							},
							{
								ID:     "slow",
								Action: registry.StepOperation{Tool: "backend/slow"},
							},
						},
					},
				},
			},
		},
	})

	invoker := InvokerFunc(func(ctx context.Context, name string, _ any) (any, error) {
		switch name {
		case "backend/fast", "backend/undo":
			return "ok", nil
		case "backend/slow":
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	})

	e := newExecutor(t, compiled, invoker)
	_, err := e.Execute(context.Background(), "slow_flow", nil)
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	// The timeout is distinguishable from an ordinary failure, and the
	// completed step was still compensated despite the expired deadline.
	assert.Equal(t, SagaTimedOut, sagaErr.Status)
	var timeout *TimeoutError
	assert.ErrorAs(t, sagaErr.Original, &timeout)
	assert.Equal(t, []string{"fast"}, sagaErr.Compensated)
}

func TestSagaStepTimeout(t *testing.T) {
	compiled := compile(t, &registry.Registry{
		Name: "test",
		Tools: []registry.ToolDefinition{
			{
				Name: "bounded",
				Composition: &registry.PatternSpec{
					Type: registry.PatternSaga,
					Saga: &registry.SagaSpec{
						Steps: []registry.SagaStep{
							{
								ID:        "slow",
								TimeoutMS: 30,
								Action:    registry.StepOperation{Tool: "backend/slow"},
							},
						},
					},
				},
			},
		},
	})

	invoker := InvokerFunc(func(ctx context.Context, _ string, _ any) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	e := newExecutor(t, compiled, invoker)
	_, err := e.Execute(context.Background(), "bounded", nil)
	require.Error(t, err)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow", timeout.Op)
}
