//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/toolmesh/toolmesh/registry"
)

// targetOutcome is one scatter-gather target's result, indexed so collection
// preserves declared target order regardless of completion order.
type targetOutcome struct {
	index int
	value any
	err   error
}

// runScatterGather dispatches every target concurrently against the same,
// unmodified composition input, collects results in target order, then
// applies the aggregation ops. With failFast the first error is surfaced and
// the remaining targets are abandoned (already-started calls are cancelled
// via context, not forcibly aborted). Without failFast a failed target is
// represented by an error marker at its original position so
// position-sensitive ops stay well defined.
func (e *Executor) runScatterGather(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.ScatterGatherSpec,
	input any,
) (any, error) {
	var (
		fanCtx context.Context
		cancel context.CancelFunc
	)
	if p.TimeoutMS > 0 {
		fanCtx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMS)*time.Millisecond)
	} else {
		fanCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	outcomes := make(chan targetOutcome, len(p.Targets))
	for i := range p.Targets {
		i := i
		target := p.Targets[i]
		e.submit(func() {
			value, err := e.runOperation(fanCtx, reg, target, input)
			outcomes <- targetOutcome{index: i, value: value, err: err}
		})
	}

	results := make([]any, len(p.Targets))
	for remaining := len(p.Targets); remaining > 0; remaining-- {
		select {
		case out := <-outcomes:
			if out.err != nil {
				if p.FailFast {
					cancel()
					if errors.Is(out.err, context.DeadlineExceeded) {
						return nil, &TimeoutError{Op: string(registry.PatternScatterGather)}
					}
					label := operationLabel(p.Targets[out.index])
					return nil, &StepError{Step: fmt.Sprintf("target[%d] %s", out.index, label), Err: out.err}
				}
				results[out.index] = failedTargetMarker(operationLabel(p.Targets[out.index]), out.err)
				continue
			}
			results[out.index] = out.value
		case <-fanCtx.Done():
			if fanCtx.Err() == context.DeadlineExceeded {
				return nil, &TimeoutError{Op: string(registry.PatternScatterGather)}
			}
			return nil, fanCtx.Err()
		}
	}

	return aggregate(results, p.Aggregation)
}

// failedTargetMarker is the explicit error sentinel for a failed target under
// failFast=false. The marker occupies the target's original position:
//
//	{"$error": {"target": <label>, "message": <error>}}
func failedTargetMarker(target string, err error) map[string]any {
	return map[string]any{
		"$error": map[string]any{
			"target":  target,
			"message": err.Error(),
		},
	}
}

// IsFailedTargetMarker reports whether a value is a failed-target sentinel
// produced by a non-fail-fast scatter-gather.
func IsFailedTargetMarker(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return false
	}
	_, ok = obj["$error"]
	return ok
}
