//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"context"
	"fmt"

	"github.com/toolmesh/toolmesh/registry"
)

// runMapEach applies the inner operation independently to every element of
// an array input. Elements run concurrently with no ordering guarantee among
// them, but results preserve input order and length. A single element's
// failure aborts the whole map.
func (e *Executor) runMapEach(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.MapEachSpec,
	input any,
) (any, error) {
	list, ok := input.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: map_each input is %T, not an array", ErrTypeMismatch, input)
	}
	if len(list) == 0 {
		return []any{}, nil
	}

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan targetOutcome, len(list))
	for i := range list {
		i := i
		elem := list[i]
		e.submit(func() {
			value, err := e.runOperation(fanCtx, reg, p.Inner, elem)
			outcomes <- targetOutcome{index: i, value: value, err: err}
		})
	}

	results := make([]any, len(list))
	for remaining := len(list); remaining > 0; remaining-- {
		out := <-outcomes
		if out.err != nil {
			cancel()
			return nil, &StepError{Step: fmt.Sprintf("element[%d]", out.index), Err: out.err}
		}
		results[out.index] = out.value
	}
	return results, nil
}
