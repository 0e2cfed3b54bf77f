//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"context"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/registry"
)

// runPipeline executes steps strictly in declared order. Each step's input is
// its declared binding when present, otherwise the previous step's full
// output (the first step receives the composition input). A step failure
// aborts immediately with no partial result, tagged with the failing step id.
// The pipeline's result is the last step's output.
func (e *Executor) runPipeline(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.PipelineSpec,
	input any,
) (any, error) {
	stepResults := make(map[string]any, len(p.Steps))
	prev := input
	for i := range p.Steps {
		step := &p.Steps[i]

		stepInput := prev
		if step.Input != nil {
			resolved, err := binding.Resolve(step.Input, input, stepResults)
			if err != nil {
				return nil, &StepError{Step: step.ID, Err: err}
			}
			stepInput = resolved
		}

		out, err := e.runOperation(ctx, reg, step.StepOperation, stepInput)
		if err != nil {
			return nil, &StepError{Step: step.ID, Err: err}
		}
		stepResults[step.ID] = out
		prev = out
	}
	return prev, nil
}
