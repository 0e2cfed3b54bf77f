//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package binding

import (
	"fmt"

	"github.com/toolmesh/toolmesh/registry"
)

// Resolve evaluates a data binding against the composition's original input
// and the per-call step-result map. Bindings are never mutated; resolving the
// same binding against unchanged input and step results always yields a
// structurally equal value.
func Resolve(b *registry.DataBinding, input any, stepResults map[string]any) (any, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: binding is nil", ErrInvalidBinding)
	}
	switch b.Type {
	case registry.BindInput:
		if b.Path == "" {
			return Copy(input), nil
		}
		return EvalPath(b.Path, input)
	case registry.BindStep:
		result, ok := stepResults[b.Step]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrStepNotFound, b.Step)
		}
		if b.Path == "" {
			return Copy(result), nil
		}
		return EvalPath(b.Path, result)
	case registry.BindConstant:
		return Copy(b.Value), nil
	case registry.BindConstruct:
		out := make(map[string]any, len(b.Fields))
		for field, nested := range b.Fields {
			value, err := Resolve(nested, input, stepResults)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			out[field] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown binding type %q", ErrInvalidBinding, b.Type)
	}
}

// Copy deep-copies a JSON-shaped value. Resolved constants and step results
// are copied so no caller can mutate shared state through them.
func Copy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Copy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Copy(item)
		}
		return out
	default:
		return val
	}
}
