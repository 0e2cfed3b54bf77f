//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package binding

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/toolmesh/toolmesh/registry"
)

// TestResolveDeterminismProperty verifies that resolving the same binding
// against unchanged input and step results always yields structurally equal
// values, and that the resolved value shares no mutable state with either.
func TestResolveDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated resolution is structurally equal", prop.ForAll(
		func(field string, number float64, tag string) bool {
			input := map[string]any{
				"field": field,
				"n":     number,
				"tags":  []any{tag, tag + "-2"},
			}
			steps := map[string]any{
				"s1": map[string]any{"value": number},
			}
			b := &registry.DataBinding{
				Type: registry.BindConstruct,
				Fields: map[string]*registry.DataBinding{
					"f":    {Type: registry.BindInput, Path: "$.field"},
					"v":    {Type: registry.BindStep, Step: "s1", Path: "$.value"},
					"tags": {Type: registry.BindInput, Path: "$.tags[*]"},
					"all":  {Type: registry.BindInput},
				},
			}

			first, err := Resolve(b, input, steps)
			if err != nil {
				return false
			}
			second, err := Resolve(b, input, steps)
			if err != nil {
				return false
			}
			if !reflect.DeepEqual(first, second) {
				return false
			}

			// Mutating the first result must not affect a later resolution.
			first.(map[string]any)["all"].(map[string]any)["field"] = "mutated"
			third, err := Resolve(b, input, steps)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(second, third)
		},
		gen.AlphaString(),
		gen.Float64Range(-1e6, 1e6),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
