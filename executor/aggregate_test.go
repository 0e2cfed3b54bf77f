//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/toolmesh/registry"
)

func TestAggregateOps(t *testing.T) {
	obj := func(kv ...any) map[string]any {
		out := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			out[kv[i].(string)] = kv[i+1]
		}
		return out
	}

	tests := []struct {
		name    string
		results []any
		ops     []registry.AggregationOp
		want    any
	}{
		{
			name:    "flatten keeps non-array elements",
			results: []any{[]any{float64(3), float64(1)}, float64(9), []any{float64(2)}},
			ops:     []registry.AggregationOp{{Op: registry.AggFlatten}},
			want:    []any{float64(3), float64(1), float64(9), float64(2)},
		},
		{
			name:    "flatten is one level deep",
			results: []any{[]any{[]any{float64(1)}}},
			ops:     []registry.AggregationOp{{Op: registry.AggFlatten}},
			want:    []any{[]any{float64(1)}},
		},
		{
			name:    "concat joins arrays end to end",
			results: []any{[]any{"a"}, []any{"b", "c"}},
			ops:     []registry.AggregationOp{{Op: registry.AggConcat}},
			want:    []any{"a", "b", "c"},
		},
		{
			name:    "merge is shallow left to right",
			results: []any{obj("a", float64(1), "b", float64(1)), obj("b", float64(2))},
			ops:     []registry.AggregationOp{{Op: registry.AggMerge}},
			want:    obj("a", float64(1), "b", float64(2)),
		},
		{
			name:    "sort by field descending",
			results: []any{obj("s", float64(0.2)), obj("s", float64(0.9)), obj("s", float64(0.5))},
			ops:     []registry.AggregationOp{{Op: registry.AggSort, Field: "$.s", Order: registry.OrderDesc}},
			want:    []any{obj("s", float64(0.9)), obj("s", float64(0.5)), obj("s", float64(0.2))},
		},
		{
			name:    "sort strings ascending",
			results: []any{"pear", "apple", "mango"},
			ops:     []registry.AggregationOp{{Op: registry.AggSort}},
			want:    []any{"apple", "mango", "pear"},
		},
		{
			name:    "dedupe keeps first occurrence",
			results: []any{obj("id", float64(1)), obj("id", float64(2)), obj("id", float64(1))},
			ops:     []registry.AggregationOp{{Op: registry.AggDedupe, Field: "$.id"}},
			want:    []any{obj("id", float64(1)), obj("id", float64(2))},
		},
		{
			name:    "limit truncates",
			results: []any{float64(1), float64(2), float64(3)},
			ops:     []registry.AggregationOp{{Op: registry.AggLimit, Count: 2}},
			want:    []any{float64(1), float64(2)},
		},
		{
			name:    "limit larger than input is a no-op",
			results: []any{float64(1)},
			ops:     []registry.AggregationOp{{Op: registry.AggLimit, Count: 10}},
			want:    []any{float64(1)},
		},
		{
			name:    "ops chain in declared order",
			results: []any{[]any{float64(3), float64(1)}, []any{float64(2), float64(1)}},
			ops: []registry.AggregationOp{
				{Op: registry.AggFlatten},
				{Op: registry.AggDedupe},
				{Op: registry.AggSort},
				{Op: registry.AggLimit, Count: 2},
			},
			want: []any{float64(1), float64(2)},
		},
		{
			name:    "no ops returns target results as is",
			results: []any{"a", "b"},
			want:    []any{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := aggregate(tt.results, registry.AggregationStrategy{Ops: tt.ops})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateTypeErrors(t *testing.T) {
	// concat, unlike flatten, refuses non-array elements.
	_, err := aggregate([]any{[]any{"a"}, "b"},
		registry.AggregationStrategy{Ops: []registry.AggregationOp{{Op: registry.AggConcat}}})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = aggregate([]any{"not-an-object"},
		registry.AggregationStrategy{Ops: []registry.AggregationOp{{Op: registry.AggMerge}}})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// Mixed sort keys are an error, never an arbitrary order.
	_, err = aggregate([]any{float64(1), "two"},
		registry.AggregationStrategy{Ops: []registry.AggregationOp{{Op: registry.AggSort}}})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestLooseEqualNormalizesNumbers(t *testing.T) {
	assert.True(t, looseEqual(float64(3), 3))
	assert.True(t, looseEqual(int64(5), float64(5)))
	assert.False(t, looseEqual(float64(3), "3"))
	assert.True(t, looseEqual("a", "a"))
	assert.True(t, looseEqual(
		map[string]any{"x": float64(1)},
		map[string]any{"x": float64(1)},
	))
}
