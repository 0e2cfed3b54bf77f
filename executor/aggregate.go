//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/registry"
)

// aggregate applies the declared aggregation ops strictly in the order given,
// each operator consuming the previous operator's output. The initial value
// is the list of per-target results in declared target order.
func aggregate(results []any, strategy registry.AggregationStrategy) (any, error) {
	current := any(results)
	for i, op := range strategy.Ops {
		next, err := applyAggregationOp(current, op)
		if err != nil {
			return nil, fmt.Errorf("aggregation op %d (%s): %w", i, op.Op, err)
		}
		current = next
	}
	return current, nil
}

func applyAggregationOp(current any, op registry.AggregationOp) (any, error) {
	switch op.Op {
	case registry.AggFlatten:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		return flattenOne(list), nil
	case registry.AggConcat:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		return concatLists(list)
	case registry.AggMerge:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		return mergeObjects(list)
	case registry.AggSort:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		return sortByField(list, op.Field, op.Order)
	case registry.AggDedupe:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		return dedupeByField(list, op.Field)
	case registry.AggLimit:
		list, err := asList(current)
		if err != nil {
			return nil, err
		}
		if op.Count < len(list) {
			return list[:op.Count], nil
		}
		return list, nil
	default:
		return nil, fmt.Errorf("%w: unknown aggregation op %q", ErrTypeMismatch, op.Op)
	}
}

func asList(v any) ([]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrTypeMismatch, v)
	}
	return list, nil
}

// flattenOne splices array elements one level deep, keeping non-array
// elements as they are.
func flattenOne(list []any) []any {
	out := make([]any, 0, len(list))
	for _, elem := range list {
		if nested, ok := elem.([]any); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, elem)
	}
	return out
}

// concatLists concatenates array results end-to-end. Unlike flatten, every
// element must itself be an array.
func concatLists(list []any) ([]any, error) {
	var out []any
	for i, elem := range list {
		nested, ok := elem.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: concat element %d is %T, not an array", ErrTypeMismatch, i, elem)
		}
		out = append(out, nested...)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// mergeObjects shallow-merges object results left to right into one object.
func mergeObjects(list []any) (map[string]any, error) {
	out := make(map[string]any)
	for i, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: merge element %d is %T, not an object", ErrTypeMismatch, i, elem)
		}
		for k, v := range obj {
			out[k] = v
		}
	}
	return out, nil
}

// sortByField stable-sorts elements by the field path. "$" addresses the
// element itself and an empty order means ascending. Keys must be uniformly
// numbers or uniformly strings.
func sortByField(list []any, field, order string) ([]any, error) {
	if field == "" {
		field = "$"
	}
	keys := make([]any, len(list))
	for i, elem := range list {
		key, err := binding.EvalPath(field, elem)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	type pair struct {
		key  any
		elem any
	}
	pairs := make([]pair, len(list))
	for i := range list {
		pairs[i] = pair{key: keys[i], elem: list[i]}
	}

	var sortErr error
	sort.SliceStable(pairs, func(i, j int) bool {
		cmp, err := compareOrder(pairs[i].key, pairs[j].key)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if order == registry.OrderDesc {
			return cmp > 0
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}

	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.elem
	}
	return out, nil
}

// dedupeByField keeps the first occurrence of each field value, preserving
// order of the survivors.
func dedupeByField(list []any, field string) ([]any, error) {
	if field == "" {
		field = "$"
	}
	seen := make(map[string]bool, len(list))
	out := make([]any, 0, len(list))
	for _, elem := range list {
		key, err := binding.EvalPath(field, elem)
		if err != nil {
			return nil, err
		}
		id := identityKey(key)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, elem)
	}
	return out, nil
}

// identityKey renders a value as a dedupe key. Numbers are normalized so an
// int and its float64 equivalent collapse to one key; composites are
// canonicalized through JSON.
func identityKey(v any) string {
	if n, ok := toNumber(v); ok {
		return fmt.Sprintf("n|%v", n)
	}
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return "s|" + val
	case bool:
		return fmt.Sprintf("b|%t", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("x|%v", val)
		}
		return "j|" + string(data)
	}
}
