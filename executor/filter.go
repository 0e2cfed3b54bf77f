//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"fmt"
	"strings"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/registry"
)

// runFilter keeps the elements of an array input whose field matches the
// predicate, preserving order of the survivors. Filtering is pure synchronous
// computation; it never suspends.
func runFilter(p *registry.FilterSpec, input any) (any, error) {
	list, ok := input.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: filter input is %T, not an array", ErrTypeMismatch, input)
	}

	out := make([]any, 0, len(list))
	for i, elem := range list {
		field, err := binding.EvalPath(p.Predicate.Field, elem)
		if err != nil {
			return nil, fmt.Errorf("filter element %d: %w", i, err)
		}
		match, err := matchPredicate(field, p.Predicate.Op, p.Predicate.Value)
		if err != nil {
			return nil, fmt.Errorf("filter element %d: %w", i, err)
		}
		if match {
			out = append(out, elem)
		}
	}
	return out, nil
}

// matchPredicate evaluates one comparison. Ordering operators require
// numbers on both sides; comparing incompatible types is an error, never a
// silent false.
func matchPredicate(field any, op string, value any) (bool, error) {
	switch op {
	case registry.OpEQ:
		return looseEqual(field, value), nil
	case registry.OpNE:
		return !looseEqual(field, value), nil
	case registry.OpGT, registry.OpGTE, registry.OpLT, registry.OpLTE:
		fn, fok := toNumber(field)
		vn, vok := toNumber(value)
		if !fok || !vok {
			return false, fmt.Errorf("%w: %s requires numbers, got %T and %T", ErrTypeMismatch, op, field, value)
		}
		switch op {
		case registry.OpGT:
			return fn > vn, nil
		case registry.OpGTE:
			return fn >= vn, nil
		case registry.OpLT:
			return fn < vn, nil
		default:
			return fn <= vn, nil
		}
	case registry.OpContains:
		switch container := field.(type) {
		case string:
			needle, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("%w: contains on a string requires a string value, got %T", ErrTypeMismatch, value)
			}
			return strings.Contains(container, needle), nil
		case []any:
			for _, elem := range container {
				if looseEqual(elem, value) {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("%w: contains requires a string or array field, got %T", ErrTypeMismatch, field)
		}
	case registry.OpIn:
		options, ok := value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: in requires an array value, got %T", ErrTypeMismatch, value)
		}
		for _, option := range options {
			if looseEqual(field, option) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown predicate op %q", ErrTypeMismatch, op)
	}
}
