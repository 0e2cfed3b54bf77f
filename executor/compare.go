//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// toNumber normalizes the numeric representations that appear in JSON-shaped
// values.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// compareOrder orders two sort keys: both numbers or both strings. Anything
// else is a type mismatch, never a silent tie.
func compareOrder(a, b any) (int, error) {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		if !ok {
			return 0, orderMismatch(a, b)
		}
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, orderMismatch(a, b)
		}
		return strings.Compare(sa, sb), nil
	}
	return 0, orderMismatch(a, b)
}

func orderMismatch(a, b any) error {
	return fmt.Errorf("%w: cannot order %T against %T", ErrTypeMismatch, a, b)
}

// looseEqual compares two JSON-shaped values with numeric normalization, so
// 2 and 2.0 are equal regardless of decoding.
func looseEqual(a, b any) bool {
	if na, ok := toNumber(a); ok {
		if nb, ok := toNumber(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
