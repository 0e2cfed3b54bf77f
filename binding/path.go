//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

// Package binding evaluates data-binding expressions against composition
// input and prior step results. Path extraction uses a minimal JSONPath
// grammar: dot and bracket field access, numeric array indices, and wildcard
// array projection. Filter predicates are out of scope.
package binding

import (
	"fmt"
	"sync"

	"github.com/ohler55/ojg/jp"
)

// exprCache caches parsed path expressions. Paths come from compiled
// registries and repeat heavily across calls.
var exprCache sync.Map // string -> jp.Expr

// parsePath parses a JSONPath-style expression, rejecting filter predicates.
func parsePath(path string) (jp.Expr, error) {
	if cached, ok := exprCache.Load(path); ok {
		return cached.(jp.Expr), nil
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBinding, path, err)
	}
	for _, frag := range expr {
		switch frag.(type) {
		case *jp.Filter:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedPathExpression, path)
		case jp.Descent:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedPathExpression, path)
		}
	}
	exprCache.Store(path, expr)
	return expr, nil
}

// EvalPath evaluates path against doc. A path with no match yields nil. A
// path containing a wildcard projects into an array of per-element matches,
// in document order.
func EvalPath(path string, doc any) (any, error) {
	expr, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if hasWildcard(expr) {
		matches := expr.Get(doc)
		if matches == nil {
			matches = []any{}
		}
		return matches, nil
	}
	return expr.First(doc), nil
}

func hasWildcard(expr jp.Expr) bool {
	for _, frag := range expr {
		if _, ok := frag.(jp.Wildcard); ok {
			return true
		}
	}
	return false
}
