//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package binding

import "errors"

var (
	// ErrInvalidBinding reports a syntactically invalid binding, such as an
	// unparsable path expression.
	ErrInvalidBinding = errors.New("invalid binding")

	// ErrUnsupportedPathExpression reports a path using grammar outside the
	// supported subset (filter predicates, recursive descent).
	ErrUnsupportedPathExpression = errors.New("unsupported path expression")

	// ErrStepNotFound reports a Step binding whose step result is absent.
	// Static ordering checks admit only earlier steps, so this is an
	// internal consistency error, not a user input error.
	ErrStepNotFound = errors.New("step result not found")
)
