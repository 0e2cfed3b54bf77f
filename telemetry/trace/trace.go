//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

// Package trace provides the tracer used by the gateway core. Span export
// configuration is left to the embedding application; the core only records
// spans through the global tracer provider.
package trace

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentName identifies spans produced by this module.
const InstrumentName = "github.com/toolmesh/toolmesh"

// Span operation names.
const (
	OperationExecuteComposition = "execute_composition"
	OperationInvokeTool         = "invoke_tool"
	OperationCompileRegistry    = "compile_registry"
)

// Attribute keys attached to gateway spans.
var (
	KeyToolName    = attribute.Key("toolmesh.tool.name")
	KeyPatternType = attribute.Key("toolmesh.pattern.type")
	KeyExecutionID = attribute.Key("toolmesh.execution.id")
	KeyStepID      = attribute.Key("toolmesh.step.id")
)

// Tracer is the tracer used for all gateway spans. It resolves through the
// global provider so that applications wiring an SDK provider at startup
// pick up real exporters transparently.
var Tracer oteltrace.Tracer = otel.Tracer(InstrumentName)

// NewExecuteCompositionSpanName returns the span name for a composition call.
func NewExecuteCompositionSpanName(toolName string) string {
	return fmt.Sprintf("%s %s", OperationExecuteComposition, toolName)
}

// NewInvokeToolSpanName returns the span name for a backend tool invocation.
func NewInvokeToolSpanName(toolName string) string {
	return fmt.Sprintf("%s %s", OperationInvokeTool, toolName)
}
