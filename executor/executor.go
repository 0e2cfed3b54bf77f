//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

// Package executor runs compiled virtual tools: source adapters delegate to
// the external ToolInvoker, compositions interpret their compiled pattern
// tree. One external call drives one composition execution; all per-call
// state is exclusively owned by that call.
package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/log"
	"github.com/toolmesh/toolmesh/registry"
	"github.com/toolmesh/toolmesh/telemetry/trace"
)

// ToolInvoker invokes a backend tool. It is the external collaborator owning
// transport, connection pooling, and protocol translation; the core never
// implements those itself.
type ToolInvoker interface {
	// Invoke calls the named backend tool with the given JSON-shaped input.
	Invoke(ctx context.Context, name string, input any) (any, error)
}

// InvokerFunc adapts a function to the ToolInvoker interface.
type InvokerFunc func(ctx context.Context, name string, input any) (any, error)

// Invoke implements ToolInvoker.
func (f InvokerFunc) Invoke(ctx context.Context, name string, input any) (any, error) {
	return f(ctx, name, input)
}

// RegistryProvider supplies the current compiled registry snapshot. The
// executor loads one snapshot per call and uses it throughout, so a reload
// never disturbs in-flight executions. *registry.Swappable implements it.
type RegistryProvider interface {
	Load() *registry.CompiledRegistry
}

// staticRegistry adapts a fixed registry to RegistryProvider.
type staticRegistry struct {
	reg *registry.CompiledRegistry
}

// Load implements RegistryProvider.
func (s staticRegistry) Load() *registry.CompiledRegistry { return s.reg }

// StaticRegistry wraps a fixed compiled registry as a provider.
func StaticRegistry(reg *registry.CompiledRegistry) RegistryProvider {
	return staticRegistry{reg: reg}
}

// Executor dispatches named tool calls to their compiled implementation.
type Executor struct {
	provider      RegistryProvider
	invoker       ToolInvoker
	pool          *ants.Pool
	validateInput bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkerPool bounds pattern fan-out with an ants goroutine pool. Without
// one, fan-out runs on plain goroutines. The pool's lifecycle stays with the
// caller.
func WithWorkerPool(pool *ants.Pool) Option {
	return func(e *Executor) {
		e.pool = pool
	}
}

// WithInputValidation toggles JSON Schema validation of call input for tools
// that compiled an input validator. Enabled by default.
func WithInputValidation(enabled bool) Option {
	return func(e *Executor) {
		e.validateInput = enabled
	}
}

// New creates an executor over the given registry provider and invoker.
func New(provider RegistryProvider, invoker ToolInvoker, opts ...Option) (*Executor, error) {
	if provider == nil {
		return nil, fmt.Errorf("registry provider is required")
	}
	if invoker == nil {
		return nil, fmt.Errorf("tool invoker is required")
	}
	e := &Executor{
		provider:      provider,
		invoker:       invoker,
		validateInput: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs the named virtual tool with the given JSON-shaped input and
// returns its result. Failures name the offending step or pattern and the
// underlying cause.
func (e *Executor) Execute(ctx context.Context, toolName string, input any) (any, error) {
	reg := e.provider.Load()
	tool, ok := reg.GetTool(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, toolName)
	}

	executionID := uuid.NewString()
	ctx, span := trace.Tracer.Start(ctx, trace.NewExecuteCompositionSpanName(toolName))
	span.SetAttributes(
		trace.KeyToolName.String(toolName),
		trace.KeyExecutionID.String(executionID),
	)
	defer span.End()

	log.Debugf("executing tool %q (execution %s)", toolName, executionID)

	result, err := e.executeTool(ctx, reg, tool, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Debugf("tool %q failed (execution %s): %v", toolName, executionID, err)
		return nil, err
	}
	return result, nil
}

// executeTool runs a compiled tool: schema validation, source delegation or
// pattern interpretation, then the optional output transform.
func (e *Executor) executeTool(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	tool *registry.CompiledTool,
	input any,
) (any, error) {
	if e.validateInput && tool.InputValidator != nil {
		if err := tool.InputValidator.Validate(input); err != nil {
			return nil, fmt.Errorf("%w: tool %q: %v", ErrInvalidInput, tool.Name, err)
		}
	}

	var (
		result any
		err    error
	)
	if tool.Source != nil {
		result, err = e.invokeSource(ctx, tool.Source, input)
	} else {
		result, err = e.runPattern(ctx, reg, tool.Pattern, input)
	}
	if err != nil {
		return nil, err
	}

	if tool.OutputTransform != nil {
		result, err = resolveFieldSources(tool.OutputTransform, result)
		if err != nil {
			return nil, fmt.Errorf("output transform for tool %q: %w", tool.Name, err)
		}
	}
	return result, nil
}

// invokeSource delegates a 1:1 adapter call to the backend: defaults are
// injected under caller input, hidden fields are stripped before delegation.
func (e *Executor) invokeSource(ctx context.Context, src *registry.CompiledSource, input any) (any, error) {
	effective := input
	if obj, ok := input.(map[string]any); ok || input == nil {
		merged := make(map[string]any, len(obj)+len(src.Defaults))
		for k, v := range src.Defaults {
			merged[k] = binding.Copy(v)
		}
		for k, v := range obj {
			merged[k] = v
		}
		for field := range src.HideFields {
			delete(merged, field)
		}
		effective = merged
	}
	return e.invokeBackend(ctx, src.BackendRef, effective)
}

// invokeBackend calls the external invoker with a span around the call.
func (e *Executor) invokeBackend(ctx context.Context, name string, input any) (any, error) {
	ctx, span := trace.Tracer.Start(ctx, trace.NewInvokeToolSpanName(name))
	span.SetAttributes(trace.KeyToolName.String(name))
	defer span.End()

	result, err := e.invoker.Invoke(ctx, name, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &InvocationError{Tool: name, Err: err}
	}
	return result, nil
}

// runPattern dispatches one pattern node to its executor.
func (e *Executor) runPattern(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	p *registry.PatternSpec,
	input any,
) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch p.Type {
	case registry.PatternPipeline:
		return e.runPipeline(ctx, reg, p.Pipeline, input)
	case registry.PatternScatterGather:
		return e.runScatterGather(ctx, reg, p.ScatterGather, input)
	case registry.PatternFilter:
		return runFilter(p.Filter, input)
	case registry.PatternSchemaMap:
		return resolveFieldSources(p.SchemaMap.Fields, input)
	case registry.PatternMapEach:
		return e.runMapEach(ctx, reg, p.MapEach, input)
	case registry.PatternSaga:
		return e.runSaga(ctx, reg, p.Saga, input)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotImplemented, p.Type)
	}
}

// runOperation executes a tool call or nested pattern. Tool names resolve
// against the registry first; unresolved names go to the external invoker as
// raw backend tool names.
func (e *Executor) runOperation(
	ctx context.Context,
	reg *registry.CompiledRegistry,
	op registry.StepOperation,
	input any,
) (any, error) {
	if op.Pattern != nil {
		return e.runPattern(ctx, reg, op.Pattern, input)
	}
	if tool, ok := reg.GetTool(op.Tool); ok {
		return e.executeTool(ctx, reg, tool, input)
	}
	return e.invokeBackend(ctx, op.Tool, input)
}

// operationLabel names a target for error reporting and failure markers.
func operationLabel(op registry.StepOperation) string {
	if op.Tool != "" {
		return op.Tool
	}
	if op.Pattern != nil {
		return string(op.Pattern.Type)
	}
	return "unknown"
}

// submit schedules a fan-out task, using the worker pool when configured.
func (e *Executor) submit(task func()) {
	if e.pool != nil {
		if err := e.pool.Submit(task); err == nil {
			return
		}
		// Pool saturated or released; fall back to a plain goroutine rather
		// than stalling the fan-out.
	}
	go task()
}
