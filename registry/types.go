//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

// Package registry defines the declared catalog of virtual tools and compiles
// it into an immutable, queryable form. A virtual tool is either a thin
// adapter over one backend tool or a composition: a declarative orchestration
// of multiple backend calls using patterns (pipeline, scatter-gather, filter,
// schema map, map-each, saga).
package registry

// Registry is a complete parsed catalog. It is the input to Compile and only
// carries execution semantics; transport, identity, and storage concerns live
// outside this package.
type Registry struct {
	// Name is the catalog name.
	Name string `json:"name"`

	// Version is the catalog version (e.g., "1.0").
	Version string `json:"version,omitempty"`

	// Schemas are the named, versioned JSON Schemas referenced by tools.
	Schemas []SchemaDefinition `json:"schemas,omitempty"`

	// Servers are the backend tool providers.
	Servers []ServerDefinition `json:"servers,omitempty"`

	// Agents are calling agents declared for dependency tracking.
	Agents []AgentDefinition `json:"agents,omitempty"`

	// Tools are the virtual tools exposed by the gateway.
	Tools []ToolDefinition `json:"tools"`
}

// SchemaDefinition is a named, versioned JSON Schema body. It is created at
// registry parse time and read-only thereafter.
type SchemaDefinition struct {
	// Name is the schema name.
	Name string `json:"name"`

	// Version is the schema version.
	Version string `json:"version"`

	// Schema is the JSON Schema body.
	Schema map[string]any `json:"schema"`
}

// Ref returns the canonical "name:version" reference for this schema.
func (s SchemaDefinition) Ref() string {
	return s.Name + ":" + s.Version
}

// ToolRef identifies a backend tool by name and optional version.
type ToolRef struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerDefinition declares a backend tool provider and the tools it serves.
type ServerDefinition struct {
	// Name is the server name referenced by source tools.
	Name string `json:"name"`

	// Version is the server version.
	Version string `json:"version,omitempty"`

	// Provides lists the backend tools this server serves.
	Provides []ToolRef `json:"provides,omitempty"`

	// Deprecated marks the server as deprecated. Tools still referencing it
	// compile, but validation emits a deprecation warning.
	Deprecated bool `json:"deprecated,omitempty"`
}

// ProvidesTool reports whether the server declares the named backend tool.
func (s ServerDefinition) ProvidesTool(tool string) bool {
	for _, ref := range s.Provides {
		if ref.Name == tool {
			return true
		}
	}
	return false
}

// AgentDefinition declares a calling agent. Agents participate in the
// dependency graph through their depends declarations only.
type AgentDefinition struct {
	// Name is the agent name.
	Name string `json:"name"`

	// Version is the agent version.
	Version string `json:"version,omitempty"`

	// Depends lists the entities this agent depends on.
	Depends []EntityRef `json:"depends,omitempty"`
}

// EntityKind classifies a dependency-graph node.
type EntityKind string

// Entity kinds.
const (
	KindTool   EntityKind = "tool"
	KindServer EntityKind = "server"
	KindAgent  EntityKind = "agent"
	KindSchema EntityKind = "schema"
)

// EntityRef is an explicit dependency declaration on another registry entity.
type EntityRef struct {
	// Kind is the referenced entity kind.
	Kind EntityKind `json:"kind"`

	// Name is the referenced entity name.
	Name string `json:"name"`

	// Version optionally pins a version.
	Version string `json:"version,omitempty"`
}

// ToolDefinition is a virtual tool declaration. Exactly one of Source and
// Composition must be set; Source adapts a single backend tool 1:1 while
// Composition orchestrates a pattern tree.
type ToolDefinition struct {
	// Name is the virtual tool name exposed to callers.
	Name string `json:"name"`

	// Version is the tool version.
	Version string `json:"version,omitempty"`

	// Description describes what the tool does.
	Description string `json:"description,omitempty"`

	// Source adapts one backend tool. Mutually exclusive with Composition.
	Source *SourceTool `json:"source,omitempty"`

	// Composition is the orchestration pattern tree. Mutually exclusive
	// with Source.
	Composition *PatternSpec `json:"composition,omitempty"`

	// InputSchema is the tool's input schema, inline or by reference.
	InputSchema *SchemaSpec `json:"input_schema,omitempty"`

	// OutputSchema is the tool's output schema, inline or by reference.
	OutputSchema *SchemaSpec `json:"output_schema,omitempty"`

	// OutputTransform optionally rebuilds the tool output field-by-field
	// before it is returned to the caller.
	OutputTransform map[string]*FieldSource `json:"output_transform,omitempty"`

	// Depends lists explicit dependencies on other registry entities.
	Depends []EntityRef `json:"depends,omitempty"`

	// Deprecated marks the tool as deprecated.
	Deprecated bool `json:"deprecated,omitempty"`
}

// IsComposition reports whether the tool is implemented by a pattern tree.
func (t *ToolDefinition) IsComposition() bool {
	return t.Composition != nil
}

// SchemaSpec is an inline JSON Schema body or a "name:version" reference to a
// SchemaDefinition. When both are set, the reference wins.
type SchemaSpec struct {
	// Ref references a SchemaDefinition as "name:version".
	Ref string `json:"ref,omitempty"`

	// Inline is an inline JSON Schema body.
	Inline map[string]any `json:"inline,omitempty"`
}

// SourceTool adapts exactly one backend tool.
type SourceTool struct {
	// Server names the ServerDefinition providing the backend tool.
	Server string `json:"server"`

	// Tool is the backend tool name on that server.
	Tool string `json:"tool"`

	// Defaults are values injected into the call input when the caller did
	// not supply the field.
	Defaults map[string]any `json:"defaults,omitempty"`

	// HideFields are input fields stripped from the effective input schema
	// and removed from the call input before delegation.
	HideFields []string `json:"hide_fields,omitempty"`
}

// PatternType discriminates the PatternSpec union.
type PatternType string

// Pattern types. Cache and Circuit are declared for catalog compatibility but
// are not executed by this core; calling them yields a NotImplemented error.
const (
	PatternPipeline      PatternType = "pipeline"
	PatternScatterGather PatternType = "scatter_gather"
	PatternFilter        PatternType = "filter"
	PatternSchemaMap     PatternType = "schema_map"
	PatternMapEach       PatternType = "map_each"
	PatternSaga          PatternType = "saga"
	PatternCache         PatternType = "cache"
	PatternCircuit       PatternType = "circuit"
)

// PatternSpec is a tagged union over the orchestration patterns. Type selects
// the variant; exactly the matching field must be set. Patterns nest
// arbitrarily: a scatter-gather target may be a pipeline containing a
// map-each of a schema map.
type PatternSpec struct {
	// Type selects the pattern variant.
	Type PatternType `json:"type"`

	// Pipeline is set when Type is "pipeline".
	Pipeline *PipelineSpec `json:"pipeline,omitempty"`

	// ScatterGather is set when Type is "scatter_gather".
	ScatterGather *ScatterGatherSpec `json:"scatter_gather,omitempty"`

	// Filter is set when Type is "filter".
	Filter *FilterSpec `json:"filter,omitempty"`

	// SchemaMap is set when Type is "schema_map".
	SchemaMap *SchemaMapSpec `json:"schema_map,omitempty"`

	// MapEach is set when Type is "map_each".
	MapEach *MapEachSpec `json:"map_each,omitempty"`

	// Saga is set when Type is "saga".
	Saga *SagaSpec `json:"saga,omitempty"`
}

// StepOperation is a tool call by name or a nested pattern. Tool references
// are not required to resolve against the registry; unresolved names are
// passed through to the external invoker as raw backend tool names.
type StepOperation struct {
	// Tool names the tool to call.
	Tool string `json:"tool,omitempty"`

	// Pattern is a nested pattern executed in place of a tool call.
	Pattern *PatternSpec `json:"pattern,omitempty"`
}

// PipelineSpec runs steps strictly in declared order.
type PipelineSpec struct {
	// Steps are the ordered pipeline steps.
	Steps []PipelineStep `json:"steps"`
}

// PipelineStep is one sequential step of a pipeline.
type PipelineStep struct {
	// ID uniquely identifies the step within the pipeline; later steps
	// reference its output through Step bindings.
	ID string `json:"id"`

	// StepOperation is the tool call or nested pattern to run.
	StepOperation

	// Input optionally binds this step's input. When absent the step
	// receives the previous step's full output (the first step receives the
	// composition input).
	Input *DataBinding `json:"input,omitempty"`
}

// ScatterGatherSpec dispatches every target concurrently against the same,
// unmodified composition input and aggregates the collected results.
type ScatterGatherSpec struct {
	// Targets are dispatched concurrently; results are collected in target
	// order before aggregation.
	Targets []StepOperation `json:"targets"`

	// Aggregation is applied to the collected results, operator by operator.
	Aggregation AggregationStrategy `json:"aggregation,omitempty"`

	// FailFast surfaces the first target error and abandons awaiting the
	// rest. When false, a failed target is represented by an error marker at
	// its original position.
	FailFast bool `json:"fail_fast,omitempty"`

	// TimeoutMS bounds total wall-clock time for the whole fan-out, in
	// milliseconds. Zero means no timeout.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// AggregationStrategy is an ordered list of aggregation operators; each
// consumes the previous operator's output.
type AggregationStrategy struct {
	Ops []AggregationOp `json:"ops,omitempty"`
}

// AggregationOpType discriminates aggregation operators.
type AggregationOpType string

// Aggregation operators.
const (
	AggFlatten AggregationOpType = "flatten"
	AggSort    AggregationOpType = "sort"
	AggDedupe  AggregationOpType = "dedupe"
	AggLimit   AggregationOpType = "limit"
	AggConcat  AggregationOpType = "concat"
	AggMerge   AggregationOpType = "merge"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// AggregationOp is one aggregation operator.
type AggregationOp struct {
	// Op is the operator name.
	Op AggregationOpType `json:"op"`

	// Field is the element path for sort and dedupe. "$" addresses the
	// element itself.
	Field string `json:"field,omitempty"`

	// Order is "asc" or "desc" for sort. Defaults to "asc".
	Order string `json:"order,omitempty"`

	// Count is the element cap for limit.
	Count int `json:"count,omitempty"`
}

// FilterSpec keeps the array elements matching a field predicate, preserving
// order of the survivors.
type FilterSpec struct {
	Predicate FieldPredicate `json:"predicate"`
}

// Predicate operators.
const (
	OpEQ       = "eq"
	OpNE       = "ne"
	OpGT       = "gt"
	OpGTE      = "gte"
	OpLT       = "lt"
	OpLTE      = "lte"
	OpContains = "contains"
	OpIn       = "in"
)

// FieldPredicate compares a path-addressed field of each element against a
// literal value.
type FieldPredicate struct {
	// Field is the path evaluated against each element (e.g., "$.score").
	Field string `json:"field"`

	// Op is the comparison operator.
	Op string `json:"op"`

	// Value is the literal compared against.
	Value any `json:"value"`
}

// SchemaMapSpec builds an output object field-by-field.
type SchemaMapSpec struct {
	Fields map[string]*FieldSource `json:"fields"`
}

// FieldSourceType discriminates the FieldSource union.
type FieldSourceType string

// Field source types.
const (
	FieldPath     FieldSourceType = "path"
	FieldLiteral  FieldSourceType = "literal"
	FieldCoalesce FieldSourceType = "coalesce"
	FieldTemplate FieldSourceType = "template"
	FieldConcat   FieldSourceType = "concat"
	FieldNested   FieldSourceType = "nested"
)

// FieldSource describes where one output field's value comes from. Missing
// path or literal sources resolve to null, never an error.
type FieldSource struct {
	// Type selects the source variant.
	Type FieldSourceType `json:"type"`

	// Path is the extraction path for the "path" variant.
	Path string `json:"path,omitempty"`

	// Paths is the ordered path list for "coalesce" (first non-null wins)
	// and "concat" (string values joined with Separator).
	Paths []string `json:"paths,omitempty"`

	// Literal is the constant for the "literal" variant.
	Literal any `json:"literal,omitempty"`

	// Template is the interpolation template for the "template" variant,
	// with {var} placeholders. A missing variable resolves to empty string.
	Template string `json:"template,omitempty"`

	// Variables maps template variable names to extraction paths.
	Variables map[string]string `json:"variables,omitempty"`

	// Separator joins concat parts. Defaults to empty string.
	Separator string `json:"separator,omitempty"`

	// Fields is the sub-object for the "nested" variant.
	Fields map[string]*FieldSource `json:"fields,omitempty"`
}

// MapEachSpec applies one inner operation independently to every element of
// an array input, preserving order and length.
type MapEachSpec struct {
	Inner StepOperation `json:"inner"`
}

// SagaSpec runs ordered steps with reverse-order compensation on failure.
type SagaSpec struct {
	// Steps are the ordered forward steps.
	Steps []SagaStep `json:"steps"`

	// Output builds the saga result from the full step-result map once all
	// steps complete. When absent the last step's output is returned.
	Output *DataBinding `json:"output,omitempty"`

	// TimeoutMS bounds the whole saga, in milliseconds. An elapsed timeout
	// is treated as a forward failure and triggers compensation.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// SagaStep is one forward step of a saga with an optional compensation.
type SagaStep struct {
	// ID uniquely identifies the step within the saga.
	ID string `json:"id"`

	// Action is the forward operation.
	Action StepOperation `json:"action"`

	// Input optionally binds the step input, exactly as in Pipeline.
	Input *DataBinding `json:"input,omitempty"`

	// Compensate is the undo operation run if a later step fails. Steps
	// without one are skipped during compensation.
	Compensate *CompensationSpec `json:"compensate,omitempty"`

	// TimeoutMS bounds this step, in milliseconds.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// CompensationSpec is the undo operation for one saga step.
type CompensationSpec struct {
	// StepOperation is the tool call or nested pattern performing the undo.
	StepOperation

	// Input optionally binds the compensation input against the saga input
	// and full step-result map. When absent the compensation receives the
	// step's own recorded result.
	Input *DataBinding `json:"input,omitempty"`
}

// BindingType discriminates the DataBinding union.
type BindingType string

// Binding types.
const (
	BindInput     BindingType = "input"
	BindStep      BindingType = "step"
	BindConstant  BindingType = "constant"
	BindConstruct BindingType = "construct"
)

// DataBinding describes where a value comes from: the composition input, a
// prior step's output, a literal, or an object constructed from nested
// bindings. Bindings are evaluated fresh per execution and never mutated.
type DataBinding struct {
	// Type selects the binding variant.
	Type BindingType `json:"type"`

	// Path is the extraction path for "input" and "step" bindings.
	Path string `json:"path,omitempty"`

	// Step is the referenced step ID for "step" bindings.
	Step string `json:"step,omitempty"`

	// Value is the literal for "constant" bindings. Resolution returns a
	// deep copy.
	Value any `json:"value,omitempty"`

	// Fields maps output field names to nested bindings for "construct".
	Fields map[string]*DataBinding `json:"fields,omitempty"`
}
