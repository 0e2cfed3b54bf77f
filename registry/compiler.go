//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/toolmesh/toolmesh/log"
)

// Compiler turns a parsed Registry into a CompiledRegistry in two passes.
// Pass 1 registers every tool, schema, server, and agent name so that
// compositions may reference tools declared later in the same registry.
// Pass 2 resolves schema references, computes effective source-tool schemas,
// recursively compiles pattern trees, and builds the dependency graph.
// Findings are accumulated exhaustively; the compiler never short-circuits.
type Compiler struct {
	cfg CheckConfig
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCheckConfig sets the per-category severity configuration.
func WithCheckConfig(cfg CheckConfig) CompilerOption {
	return func(c *Compiler) {
		c.cfg = cfg
	}
}

// NewCompiler creates a compiler with the given options.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{cfg: DefaultCheckConfig()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles reg with default options. It is shorthand for
// NewCompiler(opts...).Compile(reg).
func Compile(reg *Registry, opts ...CompilerOption) (*CompiledRegistry, *ValidationResult) {
	return NewCompiler(opts...).Compile(reg)
}

// symbolTable holds the names registered by pass 1. Forward references
// between entities resolve against it regardless of declaration order.
type symbolTable struct {
	tools   map[string]*ToolDefinition
	servers map[string]*ServerDefinition
	agents  map[string]*AgentDefinition
	schemas *SchemaResolver
}

// Compile compiles the registry. The returned CompiledRegistry is usable when
// the result carries only warnings; callers deciding to reject on warnings do
// so by policy, not by necessity.
func (c *Compiler) Compile(reg *Registry) (*CompiledRegistry, *ValidationResult) {
	result := &ValidationResult{}
	validator := NewValidator(c.cfg, result)

	syms := c.registerNames(reg, result)
	graph := NewDependencyGraph()

	compiled := &CompiledRegistry{
		name:    reg.Name,
		version: reg.Version,
		tools:   make(map[string]*CompiledTool, len(syms.tools)),
		schemas: make(map[string]SchemaDefinition, len(reg.Schemas)),
		servers: make(map[string]ServerDefinition, len(reg.Servers)),
	}
	for _, s := range reg.Schemas {
		compiled.schemas[s.Ref()] = s
	}
	for _, s := range reg.Servers {
		compiled.servers[s.Name] = s
	}

	for i := range reg.Tools {
		def := &reg.Tools[i]
		if syms.tools[def.Name] != def {
			// Duplicate declaration; pass 1 kept the first one.
			continue
		}
		tool := c.compileTool(def, syms, graph, validator, result)
		if tool != nil {
			compiled.tools[def.Name] = tool
		}
	}

	for _, agent := range reg.Agents {
		validator.validateDepends(entityRef(KindAgent, agent.Name, agent.Version), agent.Depends, syms)
		from := GraphNode{Kind: KindAgent, Name: agent.Name, Version: agent.Version}
		graph.AddNode(from)
		for _, dep := range agent.Depends {
			graph.AddEdge(from, GraphNode{Kind: dep.Kind, Name: dep.Name, Version: dep.Version})
		}
	}

	validator.checkCycles(graph)
	validator.checkUnusedSchemas(syms.schemas)

	log.Debugf("compiled registry %q: %d tools, %d errors, %d warnings",
		reg.Name, len(compiled.tools), len(result.Errors), len(result.Warnings))
	return compiled, result
}

// registerNames is pass 1: every entity name becomes visible before any
// reference is resolved. Duplicate tool names keep the first declaration and
// report an error.
func (c *Compiler) registerNames(reg *Registry, result *ValidationResult) *symbolTable {
	syms := &symbolTable{
		tools:   make(map[string]*ToolDefinition, len(reg.Tools)),
		servers: make(map[string]*ServerDefinition, len(reg.Servers)),
		agents:  make(map[string]*AgentDefinition, len(reg.Agents)),
		schemas: NewSchemaResolver(reg.Schemas),
	}
	for i := range reg.Servers {
		syms.servers[reg.Servers[i].Name] = &reg.Servers[i]
	}
	for i := range reg.Agents {
		syms.agents[reg.Agents[i].Name] = &reg.Agents[i]
	}
	for i := range reg.Tools {
		def := &reg.Tools[i]
		if _, exists := syms.tools[def.Name]; exists {
			result.addError(Issue{
				Code:    CodeDuplicateToolName,
				Entity:  entityRef(KindTool, def.Name, def.Version),
				Message: fmt.Sprintf("tool %q is declared more than once", def.Name),
			})
			continue
		}
		syms.tools[def.Name] = def
	}
	return syms
}

// compileTool is pass 2 for one tool definition.
func (c *Compiler) compileTool(
	def *ToolDefinition,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) *CompiledTool {
	owner := entityRef(KindTool, def.Name, def.Version)
	node := GraphNode{Kind: KindTool, Name: def.Name, Version: def.Version}
	graph.AddNode(node)

	if (def.Source == nil) == (def.Composition == nil) {
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: "tool must declare exactly one of source and composition",
		})
		return nil
	}

	tool := &CompiledTool{
		Name:            def.Name,
		Version:         def.Version,
		Description:     def.Description,
		OutputTransform: def.OutputTransform,
		Deprecated:      def.Deprecated,
	}

	tool.InputSchema = c.resolveSchema(def.InputSchema, owner, syms, result)
	tool.OutputSchema = c.resolveSchema(def.OutputSchema, owner, syms, result)

	validator.validateDepends(owner, def.Depends, syms)
	for _, dep := range def.Depends {
		graph.AddEdge(node, GraphNode{Kind: dep.Kind, Name: dep.Name, Version: dep.Version})
	}

	if def.Source != nil {
		validator.validateSource(owner, def.Source, syms)
		tool.Source = &CompiledSource{
			Server:     def.Source.Server,
			Tool:       def.Source.Tool,
			BackendRef: def.Source.Server + "/" + def.Source.Tool,
			Defaults:   def.Source.Defaults,
			HideFields: toSet(def.Source.HideFields),
		}
		if server, ok := syms.servers[def.Source.Server]; ok {
			graph.AddEdge(node, GraphNode{Kind: KindServer, Name: server.Name, Version: server.Version})
		}
		tool.InputSchema = stripHiddenFields(tool.InputSchema, def.Source.HideFields)
	} else {
		c.compilePattern(def.Composition, owner, node, syms, graph, validator, result)
		tool.Pattern = def.Composition
	}

	tool.InputValidator = c.compileInputValidator(def.Name, tool.InputSchema, result)
	return tool
}

// compilePattern validates a pattern tree recursively and records dependency
// edges for references to other registry compositions. Named tool references
// that do not resolve against the registry are legal: they are raw backend
// names known only to the external invoker.
func (c *Compiler) compilePattern(
	p *PatternSpec,
	owner string,
	from GraphNode,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) {
	if p == nil {
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: "composition pattern is nil",
		})
		return
	}
	switch p.Type {
	case PatternPipeline:
		c.compilePipeline(p.Pipeline, owner, from, syms, graph, validator, result)
	case PatternScatterGather:
		c.compileScatterGather(p.ScatterGather, owner, from, syms, graph, validator, result)
	case PatternFilter:
		c.compileFilter(p.Filter, owner, result)
	case PatternSchemaMap:
		c.compileSchemaMap(p.SchemaMap, owner, result)
	case PatternMapEach:
		if p.MapEach == nil {
			c.missingVariant(p.Type, owner, result)
			return
		}
		c.compileOperation(p.MapEach.Inner, owner, from, syms, graph, validator, result)
	case PatternSaga:
		c.compileSaga(p.Saga, owner, from, syms, graph, validator, result)
	case PatternCache, PatternCircuit:
		// Declared-only variants: they parse and compile so existing
		// catalogs load, but executing them yields NotImplemented.
	default:
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: fmt.Sprintf("unknown pattern type %q", p.Type),
		})
	}
}

// compileOperation validates a tool-or-pattern operation and records the
// dependency edge when the named tool is a registry composition.
func (c *Compiler) compileOperation(
	op StepOperation,
	owner string,
	from GraphNode,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) {
	if (op.Tool == "") == (op.Pattern == nil) {
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: "step operation must declare exactly one of tool and pattern",
		})
		return
	}
	if op.Pattern != nil {
		c.compilePattern(op.Pattern, owner, from, syms, graph, validator, result)
		return
	}
	if target, ok := syms.tools[op.Tool]; ok {
		if target.Deprecated {
			validator.deprecated(entityRef(KindTool, target.Name, target.Version), owner)
		}
		// Only references to other registry compositions participate in the
		// dependency graph; source adapters cannot introduce tool cycles.
		if target.IsComposition() {
			graph.AddEdge(from, GraphNode{Kind: KindTool, Name: target.Name, Version: target.Version})
		}
	}
}

func (c *Compiler) compilePipeline(
	p *PipelineSpec,
	owner string,
	from GraphNode,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) {
	if p == nil || len(p.Steps) == 0 {
		c.missingVariant(PatternPipeline, owner, result)
		return
	}
	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		if step.ID == "" {
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("pipeline step %d has no id", i),
			})
			continue
		}
		if seen[step.ID] {
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("duplicate pipeline step id %q", step.ID),
			})
		}
		c.checkStepBinding(step.Input, seen, owner, step.ID, result)
		seen[step.ID] = true
		c.compileOperation(step.StepOperation, owner, from, syms, graph, validator, result)
	}
}

func (c *Compiler) compileScatterGather(
	p *ScatterGatherSpec,
	owner string,
	from GraphNode,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) {
	if p == nil || len(p.Targets) == 0 {
		c.missingVariant(PatternScatterGather, owner, result)
		return
	}
	for _, target := range p.Targets {
		c.compileOperation(target, owner, from, syms, graph, validator, result)
	}
	for i := range p.Aggregation.Ops {
		op := p.Aggregation.Ops[i]
		switch op.Op {
		case AggFlatten, AggConcat, AggMerge, AggDedupe:
		case AggSort:
			// An omitted order means ascending; the executor applies the
			// default so compilation never writes into the parsed registry.
			if op.Order != "" && op.Order != OrderAsc && op.Order != OrderDesc {
				result.addError(Issue{
					Code:    CodeInvalidPattern,
					Entity:  owner,
					Message: fmt.Sprintf("sort order must be asc or desc, got %q", op.Order),
				})
			}
		case AggLimit:
			if op.Count <= 0 {
				result.addError(Issue{
					Code:    CodeInvalidPattern,
					Entity:  owner,
					Message: fmt.Sprintf("limit count must be positive, got %d", op.Count),
				})
			}
		default:
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("unknown aggregation op %q", op.Op),
			})
		}
	}
}

func (c *Compiler) compileFilter(p *FilterSpec, owner string, result *ValidationResult) {
	if p == nil {
		c.missingVariant(PatternFilter, owner, result)
		return
	}
	switch p.Predicate.Op {
	case OpEQ, OpNE, OpGT, OpGTE, OpLT, OpLTE, OpContains, OpIn:
	default:
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: fmt.Sprintf("unknown filter op %q", p.Predicate.Op),
		})
	}
	if p.Predicate.Field == "" {
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: "filter predicate field is required",
		})
	}
}

func (c *Compiler) compileSchemaMap(p *SchemaMapSpec, owner string, result *ValidationResult) {
	if p == nil || len(p.Fields) == 0 {
		c.missingVariant(PatternSchemaMap, owner, result)
		return
	}
	c.compileFieldSources(p.Fields, owner, result)
}

// compileFieldSources validates a field-source map recursively.
func (c *Compiler) compileFieldSources(fields map[string]*FieldSource, owner string, result *ValidationResult) {
	for name, src := range fields {
		if src == nil {
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("field %q has no source", name),
			})
			continue
		}
		switch src.Type {
		case FieldPath, FieldLiteral, FieldTemplate:
		case FieldCoalesce, FieldConcat:
			if len(src.Paths) == 0 {
				result.addError(Issue{
					Code:    CodeInvalidPattern,
					Entity:  owner,
					Message: fmt.Sprintf("field %q: %s source requires paths", name, src.Type),
				})
			}
		case FieldNested:
			c.compileFieldSources(src.Fields, owner, result)
		default:
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("field %q has unknown source type %q", name, src.Type),
			})
		}
	}
}

func (c *Compiler) compileSaga(
	p *SagaSpec,
	owner string,
	from GraphNode,
	syms *symbolTable,
	graph *DependencyGraph,
	validator *Validator,
	result *ValidationResult,
) {
	if p == nil || len(p.Steps) == 0 {
		c.missingVariant(PatternSaga, owner, result)
		return
	}
	seen := make(map[string]bool, len(p.Steps))
	all := make(map[string]bool, len(p.Steps))
	for _, step := range p.Steps {
		all[step.ID] = true
	}
	for i := range p.Steps {
		step := &p.Steps[i]
		if step.ID == "" {
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("saga step %d has no id", i),
			})
			continue
		}
		if seen[step.ID] {
			result.addError(Issue{
				Code:    CodeInvalidPattern,
				Entity:  owner,
				Message: fmt.Sprintf("duplicate saga step id %q", step.ID),
			})
		}
		// Forward inputs may only reference earlier steps; compensation runs
		// after the forward pass and may reference any declared step.
		c.checkStepBinding(step.Input, seen, owner, step.ID, result)
		seen[step.ID] = true
		c.compileOperation(step.Action, owner, from, syms, graph, validator, result)
		if step.Compensate != nil {
			c.checkStepBinding(step.Compensate.Input, all, owner, step.ID, result)
			c.compileOperation(step.Compensate.StepOperation, owner, from, syms, graph, validator, result)
		}
	}
	c.checkStepBinding(p.Output, all, owner, "output", result)
}

// missingVariant reports a pattern whose variant body is absent or empty.
func (c *Compiler) missingVariant(t PatternType, owner string, result *ValidationResult) {
	result.addError(Issue{
		Code:    CodeInvalidPattern,
		Entity:  owner,
		Message: fmt.Sprintf("%s pattern has no %s body", t, t),
	})
}

// checkStepBinding walks a binding tree and reports Step references to ids
// outside the admitted set. This is the static-ordering guarantee that lets
// the runtime treat a missing step result as an internal consistency error.
func (c *Compiler) checkStepBinding(
	b *DataBinding,
	admitted map[string]bool,
	owner, at string,
	result *ValidationResult,
) {
	if b == nil {
		return
	}
	switch b.Type {
	case BindInput, BindConstant:
	case BindStep:
		if !admitted[b.Step] {
			result.addError(Issue{
				Code:    CodeInvalidStepReference,
				Entity:  owner,
				Message: fmt.Sprintf("step %q binds output of %q, which is not an earlier step", at, b.Step),
			})
		}
	case BindConstruct:
		for _, field := range b.Fields {
			c.checkStepBinding(field, admitted, owner, at, result)
		}
	default:
		result.addError(Issue{
			Code:    CodeInvalidPattern,
			Entity:  owner,
			Message: fmt.Sprintf("step %q has unknown binding type %q", at, b.Type),
		})
	}
}

// resolveSchema resolves an inline-or-reference schema spec to a body.
func (c *Compiler) resolveSchema(
	spec *SchemaSpec,
	owner string,
	syms *symbolTable,
	result *ValidationResult,
) map[string]any {
	if spec == nil {
		return nil
	}
	if spec.Ref != "" {
		body, err := syms.schemas.Resolve(spec.Ref, owner)
		if err != nil {
			result.add(c.cfg.normalized().MissingEntity, Issue{
				Code:    CodeSchemaNotFound,
				Entity:  "schema:" + spec.Ref,
				UsedBy:  owner,
				Message: err.Error(),
			})
			return nil
		}
		return body
	}
	return spec.Inline
}

// compileInputValidator compiles the effective input schema into a runtime
// validator. A schema that fails to compile is reported as a warning; the
// tool stays usable without input validation.
func (c *Compiler) compileInputValidator(
	name string,
	schema map[string]any,
	result *ValidationResult,
) *jsonschema.Schema {
	if schema == nil {
		return nil
	}
	url := "registry:///" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, schema); err != nil {
		result.add(SeverityWarn, Issue{
			Code:    CodeInvalidSchema,
			Entity:  entityRef(KindTool, name, ""),
			Message: fmt.Sprintf("input schema rejected: %v", err),
		})
		return nil
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		result.add(SeverityWarn, Issue{
			Code:    CodeInvalidSchema,
			Entity:  entityRef(KindTool, name, ""),
			Message: fmt.Sprintf("input schema rejected: %v", err),
		})
		return nil
	}
	return sch
}

// stripHiddenFields deep-copies the schema and removes hidden fields from
// both properties and required.
func stripHiddenFields(schema map[string]any, hidden []string) map[string]any {
	if schema == nil || len(hidden) == 0 {
		return schema
	}
	out := deepCopyMap(schema)
	hide := toSet(hidden)

	if props, ok := out["properties"].(map[string]any); ok {
		for field := range hide {
			delete(props, field)
		}
	}
	switch required := out["required"].(type) {
	case []any:
		kept := make([]any, 0, len(required))
		for _, field := range required {
			if name, ok := field.(string); ok {
				if _, hiddenField := hide[name]; hiddenField {
					continue
				}
			}
			kept = append(kept, field)
		}
		out["required"] = kept
	case []string:
		kept := make([]string, 0, len(required))
		for _, name := range required {
			if _, hiddenField := hide[name]; hiddenField {
				continue
			}
			kept = append(kept, name)
		}
		out["required"] = kept
	}
	return out
}

func toSet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// deepCopyMap copies a JSON-shaped map so compiled schemas never alias the
// parsed registry.
func deepCopyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
