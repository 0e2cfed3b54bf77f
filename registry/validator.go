//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import "fmt"

// Validator performs semantic validation over a registry:
// 1. Reference validation (depends targets, source-tool server references)
// 2. Server coherence (the referenced server actually provides the tool)
// 3. Deprecation usage warnings
// 4. Cycle detection over the dependency graph
// 5. Unused schema detection
// Findings are accumulated into a shared ValidationResult; validation never
// stops at the first failure so operators see every problem at once.
type Validator struct {
	cfg    CheckConfig
	result *ValidationResult
}

// NewValidator creates a validator writing findings into result using the
// given severity configuration.
func NewValidator(cfg CheckConfig, result *ValidationResult) *Validator {
	return &Validator{cfg: cfg.normalized(), result: result}
}

// validateDepends checks every explicit dependency declaration against the
// registered entity names and flags deprecated targets in use.
func (v *Validator) validateDepends(owner string, depends []EntityRef, syms *symbolTable) {
	for _, dep := range depends {
		switch dep.Kind {
		case KindTool:
			target, ok := syms.tools[dep.Name]
			if !ok {
				v.result.add(v.cfg.MissingEntity, Issue{
					Code:    CodeToolNotFound,
					Entity:  entityRef(KindTool, dep.Name, dep.Version),
					UsedBy:  owner,
					Message: fmt.Sprintf("dependency references unknown tool %q", dep.Name),
				})
				continue
			}
			if target.Deprecated {
				v.deprecated(entityRef(KindTool, dep.Name, target.Version), owner)
			}
		case KindServer:
			target, ok := syms.servers[dep.Name]
			if !ok {
				v.result.add(v.cfg.MissingEntity, Issue{
					Code:    CodeServerNotFound,
					Entity:  entityRef(KindServer, dep.Name, dep.Version),
					UsedBy:  owner,
					Message: fmt.Sprintf("dependency references unknown server %q", dep.Name),
				})
				continue
			}
			if target.Deprecated {
				v.deprecated(entityRef(KindServer, dep.Name, target.Version), owner)
			}
		case KindAgent:
			if _, ok := syms.agents[dep.Name]; !ok {
				v.result.add(v.cfg.MissingEntity, Issue{
					Code:    CodeAgentNotFound,
					Entity:  entityRef(KindAgent, dep.Name, dep.Version),
					UsedBy:  owner,
					Message: fmt.Sprintf("dependency references unknown agent %q", dep.Name),
				})
			}
		case KindSchema:
			ref := dep.Name + ":" + dep.Version
			if !syms.schemas.Has(ref) {
				v.result.add(v.cfg.MissingEntity, Issue{
					Code:    CodeSchemaNotFound,
					Entity:  entityRef(KindSchema, dep.Name, dep.Version),
					UsedBy:  owner,
					Message: fmt.Sprintf("dependency references unknown schema %q", ref),
				})
			}
		default:
			v.result.addError(Issue{
				Code:    CodeInvalidPattern,
				UsedBy:  owner,
				Message: fmt.Sprintf("unknown dependency kind %q", dep.Kind),
			})
		}
	}
}

// validateSource checks a source tool's server reference: the server must
// exist and must list the referenced backend tool in its provides set.
func (v *Validator) validateSource(owner string, src *SourceTool, syms *symbolTable) {
	server, ok := syms.servers[src.Server]
	if !ok {
		v.result.add(v.cfg.MissingEntity, Issue{
			Code:    CodeServerNotFound,
			Entity:  entityRef(KindServer, src.Server, ""),
			UsedBy:  owner,
			Message: fmt.Sprintf("source tool references unknown server %q", src.Server),
		})
		return
	}
	if !server.ProvidesTool(src.Tool) {
		v.result.add(v.cfg.MissingEntity, Issue{
			Code:    CodeServerDoesNotProvideTool,
			Entity:  entityRef(KindServer, src.Server, server.Version),
			UsedBy:  owner,
			Message: fmt.Sprintf("server %q does not provide tool %q", src.Server, src.Tool),
		})
	}
	if server.Deprecated {
		v.deprecated(entityRef(KindServer, src.Server, server.Version), owner)
	}
}

// checkCycles reports every cycle in the dependency graph. Cycles are always
// errors; an acyclic graph is a structural requirement, not a policy choice.
func (v *Validator) checkCycles(graph *DependencyGraph) {
	for _, cycle := range graph.FindCycles() {
		names := make([]string, len(cycle))
		for i, n := range cycle {
			names[i] = n.String()
		}
		v.result.addError(Issue{
			Code:    CodeCircularDependency,
			Cycle:   names,
			Message: "dependency cycle detected",
		})
	}
}

// checkUnusedSchemas warns about schemas never referenced during compilation.
func (v *Validator) checkUnusedSchemas(resolver *SchemaResolver) {
	for _, ref := range resolver.Unused() {
		v.result.add(v.cfg.UnusedSchema, Issue{
			Code:    CodeUnusedSchema,
			Entity:  "schema:" + ref,
			Message: fmt.Sprintf("schema %q is defined but never referenced", ref),
		})
	}
}

func (v *Validator) deprecated(entity, usedBy string) {
	v.result.add(v.cfg.DeprecatedEntity, Issue{
		Code:    CodeDeprecatedEntity,
		Entity:  entity,
		UsedBy:  usedBy,
		Message: fmt.Sprintf("%s is deprecated", entity),
	})
}
