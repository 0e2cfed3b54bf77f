//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import (
	"fmt"
	"sort"
)

// SchemaNotFoundError reports an unresolved "name:version" schema reference.
type SchemaNotFoundError struct {
	// Ref is the unresolved reference.
	Ref string

	// UsedBy names the entity holding the reference.
	UsedBy string
}

// Error implements the error interface.
func (e *SchemaNotFoundError) Error() string {
	if e.UsedBy == "" {
		return fmt.Sprintf("schema %q not found", e.Ref)
	}
	return fmt.Sprintf("schema %q not found (used by %s)", e.Ref, e.UsedBy)
}

// SchemaResolver resolves "name:version" references to JSON Schema bodies and
// tracks which definitions were actually used so that unused schemas can be
// reported as warnings.
type SchemaResolver struct {
	schemas map[string]SchemaDefinition
	used    map[string]bool
}

// NewSchemaResolver creates a resolver over the given definitions. Later
// definitions with the same "name:version" reference shadow earlier ones.
func NewSchemaResolver(defs []SchemaDefinition) *SchemaResolver {
	r := &SchemaResolver{
		schemas: make(map[string]SchemaDefinition, len(defs)),
		used:    make(map[string]bool, len(defs)),
	}
	for _, def := range defs {
		r.schemas[def.Ref()] = def
	}
	return r
}

// Resolve returns the schema body for ref, marking the definition as used.
// It fails with *SchemaNotFoundError when no matching definition exists.
func (r *SchemaResolver) Resolve(ref, usedBy string) (map[string]any, error) {
	def, ok := r.schemas[ref]
	if !ok {
		return nil, &SchemaNotFoundError{Ref: ref, UsedBy: usedBy}
	}
	r.used[ref] = true
	return def.Schema, nil
}

// Has reports whether ref resolves without marking it used.
func (r *SchemaResolver) Has(ref string) bool {
	_, ok := r.schemas[ref]
	return ok
}

// Unused returns the sorted references of definitions never resolved.
func (r *SchemaResolver) Unused() []string {
	var refs []string
	for ref := range r.schemas {
		if !r.used[ref] {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs
}
