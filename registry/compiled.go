//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import (
	"sort"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CompiledTool is the validated, ready-to-run form of a ToolDefinition. It is
// owned exclusively by its CompiledRegistry and never mutated after
// compilation.
type CompiledTool struct {
	// Name is the virtual tool name.
	Name string

	// Version is the tool version.
	Version string

	// Description describes the tool.
	Description string

	// Source is set for 1:1 backend adapters.
	Source *CompiledSource

	// Pattern is the compiled orchestration tree for compositions.
	Pattern *PatternSpec

	// InputSchema is the effective input schema body, with hidden fields
	// already removed for source tools. Nil when the tool declares none.
	InputSchema map[string]any

	// OutputSchema is the resolved output schema body, if declared.
	OutputSchema map[string]any

	// OutputTransform optionally rebuilds the tool output before returning
	// it to the caller.
	OutputTransform map[string]*FieldSource

	// InputValidator validates call input against InputSchema when the
	// schema compiled cleanly. Nil otherwise.
	InputValidator *jsonschema.Schema

	// Deprecated marks the tool as deprecated.
	Deprecated bool
}

// IsComposition reports whether the tool runs a pattern tree.
func (t *CompiledTool) IsComposition() bool {
	return t.Pattern != nil
}

// CompiledSource is the resolved form of a SourceTool.
type CompiledSource struct {
	// Server is the providing server name.
	Server string

	// Tool is the backend tool name on that server.
	Tool string

	// BackendRef is the "server/tool" reference handed to the invoker.
	BackendRef string

	// Defaults are injected under caller input at invocation time.
	Defaults map[string]any

	// HideFields are removed from call input before delegation.
	HideFields map[string]struct{}
}

// CompiledRegistry is the immutable, validated catalog. It is safe for
// unsynchronized concurrent reads by construction: nothing is written after
// Compile returns it. A reload produces a wholly new instance.
type CompiledRegistry struct {
	name    string
	version string
	tools   map[string]*CompiledTool
	schemas map[string]SchemaDefinition
	servers map[string]ServerDefinition
}

// Name returns the catalog name.
func (r *CompiledRegistry) Name() string { return r.name }

// Version returns the catalog version.
func (r *CompiledRegistry) Version() string { return r.version }

// GetTool returns the compiled tool with the given name.
func (r *CompiledRegistry) GetTool(name string) (*CompiledTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// IsComposition reports whether the named tool is a composition. Unknown
// names report false.
func (r *CompiledRegistry) IsComposition(name string) bool {
	t, ok := r.tools[name]
	return ok && t.IsComposition()
}

// ToolNames returns the sorted names of every compiled tool.
func (r *CompiledRegistry) ToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the schema definition with the given "name:version"
// reference.
func (r *CompiledRegistry) Schema(ref string) (SchemaDefinition, bool) {
	s, ok := r.schemas[ref]
	return s, ok
}

// Server returns the server definition with the given name.
func (r *CompiledRegistry) Server(name string) (ServerDefinition, bool) {
	s, ok := r.servers[name]
	return s, ok
}

// Swappable holds the current CompiledRegistry behind an atomic pointer so a
// reload can replace the whole catalog without disturbing in-flight calls.
// Consumers must Load once per call and use that instance throughout; the
// held registry is never mutated in place.
type Swappable struct {
	ptr atomic.Pointer[CompiledRegistry]
}

// NewSwappable creates a holder with the given initial registry.
func NewSwappable(reg *CompiledRegistry) *Swappable {
	s := &Swappable{}
	s.ptr.Store(reg)
	return s
}

// Load returns the current registry snapshot.
func (s *Swappable) Load() *CompiledRegistry {
	return s.ptr.Load()
}

// Swap installs a new registry and returns the previous one.
func (s *Swappable) Swap(reg *CompiledRegistry) *CompiledRegistry {
	return s.ptr.Swap(reg)
}
