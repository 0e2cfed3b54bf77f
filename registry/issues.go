//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import (
	"fmt"
	"strings"
)

// Severity classifies how a validation finding is treated.
type Severity string

// Severities.
const (
	SeverityError  Severity = "error"
	SeverityWarn   Severity = "warn"
	SeverityIgnore Severity = "ignore"
)

// CheckConfig maps each configurable check category to a severity.
// Structural findings (circular dependencies, duplicate tool names, invalid
// patterns) are always errors and are not configurable.
type CheckConfig struct {
	// MissingEntity governs unresolved schema, server, tool, and agent
	// references, including server-provides mismatches.
	MissingEntity Severity

	// DeprecatedEntity governs usage of deprecated servers and tools.
	DeprecatedEntity Severity

	// UnusedSchema governs schemas that are defined but never referenced.
	UnusedSchema Severity
}

// DefaultCheckConfig returns the default severities: missing entities are
// errors, deprecations and unused schemas are warnings.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		MissingEntity:    SeverityError,
		DeprecatedEntity: SeverityWarn,
		UnusedSchema:     SeverityWarn,
	}
}

func (c CheckConfig) normalized() CheckConfig {
	def := DefaultCheckConfig()
	if c.MissingEntity == "" {
		c.MissingEntity = def.MissingEntity
	}
	if c.DeprecatedEntity == "" {
		c.DeprecatedEntity = def.DeprecatedEntity
	}
	if c.UnusedSchema == "" {
		c.UnusedSchema = def.UnusedSchema
	}
	return c
}

// IssueCode identifies a class of validation finding.
type IssueCode string

// Issue codes.
const (
	CodeSchemaNotFound           IssueCode = "SchemaNotFound"
	CodeServerNotFound           IssueCode = "ServerNotFound"
	CodeToolNotFound             IssueCode = "ToolNotFound"
	CodeAgentNotFound            IssueCode = "AgentNotFound"
	CodeCircularDependency       IssueCode = "CircularDependency"
	CodeServerDoesNotProvideTool IssueCode = "ServerDoesNotProvideTool"
	CodeDuplicateToolName        IssueCode = "DuplicateToolName"
	CodeDeprecatedEntity         IssueCode = "DeprecatedEntity"
	CodeUnusedSchema             IssueCode = "UnusedSchema"
	CodeInvalidSchema            IssueCode = "InvalidSchema"
	CodeInvalidPattern           IssueCode = "InvalidPattern"
	CodeInvalidStepReference     IssueCode = "InvalidStepReference"
)

// Issue is one validation finding. All findings are collected into a single
// ValidationResult; validation never stops at the first failure.
type Issue struct {
	// Code identifies the finding class.
	Code IssueCode `json:"code"`

	// Severity is the effective severity after applying the check config.
	Severity Severity `json:"severity"`

	// Entity is the offending entity reference (e.g., "tool:search@1.0").
	Entity string `json:"entity,omitempty"`

	// UsedBy names the entity that triggered the finding, when relevant.
	UsedBy string `json:"used_by,omitempty"`

	// Cycle is the dependency cycle for CircularDependency findings.
	Cycle []string `json:"cycle,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

// Error renders the issue as a single line.
func (i Issue) Error() string {
	var b strings.Builder
	b.WriteString(string(i.Code))
	if i.Entity != "" {
		fmt.Fprintf(&b, " %s", i.Entity)
	}
	if i.UsedBy != "" {
		fmt.Fprintf(&b, " (used by %s)", i.UsedBy)
	}
	if len(i.Cycle) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(i.Cycle, " -> "))
	}
	if i.Message != "" {
		fmt.Fprintf(&b, ": %s", i.Message)
	}
	return b.String()
}

// ValidationResult carries every finding of one compilation, partitioned by
// effective severity. A result with only warnings still yields a usable
// CompiledRegistry.
type ValidationResult struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether compilation produced no errors.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// add records an issue under the given severity; ignored issues are dropped.
func (r *ValidationResult) add(sev Severity, issue Issue) {
	issue.Severity = sev
	switch sev {
	case SeverityError:
		r.Errors = append(r.Errors, issue)
	case SeverityWarn:
		r.Warnings = append(r.Warnings, issue)
	case SeverityIgnore:
	}
}

// addError records an issue that is always an error.
func (r *ValidationResult) addError(issue Issue) {
	r.add(SeverityError, issue)
}

// entityRef renders a dependency-graph entity as "kind:name@version".
func entityRef(kind EntityKind, name, version string) string {
	if version == "" {
		return fmt.Sprintf("%s:%s", kind, name)
	}
	return fmt.Sprintf("%s:%s@%s", kind, name, version)
}
