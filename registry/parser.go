//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Parser parses a JSON catalog into a Registry. The JSON shape is this
// module's own convenience format; callers that already hold a parsed object
// graph can hand a *Registry to Compile directly.
type Parser struct {
	// Strict mode enables strict JSON parsing (disallow unknown fields).
	Strict bool
}

// NewParser creates a new registry parser.
func NewParser() *Parser {
	return &Parser{Strict: false}
}

// NewStrictParser creates a new parser with strict mode enabled.
func NewStrictParser() *Parser {
	return &Parser{Strict: true}
}

// Parse parses a JSON byte array into a Registry.
func (p *Parser) Parse(data []byte) (*Registry, error) {
	var reg Registry

	decoder := json.NewDecoder(bytes.NewReader(data))
	if p.Strict {
		decoder.DisallowUnknownFields()
	}

	if err := decoder.Decode(&reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	return &reg, nil
}

// ParseFile parses a JSON file into a Registry.
func (p *Parser) ParseFile(filename string) (*Registry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return p.Parse(data)
}

// ParseString parses a JSON string into a Registry.
func (p *Parser) ParseString(jsonStr string) (*Registry, error) {
	return p.Parse([]byte(jsonStr))
}
