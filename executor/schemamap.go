//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package executor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/toolmesh/toolmesh/binding"
	"github.com/toolmesh/toolmesh/registry"
)

// resolveFieldSources builds an output object field-by-field from the given
// sources, evaluated against doc. Missing path and literal sources resolve to
// null, never an error. It also backs tool output transforms.
func resolveFieldSources(fields map[string]*registry.FieldSource, doc any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, src := range fields {
		value, err := resolveFieldSource(src, doc)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}

func resolveFieldSource(src *registry.FieldSource, doc any) (any, error) {
	switch src.Type {
	case registry.FieldPath:
		return binding.EvalPath(src.Path, doc)
	case registry.FieldLiteral:
		return binding.Copy(src.Literal), nil
	case registry.FieldCoalesce:
		for _, path := range src.Paths {
			value, err := binding.EvalPath(path, doc)
			if err != nil {
				return nil, err
			}
			if value != nil {
				return value, nil
			}
		}
		return nil, nil
	case registry.FieldTemplate:
		return interpolateTemplate(src.Template, src.Variables, doc)
	case registry.FieldConcat:
		parts := make([]string, 0, len(src.Paths))
		for _, path := range src.Paths {
			value, err := binding.EvalPath(path, doc)
			if err != nil {
				return nil, err
			}
			parts = append(parts, stringify(value))
		}
		return strings.Join(parts, src.Separator), nil
	case registry.FieldNested:
		return resolveFieldSources(src.Fields, doc)
	default:
		return nil, fmt.Errorf("unknown field source type %q", src.Type)
	}
}

// interpolateTemplate substitutes {var} placeholders with the stringified
// value of the variable's bound path. A missing variable resolves to empty
// string. Unmatched braces pass through untouched.
func interpolateTemplate(template string, variables map[string]string, doc any) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		end += open

		b.WriteString(template[i:open])
		name := template[open+1 : end]
		if path, ok := variables[name]; ok {
			value, err := binding.EvalPath(path, doc)
			if err != nil {
				return "", err
			}
			b.WriteString(stringify(value))
		}
		i = end + 1
	}
	return b.String(), nil
}

// stringify renders a JSON-shaped value for template and concat output.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
