//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package mcpinvoker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

func TestRoute(t *testing.T) {
	inv := New(map[string]ConnectionConfig{
		"catalog": {Transport: TransportStdio, Command: "catalog-server"},
		"reviews": {Transport: TransportStdio, Command: "reviews-server"},
	})

	server, tool, err := inv.route("catalog/search_products")
	require.NoError(t, err)
	assert.Equal(t, "catalog", server)
	assert.Equal(t, "search_products", tool)

	// Only the first separator splits; the rest belongs to the tool name.
	server, tool, err = inv.route("catalog/nested/name")
	require.NoError(t, err)
	assert.Equal(t, "catalog", server)
	assert.Equal(t, "nested/name", tool)

	_, _, err = inv.route("ghost/tool")
	assert.Error(t, err)

	// Unqualified names are ambiguous with more than one server.
	_, _, err = inv.route("bare_tool")
	assert.Error(t, err)

	single := New(map[string]ConnectionConfig{
		"only": {Transport: TransportStdio, Command: "server"},
	})
	server, tool, err = single.route("bare_tool")
	require.NoError(t, err)
	assert.Equal(t, "only", server)
	assert.Equal(t, "bare_tool", tool)
}

func TestToArguments(t *testing.T) {
	args, err := toArguments(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, args)

	args, err = toArguments(map[string]any{"q": "go"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": "go"}, args)

	_, err = toArguments([]any{"positional"})
	assert.Error(t, err)
}

func TestContentValue(t *testing.T) {
	// Structured text parses into a value; plain text stays a string.
	got := contentValue([]mcp.Content{mcp.TextContent{Type: "text", Text: `{"n": 3}`}})
	assert.Equal(t, map[string]any{"n": float64(3)}, got)

	got = contentValue([]mcp.Content{mcp.TextContent{Type: "text", Text: "plain words"}})
	assert.Equal(t, "plain words", got)

	got = contentValue(nil)
	assert.Nil(t, got)

	got = contentValue([]mcp.Content{
		mcp.TextContent{Type: "text", Text: "first"},
		mcp.TextContent{Type: "text", Text: "second"},
	})
	assert.Equal(t, []any{"first", "second"}, got)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "unknown error", errorText(nil))
	assert.Equal(t, "boom; twice", errorText([]mcp.Content{
		mcp.TextContent{Type: "text", Text: "boom"},
		mcp.TextContent{Type: "text", Text: "twice"},
	}))
}
