//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

// Package mcpinvoker backs tool execution with MCP servers. Backend tool
// names use the "server/tool" form produced by registry compilation; the
// invoker routes each call to the named server's session.
package mcpinvoker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/toolmesh/toolmesh/log"
)

// Transport selects how a server connection is established.
type Transport string

// Supported transports.
const (
	// TransportStdio launches the server as a subprocess and speaks MCP over
	// its standard streams.
	TransportStdio Transport = "stdio"

	// TransportStreamable connects to an MCP server over streamable HTTP.
	TransportStreamable Transport = "streamable_http"
)

var defaultClientInfo = mcp.Implementation{
	Name:    "toolmesh",
	Version: "1.0.0",
}

// ConnectionConfig describes one MCP server connection.
type ConnectionConfig struct {
	// Transport selects stdio or streamable HTTP.
	Transport Transport

	// ServerURL is the endpoint for streamable HTTP transport.
	ServerURL string

	// Command and Args launch the server for stdio transport.
	Command string
	Args    []string

	// Headers are extra HTTP headers for streamable transport.
	Headers map[string]string

	// Timeout bounds individual MCP requests. Zero uses the client default.
	Timeout time.Duration
}

// Invoker routes backend tool calls to MCP server sessions. Sessions connect
// lazily on first use and are reused for the invoker's lifetime. Safe for
// concurrent use.
type Invoker struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// session wraps one server's MCP client.
type session struct {
	name   string
	config ConnectionConfig

	mu          sync.Mutex
	client      mcp.Connector
	initialized bool
}

// New creates an invoker over the given server connections, keyed by the
// server name referenced from the registry.
func New(servers map[string]ConnectionConfig) *Invoker {
	sessions := make(map[string]*session, len(servers))
	for name, config := range servers {
		sessions[name] = &session{name: name, config: config}
	}
	return &Invoker{sessions: sessions}
}

// Invoke calls the named backend tool. The name must be "server/tool"; an
// unqualified name resolves only when exactly one server is configured.
func (inv *Invoker) Invoke(ctx context.Context, name string, input any) (any, error) {
	serverName, toolName, err := inv.route(name)
	if err != nil {
		return nil, err
	}
	sess := inv.sessions[serverName]

	arguments, err := toArguments(input)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return sess.callTool(ctx, toolName, arguments)
}

// Close shuts down every connected session. The first error is returned;
// remaining sessions are still closed.
func (inv *Invoker) Close() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	var firstErr error
	for _, sess := range inv.sessions {
		if err := sess.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// route splits "server/tool" and checks the server is configured.
func (inv *Invoker) route(name string) (string, string, error) {
	serverName, toolName, ok := strings.Cut(name, "/")
	if !ok {
		if len(inv.sessions) == 1 {
			for only := range inv.sessions {
				return only, name, nil
			}
		}
		return "", "", fmt.Errorf("tool name %q is not server-qualified", name)
	}
	if _, exists := inv.sessions[serverName]; !exists {
		return "", "", fmt.Errorf("no connection configured for server %q", serverName)
	}
	return serverName, toolName, nil
}

// toArguments shapes call input as the MCP argument object. Nil becomes an
// empty object; anything other than an object is rejected since MCP tool
// arguments are named.
func toArguments(input any) (map[string]any, error) {
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("input is %T, MCP tool arguments must be an object", input)
	}
}

// connect establishes and initializes the session if needed.
func (s *session) connect(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	log.Infof("connecting to MCP server %q (transport %s)", s.name, s.config.Transport)

	client, err := s.createClient()
	if err != nil {
		return fmt.Errorf("create MCP client for server %q: %w", s.name, err)
	}

	initResp, err := client.Initialize(ctx, &mcp.InitializeRequest{})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Errorf("close MCP client after failed initialize: %v", closeErr)
		}
		return fmt.Errorf("initialize MCP session with server %q: %w", s.name, err)
	}

	log.Infof("MCP session with %q initialized (server %s %s, protocol %s)",
		s.name, initResp.ServerInfo.Name, initResp.ServerInfo.Version, initResp.ProtocolVersion)

	s.client = client
	s.initialized = true
	return nil
}

// createClient builds the MCP client for the configured transport.
func (s *session) createClient() (mcp.Connector, error) {
	switch s.config.Transport {
	case TransportStdio:
		config := mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: s.config.Command,
				Args:    s.config.Args,
			},
			Timeout: s.config.Timeout,
		}
		return mcp.NewStdioClient(config, defaultClientInfo)

	case TransportStreamable:
		options := []mcp.ClientOption{
			mcp.WithClientLogger(mcp.GetDefaultLogger()),
		}
		if len(s.config.Headers) > 0 {
			headers := http.Header{}
			for k, v := range s.config.Headers {
				headers.Set(k, v)
			}
			options = append(options, mcp.WithHTTPHeaders(headers))
		}
		return mcp.NewClient(s.config.ServerURL, defaultClientInfo, options...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", s.config.Transport)
	}
}

// callTool performs one tool call, connecting first if needed.
func (s *session) callTool(ctx context.Context, toolName string, arguments map[string]any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	callReq := &mcp.CallToolRequest{}
	callReq.Params.Name = toolName
	callReq.Params.Arguments = arguments

	callResp, err := s.client.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("call tool %q on server %q: %w", toolName, s.name, err)
	}
	if callResp.IsError {
		return nil, fmt.Errorf("tool %q on server %q returned error: %s",
			toolName, s.name, errorText(callResp.Content))
	}
	return contentValue(callResp.Content), nil
}

// close shuts the session's client down, if connected.
func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.initialized = false
	return err
}

// errorText extracts a readable message from error response content.
func errorText(contents []mcp.Content) string {
	var messages []string
	for _, content := range contents {
		if text, ok := content.(mcp.TextContent); ok {
			messages = append(messages, text.Text)
		}
	}
	if len(messages) == 0 {
		return "unknown error"
	}
	return strings.Join(messages, "; ")
}

// contentValue converts MCP response content to a JSON-shaped value. A single
// text item that parses as JSON is returned parsed, so structured outputs can
// feed pattern data flow; non-JSON text stays a string. Multiple items become
// an array.
func contentValue(contents []mcp.Content) any {
	if len(contents) == 0 {
		return nil
	}
	if len(contents) == 1 {
		return singleContentValue(contents[0])
	}
	values := make([]any, len(contents))
	for i, content := range contents {
		values[i] = singleContentValue(content)
	}
	return values
}

// singleContentValue converts one content item.
func singleContentValue(content mcp.Content) any {
	switch c := content.(type) {
	case mcp.TextContent:
		var parsed any
		if err := json.Unmarshal([]byte(c.Text), &parsed); err == nil {
			return parsed
		}
		return c.Text
	case mcp.ImageContent:
		return map[string]any{"type": "image", "data": c.Data, "mimetype": c.MimeType}
	case mcp.AudioContent:
		return map[string]any{"type": "audio", "data": c.Data, "mimetype": c.MimeType}
	default:
		raw, err := json.Marshal(content)
		if err != nil {
			return nil
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil
		}
		return value
	}
}
