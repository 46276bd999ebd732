// Copyright 2025 The aks-agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcp connects the agent to an MCP tool server over one of three
// transports: a local stdio process, an SSE endpoint, or a streamable HTTP
// endpoint.
package mcp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	mcpclient "github.com/mark3labs/mcp-go/client"
)

// MCPClient defines the common interface for all MCP client implementations.
type MCPClient interface {
	// Name returns the name of this client.
	Name() string

	// Connect establishes a connection to the MCP server.
	Connect(ctx context.Context) error

	// Close closes the connection to the MCP server.
	Close() error

	// ListTools lists all available tools from the MCP server.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool calls a tool on the MCP server and returns the result as a string.
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error)

	// ensureConnected makes sure the client is connected.
	ensureConnected() error

	// getUnderlyingClient returns the underlying mcpclient.Client.
	getUnderlyingClient() *mcpclient.Client
}

// ClientConfig contains all configuration options for MCP clients.
type ClientConfig struct {
	// Name is a friendly name for this MCP server connection.
	Name string

	// For the stdio transport.
	Command string
	Args    []string
	Env     []string

	// For the HTTP transports.
	URL string
	// Streaming selects the streamable HTTP transport over SSE.
	Streaming bool
	// Timeout in seconds for HTTP requests; 0 uses the library default.
	Timeout int
}

// ValidateTransport checks that the selected transport is one of the
// supported literals.
func ValidateTransport(transport string) error {
	switch transport {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
		return nil
	default:
		return fmt.Errorf("unsupported transport %q (supported transports: %s, %s, %s)",
			transport, TransportStdio, TransportSSE, TransportStreamableHTTP)
	}
}

// EndpointURL constructs the server URL for an HTTP transport from host and
// port plus the transport's fixed path suffix.
func EndpointURL(transport, host string, port int) (string, error) {
	hostport := net.JoinHostPort(host, strconv.Itoa(port))
	switch transport {
	case TransportSSE:
		return "http://" + hostport + SSEPathSuffix, nil
	case TransportStreamableHTTP:
		return "http://" + hostport + StreamableHTTPPathSuffix, nil
	default:
		return "", fmt.Errorf("transport %q has no HTTP endpoint", transport)
	}
}
