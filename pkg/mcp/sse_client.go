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

package mcp

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"k8s.io/klog/v2"
)

// SSEClient is an MCP client that talks to a server over the SSE transport.
// The server must expose its SSE endpoint at /sse.
type SSEClient struct {
	name   string
	url    string
	client *mcpclient.Client
}

var _ MCPClient = &SSEClient{}

// NewSSEClient creates a new SSE-based MCP client from the config.
func NewSSEClient(config ClientConfig) *SSEClient {
	return &SSEClient{
		name: config.Name,
		url:  config.URL,
	}
}

// Name returns the name of this client.
func (c *SSEClient) Name() string {
	return c.name
}

// Connect opens the SSE stream and performs the MCP handshake.
func (c *SSEClient) Connect(ctx context.Context) error {
	if c.url == "" {
		return fmt.Errorf("no URL specified for SSE MCP server %q", c.name)
	}

	klog.V(2).InfoS("Connecting to SSE MCP server", "name", c.name, "url", c.url)

	client, err := mcpclient.NewSSEMCPClient(c.url)
	if err != nil {
		return fmt.Errorf("creating SSE client for %q: %w", c.name, err)
	}
	c.client = client

	// The SSE transport needs an explicit start to open the event stream
	// before the initialize request can be sent.
	if err := c.client.Start(ctx); err != nil {
		cleanupClient(&c.client)
		return fmt.Errorf("starting SSE client for %q: %w", c.name, err)
	}

	if err := initializeClientConnection(ctx, c.client); err != nil {
		cleanupClient(&c.client)
		return fmt.Errorf("initializing connection to %q: %w", c.name, err)
	}

	if err := verifyClientConnection(ctx, c.client); err != nil {
		cleanupClient(&c.client)
		return fmt.Errorf("verifying connection to %q: %w", c.name, err)
	}

	return nil
}

// Close closes the SSE stream.
func (c *SSEClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !IsBenignShutdownError(err) {
		return fmt.Errorf("closing SSE MCP client %q: %w", c.name, err)
	}
	return nil
}

// ListTools lists all available tools from the MCP server.
func (c *SSEClient) ListTools(ctx context.Context) ([]Tool, error) {
	return listClientTools(ctx, c.client, c.name)
}

// CallTool calls a tool on the MCP server.
func (c *SSEClient) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	return callClientTool(ctx, c.client, toolName, arguments)
}

func (c *SSEClient) ensureConnected() error {
	return ensureClientConnected(c.client)
}

func (c *SSEClient) getUnderlyingClient() *mcpclient.Client {
	return c.client
}
