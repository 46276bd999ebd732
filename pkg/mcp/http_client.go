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
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"k8s.io/klog/v2"
)

// StreamableHTTPClient is an MCP client that talks to a server over the
// streamable HTTP transport. The server must expose its endpoint at /mcp.
type StreamableHTTPClient struct {
	name    string
	url     string
	timeout time.Duration
	client  *mcpclient.Client
}

var _ MCPClient = &StreamableHTTPClient{}

// NewStreamableHTTPClient creates a new streamable-HTTP MCP client from the config.
func NewStreamableHTTPClient(config ClientConfig) *StreamableHTTPClient {
	timeout := DefaultConnectionTimeout
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &StreamableHTTPClient{
		name:    config.Name,
		url:     config.URL,
		timeout: timeout,
	}
}

// Name returns the name of this client.
func (c *StreamableHTTPClient) Name() string {
	return c.name
}

// Connect opens the HTTP session and performs the MCP handshake.
func (c *StreamableHTTPClient) Connect(ctx context.Context) error {
	if c.url == "" {
		return fmt.Errorf("no URL specified for streamable HTTP MCP server %q", c.name)
	}

	klog.V(2).InfoS("Connecting to streamable HTTP MCP server", "name", c.name, "url", c.url, "timeout", c.timeout)

	client, err := mcpclient.NewStreamableHttpClient(c.url, transport.WithHTTPTimeout(c.timeout))
	if err != nil {
		return fmt.Errorf("creating streamable HTTP client for %q: %w", c.name, err)
	}
	c.client = client

	if err := c.client.Start(ctx); err != nil {
		cleanupClient(&c.client)
		return fmt.Errorf("starting streamable HTTP client for %q: %w", c.name, err)
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

// Close terminates the HTTP session.
func (c *StreamableHTTPClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !IsBenignShutdownError(err) {
		return fmt.Errorf("closing streamable HTTP MCP client %q: %w", c.name, err)
	}
	return nil
}

// ListTools lists all available tools from the MCP server.
func (c *StreamableHTTPClient) ListTools(ctx context.Context) ([]Tool, error) {
	return listClientTools(ctx, c.client, c.name)
}

// CallTool calls a tool on the MCP server.
func (c *StreamableHTTPClient) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	return callClientTool(ctx, c.client, toolName, arguments)
}

func (c *StreamableHTTPClient) ensureConnected() error {
	return ensureClientConnected(c.client)
}

func (c *StreamableHTTPClient) getUnderlyingClient() *mcpclient.Client {
	return c.client
}
