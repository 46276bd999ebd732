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

// StdioClient is an MCP client that spawns the server as a local process
// and speaks the protocol over its stdin/stdout.
type StdioClient struct {
	name    string
	command string
	args    []string
	env     []string
	client  *mcpclient.Client
}

var _ MCPClient = &StdioClient{}

// NewStdioClient creates a new stdio-based MCP client from the config.
func NewStdioClient(config ClientConfig) *StdioClient {
	return &StdioClient{
		name:    config.Name,
		command: config.Command,
		args:    config.Args,
		env:     config.Env,
	}
}

// Name returns the name of this client.
func (c *StdioClient) Name() string {
	return c.name
}

// Connect starts the server process and performs the MCP handshake.
func (c *StdioClient) Connect(ctx context.Context) error {
	if c.command == "" {
		return fmt.Errorf("no command specified for stdio MCP server %q", c.name)
	}

	command := expandPath(c.command)
	klog.V(2).InfoS("Starting stdio MCP server", "name", c.name, "command", command, "args", c.args)

	client, err := mcpclient.NewStdioMCPClient(command, c.env, c.args...)
	if err != nil {
		return fmt.Errorf("starting MCP server %q: %w", c.name, err)
	}
	c.client = client

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

// Close terminates the server process.
func (c *StdioClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !IsBenignShutdownError(err) {
		return fmt.Errorf("closing stdio MCP client %q: %w", c.name, err)
	}
	return nil
}

// ListTools lists all available tools from the MCP server.
func (c *StdioClient) ListTools(ctx context.Context) ([]Tool, error) {
	return listClientTools(ctx, c.client, c.name)
}

// CallTool calls a tool on the MCP server.
func (c *StdioClient) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	return callClientTool(ctx, c.client, toolName, arguments)
}

func (c *StdioClient) ensureConnected() error {
	return ensureClientConnected(c.client)
}

func (c *StdioClient) getUnderlyingClient() *mcpclient.Client {
	return c.client
}
