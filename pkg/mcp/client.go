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
	mcp "github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/pauldotyu/aks-agent/pkg/llm"
)

// Client represents an MCP client that can connect to an MCP server.
// It delegates to a transport-specific implementation.
type Client struct {
	// Name is a friendly name for this MCP server connection.
	Name string
	// The actual client implementation (stdio, SSE or streamable HTTP).
	impl MCPClient
	// client is the underlying MCP library client.
	client *mcpclient.Client
}

// Tool represents an MCP tool with optional server information.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Server      string `json:"server,omitempty"`

	InputSchema *llm.Schema `json:"inputSchema,omitempty"`
}

// NewClient creates a new MCP client with the given configuration.
// The transport is chosen from the configuration: a URL selects an HTTP
// transport, otherwise the command is spawned over stdio.
func NewClient(config ClientConfig) *Client {
	var impl MCPClient
	switch {
	case config.URL != "" && config.Streaming:
		impl = NewStreamableHTTPClient(config)
	case config.URL != "":
		impl = NewSSEClient(config)
	default:
		impl = NewStdioClient(config)
	}

	return &Client{
		Name: config.Name,
		impl: impl,
	}
}

// Connect establishes a connection to the MCP server.
func (c *Client) Connect(ctx context.Context) error {
	klog.V(2).InfoS("Connecting to MCP server", "name", c.Name)

	if err := c.impl.Connect(ctx); err != nil {
		return err
	}

	c.client = c.impl.getUnderlyingClient()

	klog.V(2).InfoS("Successfully connected to MCP server", "name", c.Name)
	return nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	if c.impl == nil {
		return nil // Not initialized
	}

	klog.V(2).InfoS("Closing connection to MCP server", "name", c.Name)

	err := c.impl.Close()
	c.client = nil

	if err != nil {
		return fmt.Errorf("closing MCP client: %w", err)
	}

	return nil
}

// ListTools lists all available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	tools, err := c.impl.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	klog.V(2).InfoS("Listed tools from MCP server", "count", len(tools), "server", c.Name)
	return tools, nil
}

// CallTool calls a tool on the MCP server and returns the result as a string.
// The arguments are a map of parameter names to values passed to the tool.
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	klog.V(2).InfoS("Calling MCP tool", "server", c.Name, "tool", toolName, "args", arguments)

	if err := c.ensureConnected(); err != nil {
		return "", err
	}

	return c.impl.CallTool(ctx, toolName, arguments)
}

func (c *Client) ensureConnected() error {
	if c.client == nil {
		return fmt.Errorf("not connected to MCP server")
	}
	return nil
}

// ID returns a unique identifier for the tool.
func (t Tool) ID() string {
	if t.Server != "" {
		return fmt.Sprintf("%s@%s", t.Name, t.Server)
	}
	return t.Name
}

// String returns a human-readable representation of the tool.
func (t Tool) String() string {
	if t.Server != "" {
		return fmt.Sprintf("%s (from %s)", t.Name, t.Server)
	}
	return t.Name
}

// convertMCPToolsToTools converts MCP library tools to our Tool type.
func convertMCPToolsToTools(mcpTools []mcp.Tool) ([]Tool, error) {
	tools := make([]Tool, 0, len(mcpTools))
	for _, mcpTool := range mcpTools {
		tool := Tool{
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
		}

		if mcpTool.InputSchema.Type != "" {
			schema, err := convertMCPInputSchema(&mcpTool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("converting input schema for tool %q: %w", mcpTool.Name, err)
			}
			tool.InputSchema = schema
		} else {
			// Tools without a declared schema accept an open object.
			tool.InputSchema = &llm.Schema{Type: llm.TypeObject}
		}

		tools = append(tools, tool)
	}
	return tools, nil
}

func convertMCPInputSchema(mcpInputSchema *mcp.ToolInputSchema) (*llm.Schema, error) {
	schema := &llm.Schema{}
	switch mcpInputSchema.Type {
	case "string":
		schema.Type = llm.TypeString
	case "boolean":
		schema.Type = llm.TypeBoolean
	case "object":
		schema.Type = llm.TypeObject
	default:
		return nil, fmt.Errorf("unexpected MCP input schema type: %s", mcpInputSchema.Type)
	}
	if mcpInputSchema.Properties != nil {
		schema.Properties = make(map[string]*llm.Schema)
		for key, value := range mcpInputSchema.Properties {
			valueMap, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("unexpected input schema type for %q: %T %+v", key, value, value)
			}
			valueSchema, err := convertMCPMapSchema(key, valueMap)
			if err != nil {
				return nil, fmt.Errorf("converting property %q: %w", key, err)
			}
			schema.Properties[key] = valueSchema
		}
	}
	schema.Required = mcpInputSchema.Required
	return schema, nil
}

func convertMCPMapSchema(key string, schemaMap map[string]any) (*llm.Schema, error) {
	schema := &llm.Schema{}

	if descriptionObj, ok := schemaMap["description"]; ok {
		description, ok := descriptionObj.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected description for key %q: %+v", key, schemaMap)
		}
		schema.Description = description
	}

	mcpType, ok := schemaMap["type"].(string)
	if !ok {
		// Fallback: treat any unrecognized schema as a generic object.
		klog.V(2).InfoS("Unrecognized schema format, treating as object", "key", key)
		schema.Type = llm.TypeObject
		return schema, nil
	}
	switch mcpType {
	case "string":
		schema.Type = llm.TypeString
	case "number":
		schema.Type = llm.TypeNumber
	case "integer":
		schema.Type = llm.TypeInteger
	case "boolean":
		schema.Type = llm.TypeBoolean
	case "array":
		items, ok := schemaMap["items"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("did not find items for array: key %q: %+v", key, schemaMap)
		}
		itemsSchema, err := convertMCPMapSchema(key+".items", items)
		if err != nil {
			return nil, fmt.Errorf("converting array items for %q: %w", key, err)
		}
		schema.Type = llm.TypeArray
		schema.Items = itemsSchema

	case "object":
		schema.Type = llm.TypeObject
		if properties, ok := schemaMap["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*llm.Schema)
			for propKey, propValue := range properties {
				propMap, ok := propValue.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("unexpected property schema for %q: %T", propKey, propValue)
				}
				propertySchema, err := convertMCPMapSchema(propKey, propMap)
				if err != nil {
					return nil, fmt.Errorf("converting property %q: %w", propKey, err)
				}
				schema.Properties[propKey] = propertySchema
			}
		}
	default:
		return nil, fmt.Errorf("unexpected input schema type %q for key %q: %+v", mcpType, key, schemaMap)
	}

	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}

	return schema, nil
}

// ensureClientConnected checks if the underlying library client exists.
func ensureClientConnected(client *mcpclient.Client) error {
	if client == nil {
		return fmt.Errorf("client not connected")
	}
	return nil
}

// initializeClientConnection performs the MCP initialize handshake.
func initializeClientConnection(ctx context.Context, client *mcpclient.Client) error {
	initCtx, cancel := context.WithTimeout(ctx, DefaultConnectionTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    ClientName,
				Version: ClientVersion,
			},
		},
	}

	if _, err := client.Initialize(initCtx, initReq); err != nil {
		return fmt.Errorf("initializing MCP client: %w", err)
	}

	return nil
}

// verifyClientConnection verifies the connection works by listing tools.
func verifyClientConnection(ctx context.Context, client *mcpclient.Client) error {
	verifyCtx, cancel := context.WithTimeout(ctx, DefaultVerificationTimeout)
	defer cancel()

	if _, err := client.ListTools(verifyCtx, mcp.ListToolsRequest{}); err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	return nil
}

// cleanupClient closes the client connection safely.
func cleanupClient(client **mcpclient.Client) {
	if *client != nil {
		_ = (*client).Close() // Ignore errors on cleanup
		*client = nil
	}
}

// processToolResponse extracts the text result from a tool call response.
// Error responses from the tool are surfaced as JSON error payloads rather
// than Go errors so the model can react to them.
func processToolResponse(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil tool response")
	}

	if result.IsError {
		errorMsg := fmt.Sprintf("%+v", result)
		if len(result.Content) > 0 {
			if textContent, ok := mcp.AsTextContent(result.Content[0]); ok {
				errorMsg = textContent.Text
			}
		}
		return fmt.Sprintf(`{"error": true, "message": %q, "status": "failed"}`, errorMsg), nil
	}

	if len(result.Content) > 0 {
		if textContent, ok := mcp.AsTextContent(result.Content[0]); ok {
			return textContent.Text, nil
		}
	}

	return "Tool executed successfully, but no text content was returned", nil
}

// listClientTools implements the ListTools functionality shared by all client types.
func listClientTools(ctx context.Context, client *mcpclient.Client, serverName string) ([]Tool, error) {
	if err := ensureClientConnected(client); err != nil {
		return nil, err
	}

	result, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	tools, err := convertMCPToolsToTools(result.Tools)
	if err != nil {
		return nil, fmt.Errorf("parsing tools from MCP server: %w", err)
	}

	for i := range tools {
		tools[i].Server = serverName
	}

	return tools, nil
}

// callClientTool implements the CallTool functionality shared by all client types.
func callClientTool(ctx context.Context, client *mcpclient.Client, toolName string, arguments map[string]any) (string, error) {
	if err := ensureClientConnected(client); err != nil {
		return "", err
	}

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}

	result, err := client.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("calling tool %q: %w", toolName, err)
	}

	return processToolResponse(result)
}
