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
	"reflect"
	"strings"
	"testing"

	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/pauldotyu/aks-agent/pkg/llm"
)

func TestConvertMCPInputSchema(t *testing.T) {
	tests := []struct {
		name    string
		input   mcp.ToolInputSchema
		want    *llm.Schema
		wantErr bool
	}{
		{
			name: "object with string and integer properties",
			input: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"cluster_name": map[string]any{
						"type":        "string",
						"description": "Name of the AKS cluster",
					},
					"node_count": map[string]any{
						"type": "integer",
					},
				},
				Required: []string{"cluster_name"},
			},
			want: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"cluster_name": {Type: llm.TypeString, Description: "Name of the AKS cluster"},
					"node_count":   {Type: llm.TypeInteger},
				},
				Required: []string{"cluster_name"},
			},
		},
		{
			name: "array property",
			input: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"namespaces": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
			want: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"namespaces": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}},
				},
			},
		},
		{
			name: "nested object property",
			input: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"filter": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"enabled": map[string]any{"type": "boolean"},
						},
						"required": []any{"enabled"},
					},
				},
			},
			want: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"filter": {
						Type: llm.TypeObject,
						Properties: map[string]*llm.Schema{
							"enabled": {Type: llm.TypeBoolean},
						},
						Required: []string{"enabled"},
					},
				},
			},
		},
		{
			name: "property without declared type falls back to object",
			input: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"anything": map[string]any{"description": "free-form"},
				},
			},
			want: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"anything": {Type: llm.TypeObject, Description: "free-form"},
				},
			},
		},
		{
			name:    "unsupported top-level type",
			input:   mcp.ToolInputSchema{Type: "number"},
			wantErr: true,
		},
		{
			name: "array without items",
			input: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"broken": map[string]any{"type": "array"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertMCPInputSchema(&tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("convertMCPInputSchema() expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertMCPInputSchema() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("convertMCPInputSchema() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConvertMCPToolsToTools(t *testing.T) {
	mcpTools := []mcp.Tool{
		{
			Name:        "az_aks_operations",
			Description: "List and analyze AKS clusters",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"operation": map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        "list_detectors",
			Description: "List available diagnostic detectors",
		},
	}

	tools, err := convertMCPToolsToTools(mcpTools)
	if err != nil {
		t.Fatalf("convertMCPToolsToTools() unexpected error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	if tools[0].Name != "az_aks_operations" {
		t.Errorf("unexpected tool name %q", tools[0].Name)
	}
	if tools[0].InputSchema == nil || tools[0].InputSchema.Type != llm.TypeObject {
		t.Errorf("expected object schema for %q, got %+v", tools[0].Name, tools[0].InputSchema)
	}
	if _, ok := tools[0].InputSchema.Properties["operation"]; !ok {
		t.Errorf("expected operation property, got %+v", tools[0].InputSchema.Properties)
	}

	// A tool without a declared schema still gets a callable object schema.
	if tools[1].InputSchema == nil || tools[1].InputSchema.Type != llm.TypeObject {
		t.Errorf("expected fallback object schema for %q, got %+v", tools[1].Name, tools[1].InputSchema)
	}
}

func TestProcessToolResponse(t *testing.T) {
	tests := []struct {
		name    string
		result  *mcp.CallToolResult
		want    string
		wantSub string
		wantErr bool
	}{
		{
			name: "text content",
			result: &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: "3 clusters found"},
				},
			},
			want: "3 clusters found",
		},
		{
			name: "error result becomes JSON payload",
			result: &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: "resource group not found"},
				},
			},
			wantSub: `"error": true`,
		},
		{
			name:   "no content",
			result: &mcp.CallToolResult{},
			want:   "Tool executed successfully, but no text content was returned",
		},
		{
			name:    "nil result",
			result:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := processToolResponse(tt.result)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("processToolResponse() expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("processToolResponse() unexpected error: %v", err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("processToolResponse() = %q, want %q", got, tt.want)
			}
			if tt.wantSub != "" && !strings.Contains(got, tt.wantSub) {
				t.Errorf("processToolResponse() = %q, want substring %q", got, tt.wantSub)
			}
		})
	}
}

func TestToolID(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		want string
	}{
		{name: "with server", tool: Tool{Name: "az_fleet", Server: "aks-mcp"}, want: "az_fleet@aks-mcp"},
		{name: "without server", tool: Tool{Name: "az_fleet"}, want: "az_fleet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tool.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientTransportSelection(t *testing.T) {
	tests := []struct {
		name   string
		config ClientConfig
		want   string
	}{
		{
			name:   "stdio",
			config: ClientConfig{Name: "aks-mcp", Command: "/usr/local/bin/aks-mcp"},
			want:   "*mcp.StdioClient",
		},
		{
			name:   "sse",
			config: ClientConfig{Name: "aks-mcp", URL: "http://localhost:8000/sse"},
			want:   "*mcp.SSEClient",
		},
		{
			name:   "streamable http",
			config: ClientConfig{Name: "aks-mcp", URL: "http://localhost:8000/mcp", Streaming: true},
			want:   "*mcp.StreamableHTTPClient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config)
			got := reflect.TypeOf(client.impl).String()
			if got != tt.want {
				t.Errorf("NewClient(%+v).impl = %s, want %s", tt.config, got, tt.want)
			}
		})
	}
}
