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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSnakeToCamel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "resource_group", want: "resourceGroup"},
		{input: "cluster_name", want: "clusterName"},
		{input: "simple", want: "simple"},
		{input: "a_b_c", want: "aBC"},
		{input: "trailing_", want: "trailing"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SnakeToCamel(tt.input)
			if got != tt.want {
				t.Errorf("SnakeToCamel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConvertArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want map[string]any
	}{
		{
			name: "snake case keys are converted",
			args: map[string]any{"resource_group": "rg-demo", "cluster_name": "aks-1"},
			want: map[string]any{"resourceGroup": "rg-demo", "clusterName": "aks-1"},
		},
		{
			name: "numeric strings are coerced for number params",
			args: map[string]any{"port": "8080", "max_count": "3"},
			want: map[string]any{"port": float64(8080), "maxCount": float64(3)},
		},
		{
			name: "boolean strings are coerced for bool params",
			args: map[string]any{"force": "true", "dry_run": "false"},
			want: map[string]any{"force": true, "dryRun": false},
		},
		{
			name: "non-string values pass through",
			args: map[string]any{"replicas": 3, "wait": true},
			want: map[string]any{"replicas": 3, "wait": true},
		},
		{
			name: "unparseable strings stay strings",
			args: map[string]any{"port": "many"},
			want: map[string]any{"port": "many"},
		},
		{
			name: "empty map",
			args: map[string]any{},
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ConvertArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestIsBenignShutdownError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: true},
		{name: "context canceled", err: context.Canceled, want: true},
		{name: "wrapped context canceled", err: fmt.Errorf("closing: %w", context.Canceled), want: true},
		{name: "cancel scope", err: errors.New("attempted to exit cancel scope in a different task"), want: true},
		{name: "session terminated", err: errors.New("Session terminated by server"), want: true},
		{name: "streamablehttp teardown", err: errors.New("error in streamablehttp transport shutdown"), want: true},
		{name: "generator exit", err: errors.New("GeneratorExit raised during close"), want: true},
		{name: "broken pipe", err: errors.New("write |1: broken pipe"), want: true},
		{name: "file already closed", err: errors.New("read |0: file already closed"), want: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "killed process", err: errors.New("signal: killed"), want: true},
		{name: "real failure", err: errors.New("tool execution failed: permission denied"), want: false},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsBenignShutdownError(tt.err)
			if got != tt.want {
				t.Errorf("IsBenignShutdownError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("getting home dir: %v", err)
	}
	t.Setenv("AKS_AGENT_TEST_DIR", "/opt/tools")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain path", input: "/usr/local/bin/aks-mcp", want: "/usr/local/bin/aks-mcp"},
		{name: "home prefix", input: "~/bin/aks-mcp", want: filepath.Join(home, "bin/aks-mcp")},
		{name: "env var", input: "$AKS_AGENT_TEST_DIR/aks-mcp", want: "/opt/tools/aks-mcp"},
		{name: "bare name", input: "aks-mcp", want: "aks-mcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
