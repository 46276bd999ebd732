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
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// expandPath expands ~ and environment variables in a command path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// benignShutdownSubstrings are error fragments seen during normal teardown
// of MCP transports. Errors matching one of these are suppressed at cleanup.
var benignShutdownSubstrings = []string{
	"cancel scope",
	"session terminated",
	"streamablehttp",
	"generatorexit",
	"context canceled",
	"file already closed",
	"broken pipe",
	"connection reset by peer",
	"use of closed network connection",
	"signal: killed",
}

// IsBenignShutdownError reports whether err is a known-harmless error that
// MCP transports raise while tearing down a session. A nil error is benign.
func IsBenignShutdownError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range benignShutdownSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ConvertArgs normalizes tool arguments produced by the model: parameter
// names are converted from snake_case to camelCase and string values are
// coerced to the numeric or boolean types the well-known parameters expect.
func ConvertArgs(args map[string]any) map[string]any {
	converted := make(map[string]any, len(args))
	for key, value := range args {
		camelKey := SnakeToCamel(key)
		converted[camelKey] = ConvertValue(camelKey, value)
	}
	return converted
}

// SnakeToCamel converts a snake_case string to camelCase.
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// ConvertValue coerces string values to the type the parameter expects.
func ConvertValue(key string, value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	switch {
	case IsNumberParam(key):
		if n, err := strconv.ParseFloat(str, 64); err == nil {
			return n
		}
	case IsBoolParam(key):
		if b, err := strconv.ParseBool(str); err == nil {
			return b
		}
	}
	return value
}

// IsNumberParam reports whether the parameter conventionally holds a number.
func IsNumberParam(key string) bool {
	lower := strings.ToLower(key)
	for _, suffix := range []string{"count", "limit", "port", "size", "timeout", "replicas"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// IsBoolParam reports whether the parameter conventionally holds a boolean.
func IsBoolParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range []string{"is", "has", "enable", "disable", "force", "dry"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return lower == "wait" || lower == "follow" || lower == "watch"
}
