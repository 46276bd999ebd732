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

import "time"

// Transport literals accepted on the command line. They match the transport
// names the aks-mcp server itself accepts.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// Fixed path suffixes the server mounts its HTTP transports on.
const (
	SSEPathSuffix            = "/sse"
	StreamableHTTPPathSuffix = "/mcp"
)

// Timeout constants for MCP operations.
const (
	// DefaultConnectionTimeout is the timeout for establishing connections to the MCP server.
	DefaultConnectionTimeout = 30 * time.Second

	// DefaultVerificationTimeout is the timeout for verifying the server connection.
	DefaultVerificationTimeout = 10 * time.Second
)

// Client identification sent during the MCP handshake.
const (
	ClientName    = "aks-agent-mcp-client"
	ClientVersion = "1.0.0"
)
