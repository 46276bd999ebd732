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

// Package journal records a structured trace of agent runs: every scenario,
// model exchange and tool call is written as a YAML event stream.
package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// Well-known event actions.
const (
	ActionSessionStart  = "session-start"
	ActionSessionEnd    = "session-end"
	ActionScenarioStart = "scenario-start"
	ActionScenarioEnd   = "scenario-end"
	ActionModelRequest  = "model-request"
	ActionModelResponse = "model-response"
	ActionToolCall      = "tool-call"
	ActionToolResult    = "tool-result"
)

// Event is one entry in the trace.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"runID,omitempty"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
}

// Recorder is an interface for recording a structured log of the agent's
// actions and observations.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder writes the trace to a file as a stream of YAML documents.
type FileRecorder struct {
	f     *os.File
	runID string
}

// NewFileRecorder creates a new FileRecorder that writes to the given file.
// Each recorder gets a fresh run ID stamped on every event.
func NewFileRecorder(path string) (*FileRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &FileRecorder{
		f:     file,
		runID: uuid.NewString(),
	}, nil
}

// Close closes the file.
func (r *FileRecorder) Close() error {
	return r.f.Close()
}

func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = r.runID
	}
	yamlBytes, err := yaml.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	var b bytes.Buffer
	b.Write(yamlBytes)
	b.Write([]byte("\n\n---\n\n"))
	_, err = r.f.Write(b.Bytes())
	return err
}
