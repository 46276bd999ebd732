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

package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sigs.k8s.io/yaml"
)

func TestFileRecorderWritesYAMLEventStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")

	recorder, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder() unexpected error: %v", err)
	}

	ctx := context.Background()
	events := []*Event{
		{Action: ActionSessionStart, Payload: map[string]any{"transport": "stdio"}},
		{Action: ActionScenarioStart, Payload: map[string]string{"name": "Cluster Discovery"}},
		{Action: ActionSessionEnd},
	}
	for _, event := range events {
		if err := recorder.Write(ctx, event); err != nil {
			t.Fatalf("Write(%s) unexpected error: %v", event.Action, err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading trace file: %v", err)
	}

	docs := strings.Split(string(data), "\n---\n")
	var parsed []Event
	for _, doc := range docs {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		var event Event
		if err := yaml.Unmarshal([]byte(doc), &event); err != nil {
			t.Fatalf("parsing event document %q: %v", doc, err)
		}
		parsed = append(parsed, event)
	}

	if len(parsed) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(parsed))
	}
	for i, want := range events {
		if parsed[i].Action != want.Action {
			t.Errorf("event %d action = %q, want %q", i, parsed[i].Action, want.Action)
		}
		if parsed[i].Timestamp.IsZero() {
			t.Errorf("event %d missing timestamp", i)
		}
		if parsed[i].RunID == "" {
			t.Errorf("event %d missing run ID", i)
		}
	}

	// All events in one recorder share the same run ID.
	if parsed[0].RunID != parsed[2].RunID {
		t.Errorf("run IDs differ within one run: %q vs %q", parsed[0].RunID, parsed[2].RunID)
	}
}

func TestLogRecorderIsANoOp(t *testing.T) {
	recorder := &LogRecorder{}
	if err := recorder.Write(context.Background(), &Event{Action: ActionToolCall}); err != nil {
		t.Errorf("Write() unexpected error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Errorf("Close() unexpected error: %v", err)
	}
}
