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

package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pauldotyu/aks-agent/pkg/journal"
	"github.com/pauldotyu/aks-agent/pkg/ui"
)

type fakeInvoker struct {
	responses map[string]string
	failOn    string
	questions []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, question string, onText func(string)) (string, error) {
	f.questions = append(f.questions, question)
	if f.failOn != "" && strings.Contains(question, f.failOn) {
		return "", errors.New("model unavailable")
	}
	response := f.responses[question]
	if response == "" {
		response = "I inspected your clusters using the available tools."
	}
	// Stream in two fragments to exercise the accumulation path.
	half := len(response) / 2
	onText(response[:half])
	onText(response[half:])
	return response, nil
}

func TestDefaultScenarios(t *testing.T) {
	scenarios := Default()

	if len(scenarios) != 5 {
		t.Fatalf("expected 5 scenarios, got %d", len(scenarios))
	}

	wantNames := []string{
		"Cluster Discovery",
		"Diagnostic Detectors Discovery",
		"Kubernetes Workloads Analysis",
		"Fleet Management Check",
		"Advisory Recommendations Analysis",
	}
	for i, want := range wantNames {
		if scenarios[i].Name != want {
			t.Errorf("scenario %d name = %q, want %q", i+1, scenarios[i].Name, want)
		}
		if scenarios[i].Question == "" {
			t.Errorf("scenario %q has an empty question", scenarios[i].Name)
		}
		if scenarios[i].Expected == "" {
			t.Errorf("scenario %q has an empty expectation", scenarios[i].Name)
		}
	}
}

func TestRunnerRunsAllScenariosInOrder(t *testing.T) {
	var out bytes.Buffer
	console, err := ui.NewConsole(&out)
	if err != nil {
		t.Fatalf("creating console: %v", err)
	}

	invoker := &fakeInvoker{responses: map[string]string{}}
	runner := &Runner{
		Invoker:  invoker,
		Console:  console,
		Recorder: &journal.LogRecorder{},
		Pause:    time.Millisecond,
	}

	scenarios := Default()
	if err := runner.Run(context.Background(), scenarios); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(invoker.questions) != len(scenarios) {
		t.Fatalf("expected %d invocations, got %d", len(scenarios), len(invoker.questions))
	}
	for i, s := range scenarios {
		if invoker.questions[i] != s.Question {
			t.Errorf("invocation %d = %q, want %q", i+1, invoker.questions[i], s.Question)
		}
	}

	transcript := out.String()
	for i, s := range scenarios {
		banner := fmt.Sprintf("Scenario %d: %s", i+1, s.Name)
		if !strings.Contains(transcript, banner) {
			t.Errorf("transcript missing banner %q", banner)
		}
		completed := fmt.Sprintf("Scenario %d completed", i+1)
		if !strings.Contains(transcript, completed) {
			t.Errorf("transcript missing completion marker %q", completed)
		}
	}
	if !strings.Contains(transcript, "Response length:") {
		t.Errorf("transcript missing response length line:\n%s", transcript)
	}
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	var out bytes.Buffer
	console, err := ui.NewConsole(&out)
	if err != nil {
		t.Fatalf("creating console: %v", err)
	}

	scenarios := Default()
	invoker := &fakeInvoker{failOn: "detectors"}
	runner := &Runner{
		Invoker:  invoker,
		Console:  console,
		Recorder: &journal.LogRecorder{},
		Pause:    time.Millisecond,
	}

	err = runner.Run(context.Background(), scenarios)
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Diagnostic Detectors Discovery") {
		t.Errorf("error should name the failing scenario, got %v", err)
	}

	// The first scenario ran, the second failed, the rest never started.
	if len(invoker.questions) != 2 {
		t.Errorf("expected 2 invocations before aborting, got %d", len(invoker.questions))
	}
}

func TestRunnerHonorsContextCancellation(t *testing.T) {
	var out bytes.Buffer
	console, err := ui.NewConsole(&out)
	if err != nil {
		t.Fatalf("creating console: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{
		Invoker:  &fakeInvoker{},
		Console:  console,
		Recorder: &journal.LogRecorder{},
		Pause:    time.Hour, // Cancellation must win over the pause.
	}

	err = runner.Run(ctx, Default()[:2])
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
