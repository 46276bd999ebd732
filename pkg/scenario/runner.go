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
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/pauldotyu/aks-agent/pkg/journal"
	"github.com/pauldotyu/aks-agent/pkg/ui"
)

// Invoker answers one scenario question. The implementation streams partial
// output through onText as it arrives and returns the full response text.
type Invoker interface {
	Invoke(ctx context.Context, question string, onText func(string)) (string, error)
}

// PauseBetween is the pause inserted between consecutive scenarios so the
// transcript stays readable and the server gets a moment to settle.
const PauseBetween = 1 * time.Second

// Runner executes scenarios sequentially against an Invoker.
type Runner struct {
	Invoker  Invoker
	Console  *ui.Console
	Recorder journal.Recorder

	// Pause overrides PauseBetween when non-zero.
	Pause time.Duration
}

// Run executes all scenarios in order. The first scenario failure aborts the
// run and is returned; earlier completed scenarios are unaffected.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) error {
	pause := r.Pause
	if pause == 0 {
		pause = PauseBetween
	}

	for i, s := range scenarios {
		n := i + 1

		r.Console.Banner(fmt.Sprintf("Scenario %d: %s", n, s.Name))
		r.Console.Infof("Question: %s", s.Question)
		r.Console.Infof("Expected: %s", s.Expected)
		r.Console.Infof("\nAgent thinking and using tools...\n")

		if err := r.Recorder.Write(ctx, &journal.Event{
			Action:  journal.ActionScenarioStart,
			Payload: map[string]string{"name": s.Name, "question": s.Question},
		}); err != nil {
			klog.Warningf("Failed to record scenario start: %v", err)
		}

		response, err := r.Invoker.Invoke(ctx, s.Question, r.Console.StreamText)
		text := r.Console.EndStream()
		if text == "" {
			text = response
		}
		if err != nil {
			return fmt.Errorf("scenario %d (%s): %w", n, s.Name, err)
		}

		if err := r.Recorder.Write(ctx, &journal.Event{
			Action:  journal.ActionScenarioEnd,
			Payload: map[string]any{"name": s.Name, "responseLength": len(text)},
		}); err != nil {
			klog.Warningf("Failed to record scenario end: %v", err)
		}

		r.Console.Successf("\nScenario %d completed", n)
		r.Console.Infof("Response length: %d characters", len(text))

		if i < len(scenarios)-1 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
