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

// Package scenario defines the fixed demonstration scenarios the agent runs
// against the aks-mcp server and the runner that executes them in order.
package scenario

// Scenario is one demonstration exchange: a natural-language question plus a
// note on which tools a correct answer is expected to exercise.
type Scenario struct {
	Name     string
	Question string
	Expected string
}

// Default returns the five demonstration scenarios, in the order they run.
func Default() []Scenario {
	return []Scenario{
		{
			Name:     "Cluster Discovery",
			Question: "What AKS clusters do I have? Please provide a comprehensive overview including health status.",
			Expected: "Should use az_aks_operations to list all clusters",
		},
		{
			Name:     "Diagnostic Detectors Discovery",
			Question: "Discover what diagnostic detectors are available for my AKS clusters. Use the tools to find my clusters first, then list the detectors.",
			Expected: "Should use az_aks_operations then list_detectors",
		},
		{
			Name:     "Kubernetes Workloads Analysis",
			Question: "Analyze the Kubernetes workloads running in my clusters. Discover my clusters first, then check what pods, services, and deployments are running.",
			Expected: "Should use az_aks_operations then kubectl commands",
		},
		{
			Name:     "Fleet Management Check",
			Question: "Check my Azure Kubernetes Fleet configuration and resources using the available tools.",
			Expected: "Should use az_fleet functionality",
		},
		{
			Name:     "Advisory Recommendations Analysis",
			Question: "Find Azure Advisor recommendations for my environment. Use the tools to discover my current subscription and resource details first.",
			Expected: "Should use az_aks_operations then az_advisor_recommendation",
		},
	}
}
