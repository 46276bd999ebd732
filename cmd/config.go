// Copyright 2025 The aks-agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pauldotyu/aks-agent/pkg/llm"
)

// Environment variables read from the dotenv file (or the process
// environment when already set).
const (
	envEndpoint   = "AZURE_OPENAI_ENDPOINT"
	envAPIKey     = "AZURE_OPENAI_API_KEY"
	envDeployment = "AZURE_OPENAI_DEPLOYMENT_NAME"
	envAPIVersion = "AZURE_OPENAI_API_VERSION"

	defaultDeployment = "gpt-4o"
	defaultAPIVersion = "2024-08-01-preview"
)

// LoadEnvConfig loads the Azure OpenAI connection settings from the given
// dotenv file. Variables already present in the process environment take
// precedence over the file.
func LoadEnvConfig(envFile string) (llm.Config, error) {
	if _, err := os.Stat(envFile); err != nil {
		return llm.Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}
	if err := godotenv.Load(envFile); err != nil {
		return llm.Config{}, fmt.Errorf("parsing %s: %w", envFile, err)
	}

	cfg := llm.Config{
		Endpoint:   os.Getenv(envEndpoint),
		APIKey:     os.Getenv(envAPIKey),
		Deployment: getEnvDefault(envDeployment, defaultDeployment),
		APIVersion: getEnvDefault(envAPIVersion, defaultAPIVersion),
	}

	if cfg.Endpoint == "" {
		return llm.Config{}, fmt.Errorf("%s is not set in %s", envEndpoint, envFile)
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
