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

// Package agent runs a function-calling conversation between an Azure OpenAI
// deployment and the tools discovered from an MCP server.
package agent

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"k8s.io/klog/v2"

	"github.com/pauldotyu/aks-agent/pkg/journal"
	"github.com/pauldotyu/aks-agent/pkg/llm"
	"github.com/pauldotyu/aks-agent/pkg/mcp"
)

//go:embed systemprompt_template_default.txt
var defaultSystemPromptTemplate string

// ToolCaller executes a named tool with the given arguments.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error)
}

// Conversation drives a multi-turn exchange with the model, dispatching the
// model's tool calls to the MCP server until the model answers in text.
type Conversation struct {
	LLM llm.Client

	// PromptTemplateFile allows specifying a custom system prompt template.
	PromptTemplateFile string
	Model              string

	MaxIterations int

	// Tools are the MCP tools registered as callable functions.
	Tools []mcp.Tool
	// MCP executes the tool calls the model requests.
	MCP ToolCaller

	// Recorder captures events for diagnostics
	Recorder journal.Recorder

	llmChat llm.Chat
}

// Init starts the chat session and registers the tool definitions.
func (c *Conversation) Init(ctx context.Context) error {
	systemPrompt, err := c.generatePrompt(defaultSystemPromptTemplate, PromptData{Tools: c.Tools})
	if err != nil {
		return fmt.Errorf("generating system prompt: %w", err)
	}

	c.llmChat = llm.NewRetryChat(
		c.LLM.StartChat(systemPrompt, c.Model),
		llm.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 10 * time.Second,
			MaxBackoff:     60 * time.Second,
			BackoffFactor:  2,
			Jitter:         true,
		},
	)

	var functionDefinitions []*llm.FunctionDefinition
	for _, tool := range c.Tools {
		functionDefinitions = append(functionDefinitions, &llm.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		})
	}
	// Sort function definitions to help KV cache reuse
	sort.Slice(functionDefinitions, func(i, j int) bool {
		return functionDefinitions[i].Name < functionDefinitions[j].Name
	})
	if err := c.llmChat.SetFunctionDefinitions(functionDefinitions); err != nil {
		return fmt.Errorf("setting function definitions: %w", err)
	}

	return nil
}

func (c *Conversation) Close() error {
	return nil
}

// Invoke runs the agentic loop for one question. Partial text is streamed
// through onText as it arrives; the accumulated response is returned.
func (c *Conversation) Invoke(ctx context.Context, query string, onText func(string)) (string, error) {
	log := klog.FromContext(ctx)
	log.V(1).Info("Starting chat loop for query", "query", query)

	if c.llmChat == nil {
		return "", fmt.Errorf("conversation not initialized")
	}

	var responseText strings.Builder

	// currChatContent tracks chat content that needs to be sent
	// to the LLM in each iteration of the agentic loop below
	currChatContent := []any{query}

	maxIterations := c.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 20
	}

	for currentIteration := 0; currentIteration < maxIterations; currentIteration++ {
		log.V(2).Info("Starting iteration", "iteration", currentIteration)

		if err := c.Recorder.Write(ctx, &journal.Event{
			Action:  journal.ActionModelRequest,
			Payload: currChatContent,
		}); err != nil {
			klog.Warningf("Failed to record model request: %v", err)
		}

		stream, err := c.llmChat.SendStreaming(ctx, currChatContent...)
		if err != nil {
			return responseText.String(), err
		}

		// Clear our "response" now that we sent the last response
		currChatContent = nil

		var functionCalls []llm.FunctionCall

		for response, err := range stream {
			if err != nil {
				return responseText.String(), fmt.Errorf("reading streaming LLM response: %w", err)
			}
			if response == nil {
				break
			}

			if err := c.Recorder.Write(ctx, &journal.Event{
				Action:  journal.ActionModelResponse,
				Payload: fmt.Sprintf("%v", response),
			}); err != nil {
				klog.Warningf("Failed to record model response: %v", err)
			}

			if len(response.Candidates()) == 0 {
				return responseText.String(), fmt.Errorf("no candidates in LLM response")
			}

			candidate := response.Candidates()[0]

			for _, part := range candidate.Parts() {
				if text, ok := part.AsText(); ok {
					responseText.WriteString(text)
					if onText != nil {
						onText(text)
					}
				}

				if calls, ok := part.AsFunctionCalls(); ok && len(calls) > 0 {
					log.V(1).Info("function calls", "calls", calls)
					functionCalls = append(functionCalls, calls...)
				}
			}
		}

		// If no function calls were made, the model has answered and we're done.
		if len(functionCalls) == 0 {
			return responseText.String(), nil
		}

		for _, call := range functionCalls {
			result, err := c.dispatchToolCall(ctx, call)
			if err != nil {
				return responseText.String(), err
			}
			currChatContent = append(currChatContent, result)
		}
	}

	return responseText.String(), fmt.Errorf("max iterations (%d) reached without a final answer", maxIterations)
}

// dispatchToolCall executes one tool call against the MCP server. Tool
// failures are folded into the result so the model can recover; only
// transport-level errors abort the round.
func (c *Conversation) dispatchToolCall(ctx context.Context, call llm.FunctionCall) (llm.FunctionCallResult, error) {
	arguments := mcp.ConvertArgs(call.Arguments)

	if err := c.Recorder.Write(ctx, &journal.Event{
		Action:  journal.ActionToolCall,
		Payload: map[string]any{"name": call.Name, "arguments": arguments},
	}); err != nil {
		klog.Warningf("Failed to record tool call: %v", err)
	}

	output, err := c.MCP.CallTool(ctx, call.Name, arguments)
	if err != nil {
		if ctx.Err() != nil {
			return llm.FunctionCallResult{}, ctx.Err()
		}
		klog.V(1).InfoS("Tool call failed", "tool", call.Name, "error", err)
		output = fmt.Sprintf("Error calling %q: %v", call.Name, err)
	}

	if err := c.Recorder.Write(ctx, &journal.Event{
		Action:  journal.ActionToolResult,
		Payload: map[string]any{"name": call.Name, "output": output},
	}); err != nil {
		klog.Warningf("Failed to record tool result: %v", err)
	}

	return llm.FunctionCallResult{
		ID:     call.ID,
		Name:   call.Name,
		Result: map[string]any{"output": output},
	}, nil
}

// generatePrompt renders the system prompt from the default template or the
// file configured in PromptTemplateFile.
func (c *Conversation) generatePrompt(defaultPromptTemplate string, data PromptData) (string, error) {
	promptTemplate := defaultPromptTemplate
	if c.PromptTemplateFile != "" {
		content, err := readPromptFile(c.PromptTemplateFile)
		if err != nil {
			return "", err
		}
		promptTemplate = content
	}

	tmpl, err := template.New("promptTemplate").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("building template for prompt: %w", err)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, &data); err != nil {
		return "", fmt.Errorf("evaluating template for prompt: %w", err)
	}
	return result.String(), nil
}

// PromptData represents the structure of the data to be filled into the template.
type PromptData struct {
	Tools []mcp.Tool
}

func (d *PromptData) ToolNames() string {
	names := make([]string, 0, len(d.Tools))
	for _, tool := range d.Tools {
		names = append(names, tool.Name)
	}
	return strings.Join(names, ", ")
}
