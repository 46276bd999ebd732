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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"k8s.io/klog/v2"
)

// Config carries the Azure OpenAI connection settings.
// Values are read once at startup and never mutated.
type Config struct {
	// Endpoint is the Azure OpenAI resource endpoint, e.g. https://myresource.openai.azure.com.
	Endpoint string
	// APIKey authenticates requests. When empty, DefaultAzureCredential is used instead.
	APIKey string
	// Deployment is the model deployment name, e.g. gpt-4o.
	Deployment string
	// APIVersion overrides the service API version on each request when set.
	APIVersion string
}

// AzureOpenAIClient is an llm.Client backed by an Azure OpenAI deployment.
type AzureOpenAIClient struct {
	client     *azopenai.Client
	endpoint   string
	deployment string
}

var _ Client = &AzureOpenAIClient{}

// NewAzureOpenAIClient creates a new Azure OpenAI client from the given configuration.
// An API key is preferred when present; otherwise the default Azure credential chain is used.
func NewAzureOpenAIClient(ctx context.Context, cfg Config) (*AzureOpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("Azure OpenAI endpoint is not configured")
	}

	clientOpts := &azopenai.ClientOptions{}
	if cfg.APIVersion != "" {
		clientOpts.ClientOptions = azcore.ClientOptions{
			PerCallPolicies: []policy.Policy{apiVersionPolicy{version: cfg.APIVersion}},
		}
	}

	c := &AzureOpenAIClient{
		endpoint:   cfg.Endpoint,
		deployment: cfg.Deployment,
	}

	if cfg.APIKey != "" {
		keyCredential := azcore.NewKeyCredential(cfg.APIKey)
		client, err := azopenai.NewClientWithKeyCredential(cfg.Endpoint, keyCredential, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("creating azure openai client: %w", err)
		}
		c.client = client
		return c, nil
	}

	klog.V(1).InfoS("No API key configured, using default Azure credential", "endpoint", cfg.Endpoint)
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("getting azure credential: %w", err)
	}
	client, err := azopenai.NewClient(cfg.Endpoint, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("creating azure openai client: %w", err)
	}
	c.client = client
	return c, nil
}

// apiVersionPolicy pins the api-version query parameter on every request.
type apiVersionPolicy struct {
	version string
}

func (p apiVersionPolicy) Do(req *policy.Request) (*http.Response, error) {
	raw := req.Raw()
	q := raw.URL.Query()
	q.Set("api-version", p.version)
	raw.URL.RawQuery = q.Encode()
	return req.Next()
}

func (c *AzureOpenAIClient) Close() error {
	return nil
}

// StartChat starts a new chat session bound to the configured deployment.
// An explicit model overrides the deployment from the configuration.
func (c *AzureOpenAIClient) StartChat(systemPrompt, model string) Chat {
	if model == "" {
		model = c.deployment
	}
	return &AzureOpenAIChat{
		client: c.client,
		model:  model,
		history: []azopenai.ChatRequestMessageClassification{
			&azopenai.ChatRequestSystemMessage{Content: azopenai.NewChatRequestSystemMessageContent(systemPrompt)},
		},
	}
}

// AzureOpenAIChat holds the history of one conversation with the deployment.
type AzureOpenAIChat struct {
	client  *azopenai.Client
	model   string
	history []azopenai.ChatRequestMessageClassification
	tools   []azopenai.ChatCompletionsToolDefinitionClassification
}

func (c *AzureOpenAIChat) Send(ctx context.Context, contents ...any) (ChatResponse, error) {
	for _, content := range contents {
		switch v := content.(type) {
		case string:
			message := azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(v),
			}
			c.history = append(c.history, &message)
		case FunctionCallResult:
			encoded, err := json.Marshal(v.Result)
			if err != nil {
				return nil, fmt.Errorf("encoding function call result for %q: %w", v.Name, err)
			}
			message := azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(
					fmt.Sprintf("Result of calling %q: %s", v.Name, encoded)),
			}
			c.history = append(c.history, &message)
		default:
			return nil, fmt.Errorf("unsupported content type: %T", v)
		}
	}

	resp, err := c.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		DeploymentName: &c.model,
		Messages:       c.history,
		Tools:          c.tools,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Azure OpenAI: %v", resp)
	}

	return &AzureOpenAIChatResponse{azureOpenAIResponse: resp}, nil
}

// SendStreaming sends the contents and returns the response as an iterator.
// TODO: use GetChatCompletionsStream once tool-call deltas are reassembled across chunks.
func (c *AzureOpenAIChat) SendStreaming(ctx context.Context, contents ...any) (ChatResponseIterator, error) {
	response, err := c.Send(ctx, contents...)
	if err != nil {
		return nil, err
	}
	return singletonChatResponseIterator(response), nil
}

func (c *AzureOpenAIChat) IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

func (c *AzureOpenAIChat) SetFunctionDefinitions(functionDefinitions []*FunctionDefinition) error {
	var tools []azopenai.ChatCompletionsToolDefinitionClassification
	for _, functionDefinition := range functionDefinitions {
		fn, err := fnDefToAzureOpenAITool(functionDefinition)
		if err != nil {
			return fmt.Errorf("converting function definition %q: %w", functionDefinition.Name, err)
		}
		tools = append(tools, &azopenai.ChatCompletionsFunctionToolDefinition{Function: fn})
	}
	c.tools = tools
	return nil
}

func fnDefToAzureOpenAITool(fnDef *FunctionDefinition) (*azopenai.ChatCompletionsFunctionToolDefinitionFunction, error) {
	parameters := fnDef.Parameters
	if parameters == nil {
		parameters = &Schema{Type: TypeObject}
	}
	jsonBytes, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters schema: %w", err)
	}

	return &azopenai.ChatCompletionsFunctionToolDefinitionFunction{
		Name:        &fnDef.Name,
		Description: &fnDef.Description,
		Parameters:  jsonBytes,
	}, nil
}

// AzureOpenAIChatResponse adapts the service response to ChatResponse.
type AzureOpenAIChatResponse struct {
	azureOpenAIResponse azopenai.GetChatCompletionsResponse
}

var _ ChatResponse = &AzureOpenAIChatResponse{}

func (r *AzureOpenAIChatResponse) String() string {
	return fmt.Sprintf("AzureOpenAIChatResponse{candidates=%v}", r.azureOpenAIResponse.Choices)
}

func (r *AzureOpenAIChatResponse) UsageMetadata() any {
	return r.azureOpenAIResponse.Usage
}

func (r *AzureOpenAIChatResponse) Candidates() []Candidate {
	var candidates []Candidate
	for _, candidate := range r.azureOpenAIResponse.Choices {
		candidates = append(candidates, &AzureOpenAICandidate{candidate: candidate})
	}
	return candidates
}

type AzureOpenAICandidate struct {
	candidate azopenai.ChatChoice
}

func (r *AzureOpenAICandidate) String() string {
	var response strings.Builder
	response.WriteString("[")
	for i, part := range r.Parts() {
		if i > 0 {
			response.WriteString(", ")
		}
		if text, ok := part.AsText(); ok {
			response.WriteString(text)
		}
		if functionCalls, ok := part.AsFunctionCalls(); ok {
			response.WriteString("functionCalls=[")
			for _, functionCall := range functionCalls {
				response.WriteString(fmt.Sprintf("%q(args=%v)", functionCall.Name, functionCall.Arguments))
			}
			response.WriteString("]")
		}
	}
	response.WriteString("]")
	return response.String()
}

func (r *AzureOpenAICandidate) Parts() []Part {
	var parts []Part

	if r.candidate.Message == nil {
		return parts
	}

	if r.candidate.Message.Content != nil {
		parts = append(parts, &AzureOpenAIPart{
			text: r.candidate.Message.Content,
		})
	}

	for _, tool := range r.candidate.Message.ToolCalls {
		fnCall, ok := tool.(*azopenai.ChatCompletionsFunctionToolCall)
		if !ok || fnCall.Function == nil {
			continue
		}
		var id string
		if fnCall.ID != nil {
			id = *fnCall.ID
		}
		parts = append(parts, &AzureOpenAIPart{
			callID:       id,
			functionCall: fnCall.Function,
		})
	}

	return parts
}

type AzureOpenAIPart struct {
	text         *string
	callID       string
	functionCall *azopenai.FunctionCall
}

func (p *AzureOpenAIPart) AsText() (string, bool) {
	if p.text != nil && len(*p.text) > 0 {
		return *p.text, true
	}
	return "", false
}

func (p *AzureOpenAIPart) AsFunctionCalls() ([]FunctionCall, bool) {
	if p.functionCall == nil {
		return nil, false
	}
	argumentsObj := map[string]any{}
	if p.functionCall.Arguments != nil && *p.functionCall.Arguments != "" {
		if err := json.Unmarshal([]byte(*p.functionCall.Arguments), &argumentsObj); err != nil {
			klog.Warningf("Failed to decode function call arguments for %v: %v", p.functionCall.Name, err)
			return nil, false
		}
	}
	var name string
	if p.functionCall.Name != nil {
		name = *p.functionCall.Name
	}
	return []FunctionCall{
		{
			ID:        p.callID,
			Name:      name,
			Arguments: argumentsObj,
		},
	}, true
}
