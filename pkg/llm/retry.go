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
	"fmt"
	"math/rand/v2"
	"time"

	"k8s.io/klog/v2"
)

// IsRetryableFunc decides whether an error is worth retrying.
type IsRetryableFunc func(error) bool

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         true,
}

// Retry executes the provided operation with retries, returning the result and error.
func Retry[T any](
	ctx context.Context,
	config RetryConfig,
	isRetryable IsRetryableFunc,
	operation func(ctx context.Context) (T, error),
) (T, error) {
	var lastErr error
	var zero T

	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		if !isRetryable(lastErr) {
			klog.V(2).InfoS("Attempt failed with non-retryable error", "attempt", attempt, "error", lastErr)
			return zero, lastErr
		}

		if attempt == config.MaxAttempts {
			break
		}

		waitTime := backoff
		if config.Jitter {
			waitTime += time.Duration(rand.Float64() * float64(backoff) / 2)
		}

		klog.V(2).InfoS("Attempt failed with retryable error, waiting before next attempt",
			"attempt", attempt, "maxAttempts", config.MaxAttempts, "waitTime", waitTime, "error", lastErr)

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// retryChat is a decorator that adds retry logic to any Chat implementation.
type retryChat struct {
	underlying Chat
	config     RetryConfig
}

// NewRetryChat creates a new Chat that wraps the given underlying chat
// with retry logic using the provided configuration.
func NewRetryChat(underlying Chat, config RetryConfig) Chat {
	return &retryChat{
		underlying: underlying,
		config:     config,
	}
}

func (rc *retryChat) Send(ctx context.Context, contents ...any) (ChatResponse, error) {
	return Retry(ctx, rc.config, rc.underlying.IsRetryableError, func(ctx context.Context) (ChatResponse, error) {
		return rc.underlying.Send(ctx, contents...)
	})
}

func (rc *retryChat) SendStreaming(ctx context.Context, contents ...any) (ChatResponseIterator, error) {
	iterator, err := Retry(ctx, rc.config, rc.underlying.IsRetryableError, func(ctx context.Context) (ChatResponseIterator, error) {
		return rc.underlying.SendStreaming(ctx, contents...)
	})
	if err == nil {
		return iterator, nil
	}

	// Streaming connections can fail in ways a plain request does not;
	// fall back to the non-streaming path before giving up.
	if rc.underlying.IsRetryableError(err) {
		klog.V(1).InfoS("Streaming failed after retries, falling back to non-streaming Send", "error", err)
		response, sendErr := rc.underlying.Send(ctx, contents...)
		if sendErr != nil {
			return nil, fmt.Errorf("both streaming and non-streaming attempts failed: streaming: %w, non-streaming: %v", err, sendErr)
		}
		return singletonChatResponseIterator(response), nil
	}

	return nil, err
}

func (rc *retryChat) SetFunctionDefinitions(functionDefinitions []*FunctionDefinition) error {
	return rc.underlying.SetFunctionDefinitions(functionDefinitions)
}

func (rc *retryChat) IsRetryableError(err error) bool {
	return rc.underlying.IsRetryableError(err)
}
