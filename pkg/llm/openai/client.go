// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai implements the llm.Provider interface against the
// OpenAI Chat Completions API with function calling and SSE streaming.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

const (
	defaultEndpoint  = "https://api.openai.com/v1/chat/completions"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 4096
)

// Config holds the OpenAI client configuration.
type Config struct {
	// APIKey is the OpenAI API key (required)
	APIKey string

	// Model is the model identifier (default: gpt-4o)
	Model string

	// Endpoint overrides the Chat Completions URL, mainly for tests
	Endpoint string

	// MaxTokens caps the response length (default: 4096)
	MaxTokens int

	// Temperature controls sampling (default: 1.0)
	Temperature float64

	// Timeout for HTTP requests (default: 60s)
	Timeout time.Duration

	// RateLimiter, when set, gates and retries requests
	RateLimiter *llm.RateLimiter

	// Logger for request/response events
	Logger *zap.Logger
}

// Client is an OpenAI Chat Completions client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new OpenAI client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = 1.0
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Logger()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return "openai" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.config.Model }

// Chat sends a conversation and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []tool.Tool) (*llm.Response, error) {
	req, nameMap, err := c.buildRequest(messages, tools, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("openai chat completed",
		zap.String("model", c.config.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return c.convertResponse(resp, nameMap), nil
}

// ChatStream streams the response over SSE, invoking tokenCallback for
// each content delta.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, tools []tool.Tool, tokenCallback llm.TokenCallback) (*llm.Response, error) {
	req, nameMap, err := c.buildRequest(messages, tools, true)
	if err != nil {
		return nil, err
	}

	body, err := c.doHTTP(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return c.readStream(ctx, body, nameMap, tokenCallback)
}

func (c *Client) buildRequest(messages []llm.Message, tools []tool.Tool, stream bool) (*ChatCompletionRequest, map[string]string, error) {
	wireMessages, err := convertMessages(messages)
	if err != nil {
		return nil, nil, err
	}
	wireTools, nameMap, err := convertTools(tools)
	if err != nil {
		return nil, nil, err
	}

	req := &ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    wireMessages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Stream:      stream,
	}
	if len(wireTools) > 0 {
		req.Tools = wireTools
		req.ToolChoice = "auto"
	}
	return req, nameMap, nil
}

// readStream consumes the SSE chunk stream. Tool call arguments arrive
// as partial JSON fragments keyed by tool call index; they are
// accumulated and decoded once the stream ends.
func (c *Client) readStream(ctx context.Context, body io.Reader, nameMap map[string]string, tokenCallback llm.TokenCallback) (*llm.Response, error) {
	var (
		contentBuilder strings.Builder
		usage          ChatCompletionUsage
		finishReason   string
		calls          []llm.ToolCall
		callIndex      = make(map[int]int)
		argBuffers     = make(map[int]*strings.Builder)
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk ChatCompletionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("openai: skipping malformed stream chunk", zap.Error(err))
			continue
		}

		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			contentBuilder.WriteString(choice.Delta.Content)
			if tokenCallback != nil {
				tokenCallback(choice.Delta.Content)
			}
		}

		for _, delta := range choice.Delta.ToolCalls {
			if _, ok := callIndex[delta.Index]; !ok {
				calls = append(calls, llm.ToolCall{
					ID:   delta.ID,
					Name: llm.ReverseToolName(nameMap, delta.Function.Name),
				})
				callIndex[delta.Index] = len(calls) - 1
				argBuffers[delta.Index] = &strings.Builder{}
			}
			if delta.Function.Arguments != "" {
				argBuffers[delta.Index].WriteString(delta.Function.Arguments)
			}
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("openai: reading stream: %w", err)
	}

	for wireIdx, buf := range argBuffers {
		input := map[string]interface{}{}
		if raw := buf.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				return nil, fmt.Errorf("openai: decoding tool arguments: %w", err)
			}
		}
		calls[callIndex[wireIdx]].Input = input
	}

	return &llm.Response{
		Content:    contentBuilder.String(),
		ToolCalls:  calls,
		StopReason: mapFinishReason(finishReason),
		Usage: llm.Usage{
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
			TotalTokens:  usage.TotalTokens,
			CostUSD:      c.calculateCost(usage.PromptTokens, usage.CompletionTokens),
		},
	}, nil
}

// callAPI performs a non-streaming request through the rate limiter
// when one is configured.
func (c *Client) callAPI(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	call := func(ctx context.Context) (interface{}, error) {
		body, err := c.doHTTP(ctx, req)
		if err != nil {
			return nil, err
		}
		defer body.Close()

		var resp ChatCompletionResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("openai: decoding response: %w", err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("openai: API error (%s): %s", resp.Error.Type, resp.Error.Message)
		}
		return &resp, nil
	}

	if c.config.RateLimiter != nil {
		result, err := c.config.RateLimiter.Do(ctx, call)
		if err != nil {
			return nil, err
		}
		return result.(*ChatCompletionResponse), nil
	}

	result, err := call(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*ChatCompletionResponse), nil
}

func (c *Client) doHTTP(ctx context.Context, req *ChatCompletionRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: sending request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8192))
		return nil, fmt.Errorf("openai: API error (status %d): %s", httpResp.StatusCode, string(raw))
	}

	return httpResp.Body, nil
}

// convertMessages translates neutral messages to the wire format.
// Unlike Anthropic, the system prompt stays a plain message and tool
// results travel as role "tool" messages.
func convertMessages(messages []llm.Message) ([]ChatMessage, error) {
	wire := make([]ChatMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			wire = append(wire, ChatMessage{Role: msg.Role, Content: msg.Content})

		case llm.RoleAssistant:
			apiMsg := ChatMessage{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Input)
				if err != nil {
					args = []byte("{}")
				}
				apiMsg.ToolCalls = append(apiMsg.ToolCalls, ToolCall{
					ID:   call.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      llm.SanitizeToolName(call.Name),
						Arguments: string(args),
					},
				})
			}
			wire = append(wire, apiMsg)

		case llm.RoleTool:
			content, _ := renderToolResult(msg.ToolResult)
			wire = append(wire, ChatMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: msg.ToolUseID,
			})

		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", msg.Role)
		}
	}

	return wire, nil
}

func renderToolResult(result *tool.Result) (string, bool) {
	if result == nil {
		return "", false
	}
	if result.Error != nil {
		payload := map[string]interface{}{
			"error":   result.Error.Code,
			"message": result.Error.Message,
		}
		if result.Error.Suggestion != "" {
			payload["suggestion"] = result.Error.Suggestion
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return result.Error.Message, true
		}
		return string(raw), true
	}

	switch data := result.Data.(type) {
	case string:
		return data, false
	default:
		raw, err := json.Marshal(result.Data)
		if err != nil {
			return fmt.Sprintf("%v", result.Data), false
		}
		return string(raw), false
	}
}

// convertTools builds the wire tool list with sanitized names. The
// JSONSchema round-trips through encoding/json into the loosely typed
// parameters object the API expects.
func convertTools(tools []tool.Tool) ([]Tool, map[string]string, error) {
	if len(tools) == 0 {
		return nil, nil, nil
	}

	nameMap := make(map[string]string, len(tools))
	wire := make([]Tool, 0, len(tools))

	for _, t := range tools {
		raw, err := t.InputSchema().ToJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("openai: marshaling schema for tool %s: %w", t.Name(), err)
		}
		var params map[string]interface{}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, nil, fmt.Errorf("openai: converting schema for tool %s: %w", t.Name(), err)
		}

		sanitized := llm.SanitizeToolName(t.Name())
		nameMap[sanitized] = t.Name()
		wire = append(wire, Tool{
			Type: "function",
			Function: FunctionDef{
				Name:        sanitized,
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}

	return wire, nameMap, nil
}

// convertResponse translates the wire response to the neutral form.
func (c *Client) convertResponse(resp *ChatCompletionResponse, nameMap map[string]string) *llm.Response {
	out := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			CostUSD:      c.calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.StopReason = mapFinishReason(choice.FinishReason)
	out.Content = choice.Message.Content

	for _, call := range choice.Message.ToolCalls {
		input := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				input = map[string]interface{}{"_raw": call.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:    call.ID,
			Name:  llm.ReverseToolName(nameMap, call.Function.Name),
			Input: input,
		})
	}

	return out
}

// mapFinishReason normalizes finish reasons to the Anthropic-style
// vocabulary the agent loop keys on.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls", "function_call":
		return "tool_use"
	default:
		return reason
	}
}

// calculateCost estimates the request cost in USD per the published
// per-model pricing.
func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	var inputPerMtok, outputPerMtok float64
	switch c.config.Model {
	case "gpt-4o":
		inputPerMtok, outputPerMtok = 2.50, 10.00
	case "gpt-4o-mini":
		inputPerMtok, outputPerMtok = 0.15, 0.60
	case "gpt-4.1":
		inputPerMtok, outputPerMtok = 2.00, 8.00
	case "gpt-4-turbo":
		inputPerMtok, outputPerMtok = 10.00, 30.00
	default:
		inputPerMtok, outputPerMtok = 2.50, 10.00
	}
	return float64(inputTokens)*inputPerMtok/1e6 + float64(outputTokens)*outputPerMtok/1e6
}

var (
	_ llm.Provider          = (*Client)(nil)
	_ llm.StreamingProvider = (*Client)(nil)
)
