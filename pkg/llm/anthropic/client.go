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

// Package anthropic implements the llm.Provider interface against the
// Anthropic Messages API, with prompt caching and SSE streaming.
package anthropic

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
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096
	apiVersion       = "2023-06-01"
	cachingBeta      = "prompt-caching-2024-07-31"
)

// Config holds the Anthropic client configuration.
type Config struct {
	// APIKey is the Anthropic API key (required)
	APIKey string

	// Model is the model identifier (default: claude-sonnet-4-5-20250929)
	Model string

	// Endpoint overrides the Messages API URL, mainly for tests
	Endpoint string

	// MaxTokens caps the response length (default: 4096)
	MaxTokens int

	// Temperature controls sampling (default: 1.0)
	Temperature float64

	// Timeout for HTTP requests (default: 60s)
	Timeout time.Duration

	// RateLimiter, when set, gates and retries requests. Shared across
	// tenant pipelines so the process-wide request rate stays bounded.
	RateLimiter *llm.RateLimiter

	// Logger for request/response events
	Logger *zap.Logger
}

// Client is an Anthropic Messages API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new Anthropic client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
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
func (c *Client) Name() string { return "anthropic" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.config.Model }

// Chat sends a conversation to the Messages API and returns the
// response, converting between the neutral message types and the wire
// format.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []tool.Tool) (*llm.Response, error) {
	system, wireMessages, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	wireTools, nameMap, err := convertTools(tools)
	if err != nil {
		return nil, err
	}

	req := MessagesRequest{
		Model:       c.config.Model,
		Messages:    wireMessages,
		MaxTokens:   c.config.MaxTokens,
		System:      system,
		Temperature: c.config.Temperature,
		Tools:       wireTools,
	}

	start := time.Now()
	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("anthropic chat completed",
		zap.String("model", c.config.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Int("cache_read_tokens", resp.Usage.CacheReadInputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return convertResponse(resp, nameMap), nil
}

// ChatStream streams the response over SSE, invoking tokenCallback for
// each text delta, and returns the assembled Response when the stream
// completes.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, tools []tool.Tool, tokenCallback llm.TokenCallback) (*llm.Response, error) {
	system, wireMessages, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	wireTools, nameMap, err := convertTools(tools)
	if err != nil {
		return nil, err
	}

	req := MessagesRequest{
		Model:       c.config.Model,
		Messages:    wireMessages,
		MaxTokens:   c.config.MaxTokens,
		System:      system,
		Temperature: c.config.Temperature,
		Tools:       wireTools,
		Stream:      true,
	}

	body, err := c.doHTTP(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return c.readStream(body, nameMap, tokenCallback)
}

// readStream consumes the SSE event stream. Tool call inputs arrive as
// partial JSON fragments indexed by content block; they are buffered
// per block and decoded once the block closes.
func (c *Client) readStream(body io.Reader, nameMap map[string]string, tokenCallback llm.TokenCallback) (*llm.Response, error) {
	var (
		response         llm.Response
		contentBuilder   strings.Builder
		usage            Usage
		toolInputBuffers = make(map[int]*strings.Builder)
		toolCallIndex    = make(map[int]int)
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("anthropic: skipping malformed stream event", zap.Error(err))
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
				usage.CacheCreationInputTokens = event.Message.Usage.CacheCreationInputTokens
				usage.CacheReadInputTokens = event.Message.Usage.CacheReadInputTokens
			}

		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				response.ToolCalls = append(response.ToolCalls, llm.ToolCall{
					ID:   event.ContentBlock.ID,
					Name: llm.ReverseToolName(nameMap, event.ContentBlock.Name),
				})
				toolCallIndex[event.Index] = len(response.ToolCalls) - 1
				toolInputBuffers[event.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				contentBuilder.WriteString(event.Delta.Text)
				if tokenCallback != nil {
					tokenCallback(event.Delta.Text)
				}
			case "input_json_delta":
				if buf, ok := toolInputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if buf, ok := toolInputBuffers[event.Index]; ok {
				idx := toolCallIndex[event.Index]
				input := map[string]interface{}{}
				raw := buf.String()
				if raw != "" {
					if err := json.Unmarshal([]byte(raw), &input); err != nil {
						return nil, fmt.Errorf("anthropic: decoding tool input: %w", err)
					}
				}
				response.ToolCalls[idx].Input = input
				delete(toolInputBuffers, event.Index)
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				response.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}

		case "error":
			return nil, fmt.Errorf("anthropic: stream error event: %s", data)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: reading stream: %w", err)
	}

	response.Content = contentBuilder.String()
	response.Usage = llm.Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.InputTokens + usage.OutputTokens,
		CostUSD:      calculateCost(usage),
	}
	return &response, nil
}

// callAPI performs a non-streaming request through the rate limiter
// when one is configured.
func (c *Client) callAPI(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	call := func(ctx context.Context) (interface{}, error) {
		body, err := c.doHTTP(ctx, req)
		if err != nil {
			return nil, err
		}
		defer body.Close()

		var resp MessagesResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("anthropic: decoding response: %w", err)
		}
		return &resp, nil
	}

	if c.config.RateLimiter != nil {
		result, err := c.config.RateLimiter.Do(ctx, call)
		if err != nil {
			return nil, err
		}
		return result.(*MessagesResponse), nil
	}

	result, err := call(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*MessagesResponse), nil
}

// doHTTP sends the request and returns the response body on 200.
// Throttling responses surface as errors containing the status code so
// the rate limiter can classify and retry them.
func (c *Client) doHTTP(ctx context.Context, req MessagesRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("anthropic-beta", cachingBeta)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: sending request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8192))

		var apiErr ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("anthropic: API error (status %d, %s): %s",
				httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("anthropic: API error (status %d): %s", httpResp.StatusCode, string(raw))
	}

	return httpResp.Body, nil
}

// convertMessages translates neutral messages to the wire format. A
// leading system message is lifted into the system field as a single
// cacheable text block.
func convertMessages(messages []llm.Message) ([]TextBlockParam, []Message, error) {
	var system []TextBlockParam
	wire := make([]Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, TextBlockParam{
				Type:         "text",
				Text:         msg.Content,
				CacheControl: &CacheControl{Type: "ephemeral"},
			})

		case llm.RoleUser:
			wire = append(wire, Message{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: msg.Content}},
			})

		case llm.RoleAssistant:
			blocks := make([]ContentBlock, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  llm.SanitizeToolName(call.Name),
					Input: call.Input,
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, ContentBlock{Type: "text", Text: ""})
			}
			wire = append(wire, Message{Role: "assistant", Content: blocks})

		case llm.RoleTool:
			content, isError := renderToolResult(msg.ToolResult)
			wire = append(wire, Message{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolUseID,
					Content:   content,
					IsError:   isError,
				}},
			})

		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}

	return system, wire, nil
}

// renderToolResult serializes a tool result for the model. Failed
// results keep their structured error so the model can self-correct.
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

// convertTools builds the wire tool list. Names are sanitized for the
// API and the reverse map lets responses surface original names. The
// last tool carries the cache marker so the whole definition prefix is
// cached.
func convertTools(tools []tool.Tool) ([]CacheableTool, map[string]string, error) {
	if len(tools) == 0 {
		return nil, nil, nil
	}

	nameMap := make(map[string]string, len(tools))
	wire := make([]CacheableTool, 0, len(tools))

	for _, t := range tools {
		schema, err := t.InputSchema().ToJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("anthropic: marshaling schema for tool %s: %w", t.Name(), err)
		}
		sanitized := llm.SanitizeToolName(t.Name())
		nameMap[sanitized] = t.Name()
		wire = append(wire, CacheableTool{
			Name:        sanitized,
			Description: t.Description(),
			InputSchema: schema,
		})
	}
	wire[len(wire)-1].CacheControl = &CacheControl{Type: "ephemeral"}

	return wire, nameMap, nil
}

// convertResponse translates the wire response to the neutral form.
func convertResponse(resp *MessagesResponse, nameMap map[string]string) *llm.Response {
	out := &llm.Response{
		StopReason: resp.StopReason,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
			CostUSD:      calculateCost(resp.Usage),
		},
	}

	var content strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:    block.ID,
				Name:  llm.ReverseToolName(nameMap, block.Name),
				Input: block.Input,
			})
		}
	}
	out.Content = content.String()

	return out
}

// calculateCost estimates the request cost in USD. Cache writes bill
// at 1.25x the input rate and cache reads at 0.1x.
func calculateCost(usage Usage) float64 {
	const (
		inputPerMtok  = 3.0
		outputPerMtok = 15.0
	)
	cost := float64(usage.InputTokens) * inputPerMtok / 1e6
	cost += float64(usage.OutputTokens) * outputPerMtok / 1e6
	cost += float64(usage.CacheCreationInputTokens) * inputPerMtok * 1.25 / 1e6
	cost += float64(usage.CacheReadInputTokens) * inputPerMtok * 0.1 / 1e6
	return cost
}

var (
	_ llm.Provider          = (*Client)(nil)
	_ llm.StreamingProvider = (*Client)(nil)
)
