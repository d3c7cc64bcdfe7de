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
package anthropic

import "encoding/json"

// CacheControl marks a block as cacheable on the provider side.
type CacheControl struct {
	Type string `json:"type"` // always "ephemeral"
}

// TextBlockParam is a system prompt block. The schema catalog rendered
// into the system prompt is large and stable per tenant, so it is
// marked cacheable.
type TextBlockParam struct {
	Type         string        `json:"type"` // "text"
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// MessagesRequest is the request payload for the Messages API.
type MessagesRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	System      []TextBlockParam `json:"system,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	Tools       []CacheableTool  `json:"tools,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

// Message is a single conversation message on the wire.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a typed content element within a message.
type ContentBlock struct {
	Type string `json:"type"`

	// Text content (type: "text")
	Text string `json:"text,omitempty"`

	// Tool use (type: "tool_use")
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// Tool result (type: "tool_result")
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// MarshalJSON emits "input" even when the tool call has no parameters.
// The API rejects tool_use blocks without an input object.
func (cb ContentBlock) MarshalJSON() ([]byte, error) {
	if cb.Type == "tool_use" {
		input := cb.Input
		if input == nil {
			input = map[string]interface{}{}
		}
		return json.Marshal(struct {
			Type  string                 `json:"type"`
			ID    string                 `json:"id"`
			Name  string                 `json:"name"`
			Input map[string]interface{} `json:"input"`
		}{
			Type:  cb.Type,
			ID:    cb.ID,
			Name:  cb.Name,
			Input: input,
		})
	}

	type alias ContentBlock
	return json.Marshal(alias(cb))
}

// CacheableTool is a tool definition with optional cache marker. Only
// the last tool in the list carries cache_control; the API caches the
// whole prefix up to the marker.
type CacheableTool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// MessagesResponse is the non-streaming response payload.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage reports token consumption, including prompt-cache activity.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// ErrorResponse is the error envelope the API returns on failure.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamEvent is a single server-sent event in a streaming response.
type StreamEvent struct {
	Type         string            `json:"type"`
	Index        int               `json:"index,omitempty"`
	Message      *MessagesResponse `json:"message,omitempty"`
	ContentBlock *ContentBlock     `json:"content_block,omitempty"`
	Delta        *StreamDelta      `json:"delta,omitempty"`
	Usage        *Usage            `json:"usage,omitempty"`
}

// StreamDelta carries the incremental payload of a stream event.
type StreamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}
