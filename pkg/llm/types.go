// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package llm defines the provider-neutral chat types and the shared
// rate limiter. Concrete provider clients live in the subpackages.
package llm

import (
	"context"
	"time"

	"github.com/noesis-labs/cicerone/pkg/tool"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string

	// Name is the tool name
	Name string

	// Input contains the tool parameters as JSON
	Input map[string]interface{}
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is the message sender (user, assistant, tool)
	Role string

	// Content is the message text
	Content string

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall

	// ToolUseID is the ID of the tool_use block this result corresponds
	// to (if role is tool)
	ToolUseID string

	// ToolResult contains the tool execution result (if role is tool)
	ToolResult *tool.Result

	// Timestamp when the message was created
	Timestamp time.Time
}

// Usage tracks LLM token usage and costs.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// Add accumulates another usage record.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
}

// Response represents a response from the LLM.
type Response struct {
	// Content is the text response (if no tool calls)
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage
}

// Provider defines the interface for LLM providers, allowing
// pluggable backends per tenant.
type Provider interface {
	// Chat sends a conversation to the LLM and returns the response.
	// The system prompt travels as a leading message with role "system".
	Chat(ctx context.Context, messages []Message, tools []tool.Tool) (*Response, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// TokenCallback is called for each token/chunk during streaming.
// Implementations should be lightweight and non-blocking.
type TokenCallback func(token string)

// StreamingProvider extends Provider with token streaming support.
type StreamingProvider interface {
	Provider

	// ChatStream streams tokens as they're generated from the LLM.
	// Returns the complete Response after the stream finishes.
	ChatStream(ctx context.Context, messages []Message, tools []tool.Tool,
		tokenCallback TokenCallback) (*Response, error)
}

// SupportsStreaming checks if a provider supports token streaming.
func SupportsStreaming(provider Provider) (StreamingProvider, bool) {
	s, ok := provider.(StreamingProvider)
	return s, ok
}

// RoleSystem marks the synthetic leading message carrying the system
// prompt; provider clients extract it into their native system field.
const RoleSystem = "system"
