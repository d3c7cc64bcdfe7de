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

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, server
}

func TestChatLiftsSystemPromptAndTools(t *testing.T) {
	var captured MessagesRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != apiVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(MessagesResponse{
			Content:    []ContentBlock{{Type: "text", Text: "Benvenuti al museo."}},
			StopReason: "end_turn",
			Usage:      Usage{InputTokens: 100, OutputTokens: 20},
		})
	})

	tools := []tool.Tool{
		&tool.MockTool{ToolName: "search_artworks", ToolDescription: "search"},
		&tool.MockTool{ToolName: "get_museum_info", ToolDescription: "info"},
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a museum guide."},
		{Role: llm.RoleUser, Content: "Ciao"},
	}

	resp, err := client.Chat(context.Background(), messages, tools)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(captured.System) != 1 || captured.System[0].Text != "You are a museum guide." {
		t.Fatalf("system = %+v, want lifted system block", captured.System)
	}
	if captured.System[0].CacheControl == nil {
		t.Fatal("system block missing cache_control")
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v, want single user message", captured.Messages)
	}
	if len(captured.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(captured.Tools))
	}
	if captured.Tools[0].CacheControl != nil || captured.Tools[1].CacheControl == nil {
		t.Fatal("cache_control should be on the last tool only")
	}

	if resp.Content != "Benvenuti al museo." {
		t.Fatalf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 120 {
		t.Fatalf("TotalTokens = %d, want 120", resp.Usage.TotalTokens)
	}
}

func TestChatReturnsToolCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MessagesResponse{
			Content: []ContentBlock{{
				Type:  "tool_use",
				ID:    "toolu_01",
				Name:  "search_artworks",
				Input: map[string]interface{}{"title": "Amore e Psiche"},
			}},
			StopReason: "tool_use",
			Usage:      Usage{InputTokens: 50, OutputTokens: 10},
		})
	})

	resp, err := client.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "Dov'è Amore e Psiche?"}},
		[]tool.Tool{&tool.MockTool{ToolName: "search_artworks"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.StopReason != "tool_use" {
		t.Fatalf("StopReason = %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search_artworks" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Input["title"] != "Amore e Psiche" {
		t.Fatalf("Input = %+v", resp.ToolCalls[0].Input)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := client.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsThrottle(err) {
		t.Fatalf("error %v not classified as throttle", err)
	}
}

func TestChatStreamAssemblesResponse(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":80}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"La scultura "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"si trova in Sala 1."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_02","name":"get_artwork_details"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"artwork"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"_id\": 7}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"type":"message_delta","stop_reason":"tool_use"},"usage":{"output_tokens":30}}`,
		`{"type":"message_stop"}`,
	}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			w.Write([]byte("data: " + e + "\n\n"))
		}
	})

	var streamed strings.Builder
	resp, err := client.ChatStream(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "dove?"}},
		[]tool.Tool{&tool.MockTool{ToolName: "get_artwork_details"}},
		func(token string) { streamed.WriteString(token) })
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if resp.Content != "La scultura si trova in Sala 1." {
		t.Fatalf("Content = %q", resp.Content)
	}
	if streamed.String() != resp.Content {
		t.Fatalf("streamed %q != content %q", streamed.String(), resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if id, _ := resp.ToolCalls[0].Input["artwork_id"].(float64); id != 7 {
		t.Fatalf("Input = %+v, want artwork_id 7", resp.ToolCalls[0].Input)
	}
	if resp.StopReason != "tool_use" {
		t.Fatalf("StopReason = %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 80 || resp.Usage.OutputTokens != 30 {
		t.Fatalf("Usage = %+v", resp.Usage)
	}
}

func TestConvertMessagesToolResult(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "toolu_03", Name: "list_artists"}}},
		{Role: llm.RoleTool, ToolUseID: "toolu_03", ToolResult: &tool.Result{
			Success: true,
			Data:    []string{"Canova", "Thorvaldsen"},
		}},
	}

	_, wire, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	if len(wire) != 2 {
		t.Fatalf("wire = %d messages, want 2", len(wire))
	}
	// tool_use with no input must still marshal an input object
	raw, err := json.Marshal(wire[0].Content[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"input":{}`) {
		t.Fatalf("tool_use block = %s, want empty input object", raw)
	}

	result := wire[1].Content[0]
	if result.Type != "tool_result" || result.ToolUseID != "toolu_03" || result.IsError {
		t.Fatalf("tool_result block = %+v", result)
	}
	if !strings.Contains(result.Content, "Canova") {
		t.Fatalf("tool_result content = %q", result.Content)
	}
}

func TestConvertMessagesToolError(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleTool, ToolUseID: "toolu_04", ToolResult: &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:       "forbidden_statement",
				Message:    "only SELECT statements are allowed",
				Suggestion: "rewrite the query as a SELECT",
			},
		}},
	}

	_, wire, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	block := wire[0].Content[0]
	if !block.IsError {
		t.Fatal("expected is_error on failed tool result")
	}
	if !strings.Contains(block.Content, "forbidden_statement") || !strings.Contains(block.Content, "rewrite") {
		t.Fatalf("content = %q, want structured error", block.Content)
	}
}

func TestCalculateCostIncludesCache(t *testing.T) {
	cost := calculateCost(Usage{
		InputTokens:              1_000_000,
		OutputTokens:             0,
		CacheReadInputTokens:     1_000_000,
		CacheCreationInputTokens: 0,
	})
	// 3.00 for input plus 0.30 for cache reads
	if cost < 3.29 || cost > 3.31 {
		t.Fatalf("cost = %f, want ~3.30", cost)
	}
}
