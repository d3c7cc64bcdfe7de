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
package openai

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test-key", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestChatConvertsMessagesAndTools(t *testing.T) {
	var captured ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []ChatCompletionChoice{{
				Message:      ChatMessage{Role: "assistant", Content: "Il museo apre alle 9."},
				FinishReason: "stop",
			}},
			Usage: ChatCompletionUsage{PromptTokens: 60, CompletionTokens: 12, TotalTokens: 72},
		})
	})

	resp, err := client.Chat(context.Background(),
		[]llm.Message{
			{Role: llm.RoleSystem, Content: "You are a museum guide."},
			{Role: llm.RoleUser, Content: "Orari?"},
		},
		[]tool.Tool{&tool.MockTool{ToolName: "get_museum_info", ToolDescription: "info"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system then user", captured.Messages)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "get_museum_info" {
		t.Fatalf("tools = %+v", captured.Tools)
	}
	if captured.ToolChoice != "auto" {
		t.Fatalf("tool_choice = %v", captured.ToolChoice)
	}

	if resp.Content != "Il museo apre alle 9." {
		t.Fatalf("Content = %q", resp.Content)
	}
	if resp.StopReason != "end_turn" {
		t.Fatalf("StopReason = %q, want normalized end_turn", resp.StopReason)
	}
}

func TestChatParsesToolCallArguments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []ChatCompletionChoice{{
				Message: ChatMessage{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:   "call_01",
						Type: "function",
						Function: FunctionCall{
							Name:      "search_artworks",
							Arguments: `{"artist_name": "Canova"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	})

	resp, err := client.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "opere di Canova"}},
		[]tool.Tool{&tool.MockTool{ToolName: "search_artworks"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.StopReason != "tool_use" {
		t.Fatalf("StopReason = %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Input["artist_name"] != "Canova" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
}

func TestChatStreamAccumulatesToolArguments(t *testing.T) {
	chunks := []string{
		`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Cerco"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":" subito."}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_02","type":"function","function":{"name":"search_artworks","arguments":"{\"title\""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":": \"Ebe\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":40,"completion_tokens":9,"total_tokens":49}}`,
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			w.Write([]byte("data: " + c + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	})

	var streamed strings.Builder
	resp, err := client.ChatStream(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "trova Ebe"}},
		[]tool.Tool{&tool.MockTool{ToolName: "search_artworks"}},
		func(token string) { streamed.WriteString(token) })
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if streamed.String() != "Cerco subito." {
		t.Fatalf("streamed = %q", streamed.String())
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Input["title"] != "Ebe" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.StopReason != "tool_use" {
		t.Fatalf("StopReason = %q", resp.StopReason)
	}
	if resp.Usage.TotalTokens != 49 {
		t.Fatalf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"tokens"}}`))
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
