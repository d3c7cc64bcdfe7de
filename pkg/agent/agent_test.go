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
package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

var testScope = session.Scope{TenantID: "galleria", SiteID: 3, Target: "STD", Language: "it"}

// scriptedProvider replays a fixed sequence of responses and records
// every request for assertions.
type scriptedProvider struct {
	responses []*llm.Response
	calls     [][]llm.Message
	streaming bool
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, tools []tool.Tool) (*llm.Response, error) {
	p.calls = append(p.calls, messages)
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

type scriptedStreamer struct {
	scriptedProvider
}

func (p *scriptedStreamer) ChatStream(ctx context.Context, messages []llm.Message, tools []tool.Tool, cb llm.TokenCallback) (*llm.Response, error) {
	resp, err := p.Chat(ctx, messages, tools)
	if err != nil {
		return nil, err
	}
	if cb != nil && resp.Content != "" {
		for _, word := range strings.SplitAfter(resp.Content, " ") {
			cb(word)
		}
	}
	return resp, nil
}

func newTestAgent(t *testing.T, provider llm.Provider, tools ...tool.Tool) (*Agent, *session.MemoryStore) {
	t.Helper()
	registry := tool.NewRegistry()
	for _, tl := range tools {
		registry.Register(tl)
	}
	store := session.NewMemoryStore(0)
	a := New(provider, registry, tool.NewExecutor(registry, nil), store,
		Config{SystemPrompt: "You are the museum guide."}, nil)
	return a, store
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Content: text, StopReason: "end_turn"}
}

func toolResponse(id, name string, input map[string]interface{}) *llm.Response {
	return &llm.Response{
		StopReason: "tool_use",
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Input: input}},
	}
}

func TestChatDirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("Benvenuti!")}}
	a, store := newTestAgent(t, provider)

	reply, err := a.Chat(context.Background(), testScope, "s1", "Ciao")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Answer != "Benvenuti!" || reply.Source != SourceNone {
		t.Fatalf("reply = %+v", reply)
	}

	// the user message carries the site marker for the model
	sent := provider.calls[0]
	last := sent[len(sent)-1]
	if !strings.Contains(last.Content, "(siteid: 3)") {
		t.Fatalf("user message = %q, want site marker", last.Content)
	}

	// the persisted turn does not
	turns, _ := store.Turns(context.Background(), "s1")
	if len(turns) != 2 {
		t.Fatalf("turns = %+v, want user+assistant", turns)
	}
	if strings.Contains(turns[0].Content, "siteid") {
		t.Fatalf("persisted question = %q, marker must not be stored", turns[0].Content)
	}
}

func TestChatToolLoop(t *testing.T) {
	searchTool := &tool.MockTool{
		ToolName: "search_artworks",
		ExecuteFunc: func(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
			return &tool.Result{Success: true, Data: "found it", Source: tool.SourceSQL}, nil
		},
	}
	provider := &scriptedProvider{responses: []*llm.Response{
		toolResponse("t1", "search_artworks", map[string]interface{}{"title": "Amore"}),
		textResponse("Si trova in Sala I."),
	}}
	a, _ := newTestAgent(t, provider, searchTool)

	reply, err := a.Chat(context.Background(), testScope, "s1", "Dove si trova Amore e Psiche?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Source != SourceSQL {
		t.Fatalf("Source = %q, want sql", reply.Source)
	}
	if len(reply.ToolsUsed) != 1 || reply.ToolsUsed[0] != "search_artworks" {
		t.Fatalf("ToolsUsed = %v", reply.ToolsUsed)
	}
	if len(searchTool.Calls) != 1 || searchTool.Calls[0].Scope.SiteID != 3 {
		t.Fatalf("tool calls = %+v, want scope threaded", searchTool.Calls)
	}

	// the second model call must carry the observation
	second := provider.calls[1]
	lastMsg := second[len(second)-1]
	if lastMsg.Role != llm.RoleTool || lastMsg.ToolUseID != "t1" || lastMsg.ToolResult == nil {
		t.Fatalf("observation = %+v", lastMsg)
	}
}

func TestChatCommitsFocusOnSuccess(t *testing.T) {
	detailTool := &tool.MockTool{
		ToolName: "get_artwork_details",
		ExecuteFunc: func(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
			return &tool.Result{
				Success: true,
				Data:    "details",
				Source:  tool.SourceSQL,
				Focus:   &session.Focus{Kind: session.FocusArtwork, ID: 42, Label: "Amore e Psiche"},
			}, nil
		},
	}
	provider := &scriptedProvider{responses: []*llm.Response{
		toolResponse("t1", "get_artwork_details", map[string]interface{}{"artwork_id": float64(42)}),
		textResponse("È un gruppo scultoreo di Canova."),
	}}
	a, store := newTestAgent(t, provider, detailTool)

	if _, err := a.Chat(context.Background(), testScope, "s1", "Parlami di Amore e Psiche"); err != nil {
		t.Fatal(err)
	}

	focus, ok, _ := store.Focus(context.Background(), "s1")
	if !ok || focus.ID != 42 || focus.Kind != session.FocusArtwork {
		t.Fatalf("focus = %+v, %v", focus, ok)
	}
}

func TestChatFocusHintInSystemPrompt(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("Lo scolpì Canova.")}}
	a, store := newTestAgent(t, provider)

	store.SetFocus(context.Background(), "s1",
		session.Focus{Kind: session.FocusArtwork, ID: 42, Label: "Amore e Psiche"})

	if _, err := a.Chat(context.Background(), testScope, "s1", "Chi lo ha scolpito?"); err != nil {
		t.Fatal(err)
	}

	system := provider.calls[0][0]
	if system.Role != llm.RoleSystem || !strings.Contains(system.Content, "Amore e Psiche") {
		t.Fatalf("system = %+v, want focus hint", system)
	}
}

func TestChatTurnBudgetExhausted(t *testing.T) {
	loopTool := &tool.MockTool{ToolName: "search_artworks"}
	provider := &scriptedProvider{responses: []*llm.Response{
		toolResponse("t1", "search_artworks", nil),
	}}
	a, store := newTestAgent(t, provider, loopTool)

	reply, err := a.Chat(context.Background(), testScope, "s1", "boh")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Source != SourceError {
		t.Fatalf("Source = %q, want error", reply.Source)
	}
	if reply.Answer == "" || !strings.Contains(reply.Answer, "riformulare") {
		t.Fatalf("Answer = %q, want Italian fallback", reply.Answer)
	}
	if len(provider.calls) != DefaultMaxTurns {
		t.Fatalf("model calls = %d, want capped at %d", len(provider.calls), DefaultMaxTurns)
	}

	// the visitor saw the fallback, so the session must record it
	turns, _ := store.Turns(context.Background(), "s1")
	if len(turns) != 2 {
		t.Fatalf("turns = %+v, want user+fallback persisted", turns)
	}
	if turns[1].Content != reply.Answer {
		t.Fatalf("persisted answer = %q, want the fallback", turns[1].Content)
	}
}

func TestChatToolExecutionBudget(t *testing.T) {
	var executed int
	greedyTool := &tool.MockTool{
		ToolName: "search_artworks",
		ExecuteFunc: func(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
			executed++
			return &tool.Result{Success: true, Data: "x", Source: tool.SourceSQL}, nil
		},
	}
	responses := make([]*llm.Response, 0, DefaultMaxTurns)
	for i := 0; i < DefaultMaxTurns-1; i++ {
		responses = append(responses, &llm.Response{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "a", Name: "search_artworks"},
				{ID: "b", Name: "search_artworks"},
			},
		})
	}
	responses = append(responses, textResponse("Ecco quello che ho trovato."))
	provider := &scriptedProvider{responses: responses}
	a, _ := newTestAgent(t, provider, greedyTool)

	reply, err := a.Chat(context.Background(), testScope, "s1", "tutto")
	if err != nil {
		t.Fatal(err)
	}
	if executed != DefaultMaxToolExecutions {
		t.Fatalf("executed = %d, want hard cap %d", executed, DefaultMaxToolExecutions)
	}
	if reply.Answer == "" {
		t.Fatal("expected final answer after budget exhaustion")
	}
}

func TestChatFailedToolsOnlyYieldErrorSource(t *testing.T) {
	brokenTool := &tool.MockTool{
		ToolName: "search_artworks",
		ExecuteFunc: func(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
			return &tool.Result{
				Success: false,
				Error:   &tool.Error{Code: "query_failed", Message: "the catalogue query failed"},
			}, nil
		},
	}
	provider := &scriptedProvider{responses: []*llm.Response{
		toolResponse("t1", "search_artworks", nil),
		textResponse("Non sono riuscito a consultare il catalogo."),
	}}
	a, store := newTestAgent(t, provider, brokenTool)

	reply, err := a.Chat(context.Background(), testScope, "s1", "cerca")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Source != SourceError {
		t.Fatalf("Source = %q, want error when every tool failed", reply.Source)
	}
	turns, _ := store.Turns(context.Background(), "s1")
	if len(turns) != 2 || turns[1].Content != reply.Answer {
		t.Fatalf("turns = %+v, want the sanitized error answer persisted", turns)
	}
}

// cancelingProvider cancels the request context before answering, as
// when a visitor closes the stream mid-generation.
type cancelingProvider struct {
	scriptedProvider
	cancel context.CancelFunc
}

func (p *cancelingProvider) Chat(ctx context.Context, messages []llm.Message, tools []tool.Tool) (*llm.Response, error) {
	p.cancel()
	return p.scriptedProvider.Chat(ctx, messages, tools)
}

func TestChatCanceledRequestDoesNotPersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := &cancelingProvider{
		scriptedProvider: scriptedProvider{responses: []*llm.Response{textResponse("Benvenuti!")}},
		cancel:           cancel,
	}
	a, store := newTestAgent(t, provider)

	if _, err := a.Chat(ctx, testScope, "s1", "Ciao"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	turns, _ := store.Turns(context.Background(), "s1")
	if len(turns) != 0 {
		t.Fatalf("turns = %+v, canceled requests must not commit history", turns)
	}
}

func TestChatStreamForwardsTokens(t *testing.T) {
	provider := &scriptedStreamer{scriptedProvider{responses: []*llm.Response{
		textResponse("La galleria apre alle 9."),
	}}}
	a, _ := newTestAgent(t, provider)

	var streamed strings.Builder
	reply, err := a.ChatStream(context.Background(), testScope, "s1", "orari?",
		func(token string) { streamed.WriteString(token) })
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if streamed.String() != "La galleria apre alle 9." {
		t.Fatalf("streamed = %q", streamed.String())
	}
	if reply.Answer != "La galleria apre alle 9." {
		t.Fatalf("Answer = %q", reply.Answer)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{"site marker", "La trovi in Sala I. (siteid: 3)", "La trovi in Sala I."},
		{"sql fence", "Ho cercato:\n```sql\nSELECT * FROM artistwork\n```\nNiente.", "Ho cercato:\n\nNiente."},
		{"html", "<p>Un <b>capolavoro</b></p>", "Un capolavoro"},
		{"driver error", "Risposta.\npq: relation does not exist\nFine.", "Risposta.\n\nFine."},
		{"clean text untouched", "Tutto regolare.", "Tutto regolare."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
