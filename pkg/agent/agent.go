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

// Package agent runs the conversational loop: it assembles the prompt
// from session history and scope, lets the model call tools until it
// produces an answer, sanitizes that answer, and persists the turn.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// Loop bounds. MaxTurns caps model round-trips per question and
// MaxToolExecutions caps tool calls across all turns; both are hard
// limits, never extended at runtime.
const (
	DefaultMaxTurns          = 8
	DefaultMaxToolExecutions = 10
)

// SourceType classifies where an answer's content came from.
type SourceType string

const (
	SourceSQL    SourceType = "sql"
	SourceRAG    SourceType = "rag"
	SourceHybrid SourceType = "hybrid"
	SourceNone   SourceType = "none"
	SourceError  SourceType = "error"
)

// Config holds the per-tenant agent configuration.
type Config struct {
	// SystemPrompt is the assembled persona plus schema context.
	SystemPrompt string

	// MaxTurns caps model round-trips per question (default: 8)
	MaxTurns int

	// MaxToolExecutions caps tool calls per question (default: 10)
	MaxToolExecutions int
}

// Reply is the outcome of one question.
type Reply struct {
	Answer    string     `json:"answer"`
	Source    SourceType `json:"source"`
	ToolsUsed []string   `json:"tools_used,omitempty"`
	Usage     llm.Usage  `json:"usage"`
}

// Agent drives the tool-calling loop for one tenant.
type Agent struct {
	provider llm.Provider
	executor *tool.Executor
	registry *tool.Registry
	store    session.Store
	config   Config
	logger   *zap.Logger
}

// New creates an agent. The registry supplies the tool definitions
// sent to the model; the executor runs them.
func New(provider llm.Provider, registry *tool.Registry, executor *tool.Executor, store session.Store, config Config, logger *zap.Logger) *Agent {
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultMaxTurns
	}
	if config.MaxToolExecutions <= 0 {
		config.MaxToolExecutions = DefaultMaxToolExecutions
	}
	if logger == nil {
		logger = log.Logger()
	}
	return &Agent{
		provider: provider,
		executor: executor,
		registry: registry,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Chat answers one visitor question within a session.
func (a *Agent) Chat(ctx context.Context, scope session.Scope, sessionID, text string) (*Reply, error) {
	return a.run(ctx, scope, sessionID, text, nil)
}

// ChatStream answers one question, forwarding text deltas to
// tokenCallback as the model generates them. The returned Reply holds
// the sanitized full answer; the persisted turn uses the same text.
func (a *Agent) ChatStream(ctx context.Context, scope session.Scope, sessionID, text string, tokenCallback llm.TokenCallback) (*Reply, error) {
	return a.run(ctx, scope, sessionID, text, tokenCallback)
}

func (a *Agent) run(ctx context.Context, scope session.Scope, sessionID, text string, tokenCallback llm.TokenCallback) (*Reply, error) {
	messages, err := a.buildMessages(ctx, scope, sessionID, text)
	if err != nil {
		return nil, err
	}
	tools := a.registry.ListTools()

	var (
		usage        llm.Usage
		toolsUsed    []string
		sawSQL       bool
		sawRAG       bool
		sawFailure   bool
		pendingFocus *session.Focus
		executions   int
		answer       string
	)

	for turn := 0; turn < a.config.MaxTurns; turn++ {
		resp, err := a.callModel(ctx, messages, tools, tokenCallback)
		if err != nil {
			a.logger.Error("model call failed",
				zap.String("tenant", scope.TenantID),
				zap.Int("turn", turn),
				zap.Error(err))
			return nil, fmt.Errorf("agent: model call: %w", err)
		}
		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			answer = resp.Content
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if executions >= a.config.MaxToolExecutions {
				messages = append(messages, llm.Message{
					Role:      llm.RoleTool,
					ToolUseID: call.ID,
					ToolResult: &tool.Result{
						Success: false,
						Error: &tool.Error{
							Code:       "budget_exhausted",
							Message:    "no more tool calls are available for this question",
							Suggestion: "answer now with the information already gathered",
						},
					},
				})
				continue
			}
			executions++

			result, err := a.executor.Execute(ctx, scope, call.Name, call.Input)
			if err != nil {
				// Unknown tool or contract violation: feed it back as an
				// observation so the model can pick a real tool.
				result = &tool.Result{
					Success: false,
					Error: &tool.Error{
						Code:       "tool_unavailable",
						Message:    fmt.Sprintf("tool %q could not be executed", call.Name),
						Suggestion: "use one of the declared tools",
					},
				}
			}

			toolsUsed = append(toolsUsed, call.Name)
			switch result.Source {
			case tool.SourceSQL:
				sawSQL = true
			case tool.SourceRAG:
				sawRAG = true
			}
			if !result.Success {
				sawFailure = true
			}
			if result.Success && result.Focus != nil {
				pendingFocus = result.Focus
			}

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolUseID:  call.ID,
				ToolResult: result,
			})
		}
	}

	if answer == "" {
		// Turn budget exhausted while the model still wanted tools.
		a.logger.Warn("turn budget exhausted without an answer",
			zap.String("tenant", scope.TenantID),
			zap.Int("tool_executions", executions))
		reply := &Reply{
			Answer:    fallbackAnswer(scope.Language),
			Source:    SourceError,
			ToolsUsed: toolsUsed,
			Usage:     usage,
		}
		a.persist(ctx, scope, sessionID, text, reply, nil)
		return reply, nil
	}

	reply := &Reply{
		Answer:    Sanitize(answer),
		Source:    deriveSource(sawSQL, sawRAG, sawFailure, len(toolsUsed)),
		ToolsUsed: toolsUsed,
		Usage:     usage,
	}

	a.persist(ctx, scope, sessionID, text, reply, pendingFocus)
	return reply, nil
}

// buildMessages assembles system prompt, focus hint, history window,
// and the scoped user message.
func (a *Agent) buildMessages(ctx context.Context, scope session.Scope, sessionID, text string) ([]llm.Message, error) {
	system := a.config.SystemPrompt
	if focus, ok, err := a.store.Focus(ctx, sessionID); err == nil && ok {
		system += fmt.Sprintf("\n\nThe conversation is currently about the %s %q (id %d). "+
			"Resolve pronouns and vague references against it.", focus.Kind, focus.Label, focus.ID)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}

	history, err := a.store.Turns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("agent: loading session: %w", err)
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	// The site marker pins every tool call and SQL statement to the
	// visitor's museum; the sanitizer strips it from answers.
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("%s (siteid: %d)", text, scope.SiteID),
	})
	return messages, nil
}

func (a *Agent) callModel(ctx context.Context, messages []llm.Message, tools []tool.Tool, tokenCallback llm.TokenCallback) (*llm.Response, error) {
	if tokenCallback != nil {
		if streamer, ok := llm.SupportsStreaming(a.provider); ok {
			return streamer.ChatStream(ctx, messages, tools, tokenCallback)
		}
	}
	return a.provider.Chat(ctx, messages, tools)
}

// persist writes the exchange and any new focus. Every completed turn
// is written, sanitized fallbacks included, so the model sees what the
// visitor saw. A canceled request persists nothing, so an aborted
// stream cannot leave a half turn.
func (a *Agent) persist(ctx context.Context, scope session.Scope, sessionID, question string, reply *Reply, focus *session.Focus) {
	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	err := a.store.AppendTurns(ctx, sessionID,
		session.Turn{Role: session.RoleUser, Content: question, Timestamp: now},
		session.Turn{Role: session.RoleAssistant, Content: reply.Answer, Timestamp: now},
	)
	if err != nil {
		a.logger.Warn("persisting session turn failed",
			zap.String("tenant", scope.TenantID),
			zap.Error(err))
		return
	}
	if focus != nil {
		if err := a.store.SetFocus(ctx, sessionID, *focus); err != nil {
			a.logger.Warn("persisting focus failed",
				zap.String("tenant", scope.TenantID),
				zap.Error(err))
		}
	}
}

func deriveSource(sawSQL, sawRAG, sawFailure bool, toolCount int) SourceType {
	switch {
	case sawSQL && sawRAG:
		return SourceHybrid
	case sawSQL:
		return SourceSQL
	case sawRAG:
		return SourceRAG
	case sawFailure && toolCount > 0:
		return SourceError
	default:
		return SourceNone
	}
}

// fallbackAnswer apologizes in the visitor's language when the loop
// could not produce an answer.
func fallbackAnswer(lang string) string {
	switch lang {
	case "en":
		return "I'm sorry, I couldn't find an answer to that. Could you rephrase the question?"
	case "fr":
		return "Je suis désolé, je n'ai pas trouvé de réponse. Pourriez-vous reformuler la question ?"
	case "es":
		return "Lo siento, no he encontrado una respuesta. ¿Podría reformular la pregunta?"
	default:
		return "Mi dispiace, non sono riuscito a trovare una risposta. Può riformulare la domanda?"
	}
}
