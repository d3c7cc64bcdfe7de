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

// Package pipeline assembles one tenant's full question-answering
// stack: database, schema catalog, tools, model provider, and agent.
// Pipelines are built once per tenant configuration version and reused
// across requests.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/agent"
	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/catalog"
	"github.com/noesis-labs/cicerone/pkg/docindex"
	"github.com/noesis-labs/cicerone/pkg/language"
	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/llm/anthropic"
	"github.com/noesis-labs/cicerone/pkg/llm/openai"
	"github.com/noesis-labs/cicerone/pkg/metering"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tenant"
	"github.com/noesis-labs/cicerone/pkg/tool"
	"github.com/noesis-labs/cicerone/pkg/tool/museum"
)

// DefaultTarget is the audience tier used when the request does not
// pick one.
const DefaultTarget = "STD"

const defaultPersona = `You are Cicerone, an expert museum guide. You answer visitors' questions about the collection, the artists, the rooms, and practical information, always in the language the visitor used.

Rules:
- Use the available tools to look facts up; never invent artworks, artists, dates, or prices.
- Keep answers short and conversational, like a guide speaking to a visitor.
- When a question is about opening hours, tickets, or services, search the documents.
- If you cannot find an answer, say so honestly.`

// ConfigurationError marks a pipeline that cannot be built from its
// tenant configuration: a bad driver, an unreadable dictionary, a
// misconfigured model provider. The HTTP layer reports it under its
// own error code so operators can tell it from runtime failures.
type ConfigurationError struct {
	TenantID string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline: tenant %s: %v", e.TenantID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(tenantID, format string, args ...any) error {
	return &ConfigurationError{TenantID: tenantID, Err: fmt.Errorf(format, args...)}
}

// Deps carries the process-wide resources shared by every pipeline.
type Deps struct {
	// Sessions is the shared conversation store.
	Sessions session.Store

	// Meter records usage and enforces quotas.
	Meter *metering.Store

	// RateLimiter gates outbound model calls across all tenants.
	RateLimiter *llm.RateLimiter

	Logger *zap.Logger
}

// Answer is one answered question, ready for the HTTP surface.
type Answer struct {
	agent.Reply
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// Pipeline is one tenant's assembled stack.
type Pipeline struct {
	tenant *tenant.Tenant
	db     *sql.DB
	docidx *docindex.Index
	agent  *agent.Agent
	meter  *metering.Store
	logger *zap.Logger
}

// Build assembles the pipeline for a tenant: it opens the catalogue
// database, reflects the schema, indexes the documents, and wires the
// tool set and model provider into an agent.
func Build(ctx context.Context, t *tenant.Tenant, deps Deps) (*Pipeline, error) {
	db, err := openDatabase(t)
	if err != nil {
		return nil, err
	}
	p, err := assemble(ctx, t, db, deps)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func openDatabase(t *tenant.Tenant) (*sql.DB, error) {
	switch t.Database.Driver {
	case "postgres", "mysql":
	default:
		return nil, configErr(t.ID, "unknown database driver %q", t.Database.Driver)
	}
	db, err := sql.Open(t.Database.Driver, t.Database.DSN)
	if err != nil {
		return nil, configErr(t.ID, "opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// assemble builds the pipeline over an already opened database. Split
// from Build so tests can inject a mocked connection.
func assemble(ctx context.Context, t *tenant.Tenant, db *sql.DB, deps Deps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Logger()
	}
	logger = logger.With(zap.String("tenant", t.ID))

	dialect, err := catalog.DialectForDriver(t.Database.Driver)
	if err != nil {
		return nil, configErr(t.ID, "%w", err)
	}
	dict, err := catalog.LoadDictionary(t.Database.DictionaryPath)
	if err != nil {
		return nil, configErr(t.ID, "%w", err)
	}
	snapshot, err := catalog.Build(ctx, db, dialect, t.Database.Schema, dict, t.Database.AllowedTables, logger)
	if err != nil {
		return nil, configErr(t.ID, "%w", err)
	}
	snapshot.EnrichSamples(ctx, db, t.Database.SiteID)

	registry := tool.NewRegistry()
	museum.RegisterCatalogueTools(registry, broker.New(db, dialect, t.Database.Schema, logger))

	sqlTool := museum.NewSQLTool(db, snapshot, logger)
	sqlTool.OnRejection = func(rule string) {
		guardrailRejections.WithLabelValues(t.ID, rule).Inc()
	}
	registry.Register(sqlTool)

	docidx, err := buildDocIndex(t, logger)
	if err != nil {
		return nil, err
	}
	if docidx != nil {
		registry.Register(museum.NewDocSearchTool(docidx))
	}

	provider, err := newProvider(t, deps)
	if err != nil {
		if docidx != nil {
			docidx.Close()
		}
		return nil, err
	}

	ag := agent.New(provider, registry, tool.NewExecutor(registry, logger), deps.Sessions,
		agent.Config{SystemPrompt: buildSystemPrompt(t, snapshot)}, logger)

	pipelineBuilds.WithLabelValues(t.ID).Inc()
	logger.Info("pipeline built",
		zap.String("config_version", t.ConfigVersion),
		zap.String("provider", t.LLM.Provider),
		zap.Int("tools", registry.Count()))

	return &Pipeline{
		tenant: t,
		db:     db,
		docidx: docidx,
		agent:  ag,
		meter:  deps.Meter,
		logger: logger,
	}, nil
}

// buildDocIndex returns nil when the tenant has no documents.
func buildDocIndex(t *tenant.Tenant, logger *zap.Logger) (*docindex.Index, error) {
	if t.Documents.SourceDir == "" {
		return nil, nil
	}

	var (
		idx *docindex.Index
		err error
	)
	if t.Documents.IndexPath != "" {
		idx, err = docindex.Open(t.Documents.IndexPath, logger)
	} else {
		idx, err = docindex.NewMemory(logger)
	}
	if err != nil {
		return nil, configErr(t.ID, "opening document index: %w", err)
	}
	if err := idx.BuildFromDir(t.Documents.SourceDir); err != nil {
		idx.Close()
		return nil, configErr(t.ID, "indexing documents: %w", err)
	}
	return idx, nil
}

func newProvider(t *tenant.Tenant, deps Deps) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)
	switch t.LLM.Provider {
	case "anthropic":
		provider, err = anthropic.New(anthropic.Config{
			APIKey:      t.LLM.APIKey,
			Model:       t.LLM.Model,
			RateLimiter: deps.RateLimiter,
			Logger:      deps.Logger,
		})
	case "openai":
		provider, err = openai.New(openai.Config{
			APIKey:      t.LLM.APIKey,
			Model:       t.LLM.Model,
			RateLimiter: deps.RateLimiter,
			Logger:      deps.Logger,
		})
	default:
		return nil, configErr(t.ID, "unknown llm provider %q", t.LLM.Provider)
	}
	if err != nil {
		return nil, configErr(t.ID, "%w", err)
	}
	return provider, nil
}

// primaryLanguage is the tenant's configured language, falling back to
// the catalogue default for unset or unsupported codes.
func primaryLanguage(t *tenant.Tenant) string {
	if language.Supported(t.Language) {
		return t.Language
	}
	return language.Default
}

// buildSystemPrompt joins the tenant persona with the reflected schema
// context. The schema descriptions use the museum's own language; the
// model translates for the visitor.
func buildSystemPrompt(t *tenant.Tenant, snapshot *catalog.Snapshot) string {
	persona := t.Persona
	if persona == "" {
		persona = defaultPersona
	}

	var b strings.Builder
	b.WriteString(persona)
	if t.Name != "" {
		fmt.Fprintf(&b, "\n\nYou are guiding visitors of %s.", t.Name)
	}
	if schema := snapshot.PromptContext(primaryLanguage(t)); schema != "" {
		b.WriteString("\n\n")
		b.WriteString(schema)
	}
	return b.String()
}

// Ask answers one visitor question. The quota is checked before any
// model call so an over-quota tenant spends nothing.
func (p *Pipeline) Ask(ctx context.Context, sessionID, target, question string) (*Answer, error) {
	return p.ask(ctx, sessionID, target, question, nil)
}

// AskStream is Ask with text deltas forwarded to tokenCallback.
func (p *Pipeline) AskStream(ctx context.Context, sessionID, target, question string, tokenCallback llm.TokenCallback) (*Answer, error) {
	return p.ask(ctx, sessionID, target, question, tokenCallback)
}

func (p *Pipeline) ask(ctx context.Context, sessionID, target, question string, tokenCallback llm.TokenCallback) (*Answer, error) {
	if err := p.meter.CheckLimit(ctx, p.tenant.ID, p.tenant.Limits.MaxQueriesPerMonth); err != nil {
		return nil, err
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if target == "" {
		target = DefaultTarget
	}
	scope := session.Scope{
		TenantID: p.tenant.ID,
		SiteID:   p.tenant.Database.SiteID,
		Target:   target,
		Language: language.Detect(question, primaryLanguage(p.tenant)),
	}

	var (
		reply *agent.Reply
		err   error
	)
	if tokenCallback != nil {
		reply, err = p.agent.ChatStream(ctx, scope, sessionID, question, tokenCallback)
	} else {
		reply, err = p.agent.Chat(ctx, scope, sessionID, question)
	}
	if err != nil {
		return nil, err
	}

	chatsTotal.WithLabelValues(p.tenant.ID, string(reply.Source)).Inc()
	p.record(ctx, sessionID, question, reply)

	return &Answer{
		Reply:     *reply,
		Language:  scope.Language,
		SessionID: sessionID,
	}, nil
}

// record writes the usage row. Metering failures are logged, never
// surfaced: the visitor already has the answer.
func (p *Pipeline) record(ctx context.Context, sessionID, question string, reply *agent.Reply) {
	err := p.meter.Record(ctx, metering.Record{
		TenantID:       p.tenant.ID,
		SessionID:      sessionID,
		QuestionTokens: metering.EstimateTokens(question),
		AnswerTokens:   metering.EstimateTokens(reply.Answer),
		InputTokens:    reply.Usage.InputTokens,
		OutputTokens:   reply.Usage.OutputTokens,
		CostUSD:        reply.Usage.CostUSD,
		Source:         string(reply.Source),
	})
	if err != nil {
		p.logger.Warn("recording usage failed", zap.Error(err))
	}
}

// Tenant returns the configuration this pipeline was built from.
func (p *Pipeline) Tenant() *tenant.Tenant { return p.tenant }

// Close releases the database and document index.
func (p *Pipeline) Close() error {
	if p.docidx != nil {
		if err := p.docidx.Close(); err != nil {
			p.logger.Warn("closing document index failed", zap.Error(err))
		}
	}
	return p.db.Close()
}
