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

// Package metering records per-tenant usage in a local SQLite database
// and enforces monthly query quotas.
package metering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/noesis-labs/cicerone/internal/log"
)

// ErrUsageLimitExceeded is returned when a tenant has spent its
// monthly query quota.
var ErrUsageLimitExceeded = errors.New("metering: monthly usage limit exceeded")

const schema = `
CREATE TABLE IF NOT EXISTS usage_record (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	question_tokens INTEGER NOT NULL DEFAULT 0,
	answer_tokens   INTEGER NOT NULL DEFAULT 0,
	input_tokens    INTEGER NOT NULL DEFAULT 0,
	output_tokens   INTEGER NOT NULL DEFAULT 0,
	cost_usd        REAL NOT NULL DEFAULT 0,
	source          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_tenant_created
	ON usage_record (tenant_id, created_at);
`

// Record is one answered question.
type Record struct {
	TenantID       string
	SessionID      string
	QuestionTokens int
	AnswerTokens   int
	InputTokens    int
	OutputTokens   int
	CostUSD        float64
	Source         string
	CreatedAt      time.Time
}

// Summary aggregates a tenant's usage for one calendar month.
type Summary struct {
	TenantID     string  `json:"tenant_id"`
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	Queries      int     `json:"queries"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Store persists usage records.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the metering database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Logger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metering: opening %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes itself; one connection
	// avoids database-is-locked churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metering: applying schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one usage record. An unset CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO usage_record
	(id, tenant_id, session_id, question_tokens, answer_tokens,
	 input_tokens, output_tokens, cost_usd, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.TenantID, rec.SessionID,
		rec.QuestionTokens, rec.AnswerTokens,
		rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.Source, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("metering: recording usage: %w", err)
	}
	return nil
}

// CurrentMonthCount returns the tenant's query count for the current
// calendar month (UTC).
func (s *Store) CurrentMonthCount(ctx context.Context, tenantID string) (int, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM usage_record
WHERE tenant_id = ? AND created_at >= ?`, tenantID, start).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("metering: counting usage: %w", err)
	}
	return count, nil
}

// CheckLimit returns ErrUsageLimitExceeded when the tenant has used up
// its monthly quota. A non-positive limit means unlimited.
func (s *Store) CheckLimit(ctx context.Context, tenantID string, limit int) error {
	if limit <= 0 {
		return nil
	}
	count, err := s.CurrentMonthCount(ctx, tenantID)
	if err != nil {
		return err
	}
	if count >= limit {
		s.logger.Warn("tenant over monthly quota",
			zap.String("tenant", tenantID),
			zap.Int("count", count),
			zap.Int("limit", limit))
		return ErrUsageLimitExceeded
	}
	return nil
}

// MonthlySummary aggregates one tenant's usage for the given month.
func (s *Store) MonthlySummary(ctx context.Context, tenantID string, year int, month time.Month) (*Summary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	summary := &Summary{TenantID: tenantID, Year: year, Month: int(month)}
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COALESCE(SUM(cost_usd), 0)
FROM usage_record
WHERE tenant_id = ? AND created_at >= ? AND created_at < ?`,
		tenantID, start, end).
		Scan(&summary.Queries, &summary.InputTokens, &summary.OutputTokens, &summary.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("metering: summarizing usage: %w", err)
	}
	return summary, nil
}
