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

// Package broker is the typed query layer over a tenant's museum
// schema. Every public method corresponds to one visitor intent and
// runs a fixed, parameterized statement; the model never writes SQL
// through this path. Free text only ever reaches the database as bound
// LIKE patterns.
package broker

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/pkg/catalog"
)

// Result limits, matching the REST API this layer replaces.
const (
	searchLimit = 50
	roomLimit   = 5
)

// Broker executes domain queries against one tenant database.
type Broker struct {
	db      *sql.DB
	dialect catalog.Dialect
	schema  string
	logger  *zap.Logger
}

// New creates a broker over db. schema may be empty when the
// connection's default schema is correct.
func New(db *sql.DB, dialect catalog.Dialect, schema string, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{db: db, dialect: dialect, schema: schema, logger: logger}
}

// QueryExecutionError wraps a database failure with the operation that
// caused it. The raw driver error never reaches a visitor; it is kept
// for logs and for the agent's generic retry observation.
type QueryExecutionError struct {
	Op  string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("broker %s: query execution failed: %v", e.Op, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

func (b *Broker) execErr(op string, err error) error {
	b.logger.Error("broker query failed", zap.String("op", op), zap.Error(err))
	return &QueryExecutionError{Op: op, Err: err}
}

// table qualifies a table name with the configured schema.
func (b *Broker) table(name string) string {
	if b.schema == "" {
		return name
	}
	return b.schema + "." + name
}

// builder accumulates SQL text and bound arguments with
// dialect-correct placeholders.
type builder struct {
	sb      strings.Builder
	args    []any
	dialect catalog.Dialect
}

func (b *Broker) newBuilder() *builder {
	return &builder{dialect: b.dialect}
}

func (q *builder) write(s string) { q.sb.WriteString(s) }

// bind appends an argument and returns its placeholder.
func (q *builder) bind(v any) string {
	q.args = append(q.args, v)
	return q.dialect.Placeholder(len(q.args))
}

// like appends a case-insensitive partial-match condition on col.
func (q *builder) like(col, term string) {
	q.write("LOWER(" + col + ") LIKE " + q.bind(pattern(term)))
}

func (q *builder) sql() string { return q.sb.String() }

// pattern produces the lowercase %term% LIKE pattern.
func pattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

func nullStr(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}

func nullDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format("2006-01-02")
}
