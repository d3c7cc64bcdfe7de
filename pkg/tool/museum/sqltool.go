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
package museum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/catalog"
	"github.com/noesis-labs/cicerone/pkg/guardrail"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// maxSQLRows caps the rows returned to the model from a raw query.
const maxSQLRows = 50

// SQLTool lets the model run a SELECT it composed itself, for
// questions the fixed tools cannot answer. Every statement passes the
// guardrails before touching the database, and rejected statements
// come back as observations with a correction hint so the model can
// retry.
type SQLTool struct {
	db      *sql.DB
	catalog *catalog.Snapshot
	logger  *zap.Logger

	// OnRejection, when set, is called with the violated rule. The
	// pipeline uses it to feed the rejection counter.
	OnRejection func(rule string)
}

// NewSQLTool creates the raw SQL tool bound to a tenant's database and
// catalog snapshot.
func NewSQLTool(db *sql.DB, snapshot *catalog.Snapshot, logger *zap.Logger) *SQLTool {
	if logger == nil {
		logger = log.Logger()
	}
	return &SQLTool{db: db, catalog: snapshot, logger: logger}
}

func (t *SQLTool) Name() string { return "query_catalogue" }

func (t *SQLTool) Description() string {
	return "Run a read-only SQL SELECT against the museum catalogue for questions the other " +
		"tools cannot answer, such as counts, date ranges, or cross-table aggregates. " +
		"Only SELECT statements over the documented tables are allowed, and every site-scoped " +
		"table must be filtered by the current siteid. Prefer the dedicated tools when one fits."
}

func (t *SQLTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("raw catalogue query", map[string]*tool.JSONSchema{
		"sql": tool.NewStringSchema("a single SQL SELECT statement over the documented schema"),
	}, []string{"sql"})
}

func (t *SQLTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	statement := strings.TrimSpace(tool.StringParam(params, "sql"))
	if statement == "" {
		return missingParam("sql"), nil
	}

	if err := guardrail.Validate(statement, t.catalog.AllowedTables()); err != nil {
		var v *guardrail.Violation
		if errors.As(err, &v) {
			return t.rejected(statement, v, guardrail.CorrectionFor(statement, v, t.catalog.AllowedTables())), nil
		}
		return queryFailed(), nil
	}

	if v, correction := guardrail.CheckSiteScope(statement, t.catalog.ScopedTables(), scope.SiteID); v != nil {
		return t.rejected(statement, v, correction), nil
	}

	rows, err := t.db.QueryContext(ctx, statement)
	if err != nil {
		t.logger.Warn("raw catalogue query failed",
			zap.String("tenant", scope.TenantID),
			zap.Error(err))
		return &tool.Result{
			Success: false,
			Source:  tool.SourceSQL,
			Error: &tool.Error{
				Code:       "execution_failed",
				Message:    "the statement failed to execute",
				Retryable:  true,
				Suggestion: "check column names against the schema and simplify the query",
			},
		}, nil
	}
	defer rows.Close()

	records, err := readRows(rows)
	if err != nil {
		return queryFailed(), nil
	}
	if len(records) == 0 {
		return notFound("the query returned no rows",
			"broaden the filters or verify the values against the schema samples"), nil
	}

	return sqlResult(map[string]interface{}{
		"rows":  records,
		"count": len(records),
	}), nil
}

func (t *SQLTool) rejected(statement string, v *guardrail.Violation, correction *guardrail.Correction) *tool.Result {
	if t.OnRejection != nil {
		t.OnRejection(string(v.Rule))
	}
	t.logger.Warn("raw catalogue query rejected",
		zap.String("rule", string(v.Rule)),
		zap.String("token", v.Token))

	e := &tool.Error{
		Code:    string(v.Rule),
		Message: v.Error(),
	}
	if correction != nil {
		e.Suggestion = correction.Suggestion
		e.Retryable = true
	}
	return &tool.Result{Success: false, Source: tool.SourceSQL, Error: e}
}

// readRows materializes the result set using the driver's column
// types, so numerics stay numeric and byte slices become strings
// regardless of driver. Text values are cleaned of markup and
// duplicate rows are dropped.
func readRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var (
		records []map[string]interface{}
		seen    = make(map[string]struct{})
	)
	for rows.Next() && len(records) < maxSQLRows {
		values := make([]interface{}, len(columns))
		targets := make([]interface{}, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		var key strings.Builder
		for i, col := range columns {
			v := normalizeValue(values[i], types[i])
			record[col] = v
			key.WriteString(renderKey(v))
			key.WriteByte('\x1f')
		}
		if _, dup := seen[key.String()]; dup {
			continue
		}
		seen[key.String()] = struct{}{}
		records = append(records, record)
	}
	return records, rows.Err()
}

// normalizeValue converts driver values to JSON-friendly Go types.
// MySQL returns most columns as []byte; the declared database type
// decides whether those bytes are really numbers.
func normalizeValue(v interface{}, colType *sql.ColumnType) interface{} {
	switch value := v.(type) {
	case nil:
		return nil
	case time.Time:
		return value.Format("2006-01-02")
	case []byte:
		text := string(value)
		switch strings.ToUpper(colType.DatabaseTypeName()) {
		case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "INT4", "INT8", "INT2":
			if n, err := strconv.ParseInt(text, 10, 64); err == nil {
				return n
			}
		case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				return f
			}
		}
		return broker.CleanText(text)
	case string:
		return broker.CleanText(value)
	default:
		return value
	}
}

func renderKey(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}

var _ tool.Tool = (*SQLTool)(nil)
