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

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Column is one reflected column.
type Column struct {
	Name     string
	DataType string
}

// TableInfo pairs a dictionary entry with the table's live columns.
type TableInfo struct {
	Name    string
	Entry   TableEntry
	Columns []Column
}

// Snapshot is the immutable result of a catalog build. All reads are
// safe for concurrent use; rebuilding produces a new Snapshot.
type Snapshot struct {
	dialect Dialect
	schema  string
	tables  map[string]*TableInfo
	order   []string

	sampleRooms  []string
	sampleTitles []string
	sampleSites  []string
}

// Build reflects the whitelisted dictionary tables against the live
// database and returns the snapshot. The allowed set is the
// intersection of the dictionary and the whitelist (an empty whitelist
// admits every dictionary table). A table whose reflection fails is
// logged and dropped; an empty dictionary yields an empty snapshot, so
// a misconfigured tenant can query nothing rather than everything.
func Build(ctx context.Context, db *sql.DB, dialect Dialect, schema string, dict *Dictionary, whitelist []string, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dict == nil {
		dict = &Dictionary{Tables: map[string]TableEntry{}}
	}

	allowed := func(string) bool { return true }
	if len(whitelist) > 0 {
		set := make(map[string]struct{}, len(whitelist))
		for _, t := range whitelist {
			set[strings.ToLower(t)] = struct{}{}
		}
		allowed = func(name string) bool {
			_, ok := set[name]
			return ok
		}
	}

	snap := &Snapshot{
		dialect: dialect,
		schema:  schema,
		tables:  make(map[string]*TableInfo),
	}

	names := make([]string, 0, len(dict.Tables))
	for name := range dict.Tables {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)

	for _, name := range names {
		if !allowed(name) {
			continue
		}
		cols, err := reflectColumns(ctx, db, dialect, schema, name)
		if err != nil {
			logger.Warn("catalog: table reflection failed, dropping table",
				zap.String("table", name), zap.Error(err))
			continue
		}
		if len(cols) == 0 {
			logger.Warn("catalog: table has no columns in schema, dropping table",
				zap.String("table", name), zap.String("schema", schema))
			continue
		}
		snap.tables[name] = &TableInfo{Name: name, Entry: dict.Tables[name], Columns: cols}
		snap.order = append(snap.order, name)
	}

	logger.Info("catalog built",
		zap.String("schema", schema),
		zap.Int("tables", len(snap.order)))
	return snap, nil
}

func reflectColumns(ctx context.Context, db *sql.DB, dialect Dialect, schema, table string) ([]Column, error) {
	query := fmt.Sprintf(`SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, dialect.Placeholder(1), dialect.Placeholder(2))

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("reflect %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, fmt.Errorf("reflect %s.%s: %w", schema, table, err)
		}
		c.Name = strings.ToLower(c.Name)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reflect %s.%s: %w", schema, table, err)
	}
	return cols, nil
}

// Dialect returns the snapshot's database dialect.
func (s *Snapshot) Dialect() Dialect { return s.dialect }

// Schema returns the reflected schema name.
func (s *Snapshot) Schema() string { return s.schema }

// AllowedTables returns the queryable table names, sorted.
func (s *Snapshot) AllowedTables() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Describe returns a table's dictionary entry and live columns.
func (s *Snapshot) Describe(table string) (*TableInfo, bool) {
	info, ok := s.tables[strings.ToLower(table)]
	return info, ok
}

// ScopedTables maps each site-partitioned table to its scope column.
func (s *Snapshot) ScopedTables() map[string]string {
	out := make(map[string]string)
	for name, info := range s.tables {
		if info.Entry.SiteScoped {
			col := info.Entry.ScopeColumn
			if col == "" {
				col = DefaultScopeColumn
			}
			out[name] = col
		}
	}
	return out
}

// EnrichSamples harvests a handful of live values (room names, artwork
// titles, site names) for the prompt context, so the model can match
// visitor phrasing against real data. Sampling failures are ignored:
// samples improve answers but gate nothing.
func (s *Snapshot) EnrichSamples(ctx context.Context, db *sql.DB, siteID int) {
	if _, ok := s.tables["room"]; ok {
		s.sampleRooms = sampleColumn(ctx, db, s.dialect, s.qualify("room"), "roomname", siteID, 25)
	}
	if _, ok := s.tables["artistwork"]; ok {
		s.sampleTitles = sampleColumn(ctx, db, s.dialect, s.qualify("artistwork"), "artistworktitle", siteID, 15)
	}
	if _, ok := s.tables["site"]; ok {
		s.sampleSites = sampleColumn(ctx, db, s.dialect, s.qualify("site"), "sitename", 0, 5)
	}
}

func (s *Snapshot) qualify(table string) string {
	if s.schema == "" {
		return table
	}
	return s.schema + "." + table
}

func sampleColumn(ctx context.Context, db *sql.DB, dialect Dialect, table, column string, siteID, limit int) []string {
	var query string
	var args []any
	if siteID > 0 {
		query = fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE siteid = %s ORDER BY %s LIMIT %d",
			column, table, dialect.Placeholder(1), column, limit)
		args = append(args, siteID)
	} else {
		query = fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s LIMIT %d",
			column, table, column, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return out
		}
		if v.Valid && v.String != "" {
			out = append(out, v.String)
		}
	}
	return out
}

// PromptContext renders the snapshot as the schema section of the
// system prompt. lang selects which dictionary description to use,
// falling back to Italian then to any available language.
func (s *Snapshot) PromptContext(lang string) string {
	var b strings.Builder
	b.WriteString("=== DATABASE SCHEMA ===\n")
	for _, name := range s.order {
		info := s.tables[name]
		b.WriteString("Table ")
		b.WriteString(name)
		if info.Entry.SiteScoped {
			col := info.Entry.ScopeColumn
			if col == "" {
				col = DefaultScopeColumn
			}
			b.WriteString(" (site scoped: every query MUST filter on ")
			b.WriteString(col)
			b.WriteString(")")
		}
		if desc := pickDescription(info.Entry.Description, lang); desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		b.WriteString("\n  columns: ")
		for i, col := range info.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col.Name)
			b.WriteString(" (")
			b.WriteString(col.DataType)
			b.WriteString(")")
			if entry, ok := info.Entry.Columns[col.Name]; ok && len(entry.Labels) > 0 {
				b.WriteString(" [")
				b.WriteString(strings.Join(entry.Labels, ", "))
				b.WriteString("]")
			}
		}
		b.WriteString("\n")
	}
	writeSamples(&b, "Known room names", s.sampleRooms)
	writeSamples(&b, "Sample artwork titles", s.sampleTitles)
	writeSamples(&b, "Site names", s.sampleSites)
	return b.String()
}

func writeSamples(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(strings.Join(values, "; "))
	b.WriteString("\n")
}

func pickDescription(desc map[string]string, lang string) string {
	if len(desc) == 0 {
		return ""
	}
	if d, ok := desc[lang]; ok {
		return d
	}
	if d, ok := desc["it"]; ok {
		return d
	}
	for _, d := range desc {
		return d
	}
	return ""
}
