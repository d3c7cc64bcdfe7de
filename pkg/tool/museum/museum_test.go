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
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/catalog"
	"github.com/noesis-labs/cicerone/pkg/docindex"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

var testScope = session.Scope{TenantID: "galleria", SiteID: 3, Target: "STD", Language: "it"}

func newTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRegisterCatalogueTools(t *testing.T) {
	db, _ := newTestDB(t)
	r := tool.NewRegistry()
	RegisterCatalogueTools(r, broker.New(db, catalog.Postgres, "", nil))

	for _, name := range []string{
		"search_artworks", "get_artwork_details", "search_by_inventory",
		"list_artworks_in_room", "list_categories", "list_techniques",
		"search_artists", "get_artist_details",
		"list_locations", "get_location_details",
		"list_pathways", "get_pathway_details", "get_pathway_artworks",
		"get_museum_info",
	} {
		if !r.IsRegistered(name) {
			t.Fatalf("tool %s not registered", name)
		}
	}
}

func TestSearchArtworksToolScopesQuery(t *testing.T) {
	db, mock := newTestDB(t)
	b := broker.New(db, catalog.Postgres, "", nil)
	searchTool := &SearchArtworksTool{broker: b}

	mock.ExpectQuery(regexp.QuoteMeta("FROM artistwork aw")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{
			"artistworkid", "artistworktitle", "artistname",
			"artistcategorydescription", "roomname", "techniquedescription",
		}).AddRow(1, "Amore e Psiche", "Antonio Canova", "SCULTORI", "Sala I", "Marmo"))

	result, err := searchTool.Execute(context.Background(), testScope, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.Source != tool.SourceSQL {
		t.Fatalf("result = %+v", result)
	}
	works, ok := result.Data.([]broker.ArtworkSummary)
	if !ok || len(works) != 1 {
		t.Fatalf("Data = %#v", result.Data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchArtworksToolEmptyIsObservation(t *testing.T) {
	db, mock := newTestDB(t)
	searchTool := &SearchArtworksTool{broker: broker.New(db, catalog.Postgres, "", nil)}

	mock.ExpectQuery(regexp.QuoteMeta("FROM artistwork aw")).
		WithArgs(3, "%inesistente%", "%inesistente%").
		WillReturnRows(sqlmock.NewRows([]string{
			"artistworkid", "artistworktitle", "artistname",
			"artistcategorydescription", "roomname", "techniquedescription",
		}))

	result, err := searchTool.Execute(context.Background(), testScope,
		map[string]interface{}{"title": "inesistente"})
	if err != nil {
		t.Fatalf("empty results must be an observation, not an error: %v", err)
	}
	if result.Success || result.Error == nil || result.Error.Code != "not_found" {
		t.Fatalf("result = %+v", result)
	}
	if result.Error.Suggestion == "" {
		t.Fatal("not_found observation should carry a suggestion")
	}
}

func TestArtistDetailsToolSetsFocus(t *testing.T) {
	db, mock := newTestDB(t)
	detailsTool := &ArtistDetailsTool{broker: broker.New(db, catalog.Postgres, "", nil)}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.artistid =")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{
			"artistid", "artistname", "birthplace", "deathplace",
			"birthdate", "deathdate", "biography", "artistcategorydescription",
		}).AddRow(7, "Antonio Canova", "Possagno", "Venezia", nil, nil, "Scultore", "SCULTORI"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM artistdescription")).
		WithArgs(7, "it").
		WillReturnRows(sqlmock.NewRows([]string{"artistdescription", "birthdeathdescription"}).
			AddRow("Il massimo esponente del Neoclassicismo.", "1757-1822"))

	result, err := detailsTool.Execute(context.Background(), testScope,
		map[string]interface{}{"artist_id": float64(7)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Focus == nil || result.Focus.Kind != session.FocusArtist ||
		result.Focus.ID != 7 || result.Focus.Label != "Antonio Canova" {
		t.Fatalf("Focus = %+v", result.Focus)
	}
}

func TestArtworkDetailsToolMissingParam(t *testing.T) {
	db, _ := newTestDB(t)
	detailsTool := &ArtworkDetailsTool{broker: broker.New(db, catalog.Postgres, "", nil)}

	result, err := detailsTool.Execute(context.Background(), testScope, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success || result.Error.Code != "invalid_params" {
		t.Fatalf("result = %+v", result)
	}
}

// sqlToolFixture builds a SQLTool over a reflected two-table snapshot.
func sqlToolFixture(t *testing.T) (*SQLTool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTestDB(t)

	dict := &catalog.Dictionary{Tables: map[string]catalog.TableEntry{
		"artistwork": {SiteScoped: true},
		"technique":  {},
	}}
	for _, table := range []string{"artistwork", "technique"} {
		rows := sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("siteid", "integer").
			AddRow("artistworktitle", "text")
		mock.ExpectQuery("information_schema.columns").
			WithArgs("guide", table).
			WillReturnRows(rows)
	}

	snap, err := catalog.Build(context.Background(), db, catalog.Postgres, "guide", dict, nil, nil)
	if err != nil {
		t.Fatalf("catalog.Build() error = %v", err)
	}
	return NewSQLTool(db, snap, nil), mock
}

func TestSQLToolRejectsForbiddenStatement(t *testing.T) {
	sqlTool, _ := sqlToolFixture(t)

	var rejectedRule string
	sqlTool.OnRejection = func(rule string) { rejectedRule = rule }

	result, err := sqlTool.Execute(context.Background(), testScope,
		map[string]interface{}{"sql": "SELECT 1; DROP TABLE artistwork"})
	if err != nil {
		t.Fatalf("rejections must be observations, not errors: %v", err)
	}
	if result.Success || result.Error.Code != "forbidden_command" {
		t.Fatalf("result = %+v", result)
	}
	if rejectedRule != "forbidden_command" {
		t.Fatalf("OnRejection rule = %q", rejectedRule)
	}
}

func TestSQLToolRejectsUnauthorizedTable(t *testing.T) {
	sqlTool, _ := sqlToolFixture(t)

	result, err := sqlTool.Execute(context.Background(), testScope,
		map[string]interface{}{"sql": "SELECT * FROM users"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Error.Code != "unauthorized_table" {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Error.Suggestion, "artistwork") {
		t.Fatalf("suggestion should name the whitelist, got %q", result.Error.Suggestion)
	}
}

func TestSQLToolRequiresSiteFilter(t *testing.T) {
	sqlTool, _ := sqlToolFixture(t)

	result, err := sqlTool.Execute(context.Background(), testScope,
		map[string]interface{}{"sql": "SELECT COUNT(*) FROM artistwork"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Error.Code != "missing_site_filter" {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Error.Suggestion, "siteid = 3") {
		t.Fatalf("suggestion should name the current site filter, got %q", result.Error.Suggestion)
	}
}

func TestSQLToolExecutesAndDeduplicates(t *testing.T) {
	sqlTool, mock := sqlToolFixture(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT artistworktitle FROM artistwork WHERE siteid = 3")).
		WillReturnRows(sqlmock.NewRows([]string{"artistworktitle"}).
			AddRow("<p>Amore e Psiche</p>").
			AddRow("<p>Amore e Psiche</p>").
			AddRow("Paolina Borghese"))

	result, err := sqlTool.Execute(context.Background(), testScope,
		map[string]interface{}{"sql": "SELECT artistworktitle FROM artistwork WHERE siteid = 3"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.Source != tool.SourceSQL {
		t.Fatalf("result = %+v", result)
	}

	data := result.Data.(map[string]interface{})
	records := data["rows"].([]map[string]interface{})
	if len(records) != 2 {
		t.Fatalf("rows = %+v, want duplicates dropped", records)
	}
	if records[0]["artistworktitle"] != "Amore e Psiche" {
		t.Fatalf("rows[0] = %+v, want markup cleaned", records[0])
	}
}

func TestSQLToolExecutionFailureIsObservation(t *testing.T) {
	sqlTool, mock := sqlToolFixture(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT nosuchcolumn FROM artistwork WHERE siteid = 3")).
		WillReturnError(sql.ErrConnDone)

	result, err := sqlTool.Execute(context.Background(), testScope,
		map[string]interface{}{"sql": "SELECT nosuchcolumn FROM artistwork WHERE siteid = 3"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Error.Code != "execution_failed" {
		t.Fatalf("result = %+v", result)
	}
	// driver details must not leak into the observation
	if strings.Contains(result.Error.Message, "sql:") {
		t.Fatalf("message leaks driver error: %q", result.Error.Message)
	}
}

func TestDocSearchTool(t *testing.T) {
	idx, err := docindex.NewMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	if err := idx.IndexDocument("orari.md", "Il museo è aperto dalle 9 alle 19."); err != nil {
		t.Fatal(err)
	}

	docTool := NewDocSearchTool(idx)
	result, err := docTool.Execute(context.Background(), testScope,
		map[string]interface{}{"query": "aperto"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.Source != tool.SourceRAG {
		t.Fatalf("result = %+v", result)
	}
	passages := result.Data.([]docindex.Passage)
	if len(passages) == 0 || passages[0].Source != "orari.md" {
		t.Fatalf("passages = %+v", passages)
	}

	miss, err := docTool.Execute(context.Background(), testScope,
		map[string]interface{}{"query": "zzzzzz"})
	if err != nil {
		t.Fatal(err)
	}
	if miss.Success || miss.Error.Code != "not_found" || miss.Source != tool.SourceRAG {
		t.Fatalf("miss = %+v", miss)
	}
}
