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
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

const reflectQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func testDictionary() *Dictionary {
	dict, err := ParseDictionary([]byte(`{
  "tables": {
    "artistwork": {
      "description": {"it": "Opere d'arte", "en": "Artworks"},
      "site_scoped": true,
      "columns": {
        "title": {"labels": ["titolo", "title"]}
      }
    },
    "technique": {
      "description": {"en": "Artistic techniques"}
    }
  }
}`))
	if err != nil {
		panic(err)
	}
	return dict
}

func expectReflect(mock sqlmock.Sqlmock, table string, cols ...string) {
	rows := sqlmock.NewRows([]string{"column_name", "data_type"})
	for _, c := range cols {
		rows.AddRow(c, "text")
	}
	mock.ExpectQuery(regexp.QuoteMeta(reflectQuery)).
		WithArgs("public", table).
		WillReturnRows(rows)
}

func TestBuildReflectsWhitelistedTables(t *testing.T) {
	db, mock := newSQLMock(t)
	expectReflect(mock, "artistwork", "artistworkid", "title", "siteid")
	expectReflect(mock, "technique", "techniqueid", "name")

	snap, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tables := snap.AllowedTables()
	if len(tables) != 2 || tables[0] != "artistwork" || tables[1] != "technique" {
		t.Fatalf("AllowedTables() = %v", tables)
	}
	info, ok := snap.Describe("artistwork")
	if !ok || len(info.Columns) != 3 {
		t.Fatalf("Describe(artistwork) = %+v, %v", info, ok)
	}
	scoped := snap.ScopedTables()
	if scoped["artistwork"] != "siteid" {
		t.Fatalf("ScopedTables() = %v, want artistwork -> siteid", scoped)
	}
	if _, ok := scoped["technique"]; ok {
		t.Fatal("technique should not be site scoped")
	}
	assertSQLMock(t, mock)
}

func TestBuildWhitelistIntersection(t *testing.T) {
	db, mock := newSQLMock(t)
	expectReflect(mock, "artistwork", "artistworkid", "title")

	snap, err := Build(context.Background(), db, Postgres, "public", testDictionary(), []string{"artistwork"}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := snap.AllowedTables(); len(got) != 1 || got[0] != "artistwork" {
		t.Fatalf("AllowedTables() = %v, want [artistwork]", got)
	}
	assertSQLMock(t, mock)
}

func TestBuildDropsFailingTable(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(reflectQuery)).
		WithArgs("public", "artistwork").
		WillReturnError(errors.New("connection reset"))
	expectReflect(mock, "technique", "techniqueid", "name")

	snap, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := snap.AllowedTables(); len(got) != 1 || got[0] != "technique" {
		t.Fatalf("AllowedTables() = %v, want only technique", got)
	}
	assertSQLMock(t, mock)
}

func TestBuildEmptyDictionaryFailsClosed(t *testing.T) {
	db, mock := newSQLMock(t)
	snap, err := Build(context.Background(), db, Postgres, "public", &Dictionary{}, nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(snap.AllowedTables()) != 0 {
		t.Fatalf("AllowedTables() = %v, want empty", snap.AllowedTables())
	}
	assertSQLMock(t, mock)
}

// Building twice against the same schema yields the same allowed set.
func TestBuildIdempotent(t *testing.T) {
	db, mock := newSQLMock(t)
	for i := 0; i < 2; i++ {
		expectReflect(mock, "artistwork", "artistworkid", "title", "siteid")
		expectReflect(mock, "technique", "techniqueid", "name")
	}

	first, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	a, b := first.AllowedTables(), second.AllowedTables()
	if len(a) != len(b) {
		t.Fatalf("allowed sets differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("allowed sets differ: %v vs %v", a, b)
		}
	}
	assertSQLMock(t, mock)
}

func TestPromptContext(t *testing.T) {
	db, mock := newSQLMock(t)
	expectReflect(mock, "artistwork", "title", "siteid")
	expectReflect(mock, "technique", "name")

	snap, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	prompt := snap.PromptContext("en")
	for _, want := range []string{
		"Table artistwork",
		"site scoped",
		"Artworks",
		"title (text) [titolo, title]",
		"Table technique",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("PromptContext() missing %q:\n%s", want, prompt)
		}
	}
	assertSQLMock(t, mock)
}

func TestEnrichSamples(t *testing.T) {
	db, mock := newSQLMock(t)
	expectReflect(mock, "artistwork", "title", "siteid")
	expectReflect(mock, "technique", "name")

	snap, err := Build(context.Background(), db, Postgres, "public", testDictionary(), nil, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT artistworktitle FROM public.artistwork WHERE siteid = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"artistworktitle"}).AddRow("Amore e Psiche").AddRow("Paolina Borghese"))

	snap.EnrichSamples(context.Background(), db, 3)
	prompt := snap.PromptContext("it")
	if !strings.Contains(prompt, "Amore e Psiche") {
		t.Fatalf("PromptContext() missing sampled title:\n%s", prompt)
	}
	assertSQLMock(t, mock)
}
