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

// Package catalog builds the per-tenant schema snapshot the agent is
// allowed to see: a curated semantic dictionary intersected with live
// column reflection. Nothing outside the snapshot is ever named in a
// prompt or accepted by the SQL guardrail.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// ColumnEntry describes one column in the semantic dictionary.
type ColumnEntry struct {
	// Labels are human terms the model may see in questions that map
	// to this column ("titolo", "title", "inventario").
	Labels []string `json:"labels,omitempty"`
	// Description explains the column's meaning for the prompt.
	Description string `json:"description,omitempty"`
}

// TableEntry describes one table in the semantic dictionary.
type TableEntry struct {
	// Description is per-language ("it", "en", ...) prose about the
	// table's contents.
	Description map[string]string `json:"description"`
	// SiteScoped marks tables partitioned per museum site.
	SiteScoped bool `json:"site_scoped"`
	// ScopeColumn is the partition column for site-scoped tables
	// (defaults to "siteid").
	ScopeColumn string `json:"scope_column,omitempty"`
	// Columns maps column name to its semantic entry. Reflection keeps
	// a table's live columns even when absent here; the dictionary only
	// adds meaning.
	Columns map[string]ColumnEntry `json:"columns,omitempty"`
}

// Dictionary is the curated semantic layer for a deployment's museum
// schema. It is the source of truth for which tables may be queried.
type Dictionary struct {
	Tables map[string]TableEntry `json:"tables"`
}

// DefaultScopeColumn is assumed for site-scoped tables that do not
// name their partition column.
const DefaultScopeColumn = "siteid"

// LoadDictionary reads the semantic dictionary from a JSON file. A
// missing or unreadable dictionary is an error; callers that want the
// fail-closed empty catalog should build from an empty Dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic dictionary: %w", err)
	}
	return ParseDictionary(raw)
}

// ParseDictionary decodes dictionary JSON.
func ParseDictionary(raw []byte) (*Dictionary, error) {
	var dict Dictionary
	if err := json.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("parse semantic dictionary: %w", err)
	}
	if dict.Tables == nil {
		dict.Tables = map[string]TableEntry{}
	}
	for name, entry := range dict.Tables {
		if entry.SiteScoped && entry.ScopeColumn == "" {
			entry.ScopeColumn = DefaultScopeColumn
			dict.Tables[name] = entry
		}
	}
	return &dict, nil
}
