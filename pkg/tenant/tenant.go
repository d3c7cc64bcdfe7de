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

// Package tenant defines per-museum configuration and its resolution.
// Each tenant maps one museum site to its database, model provider,
// documents, and quotas.
package tenant

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for unknown tenant IDs.
	ErrNotFound = errors.New("tenant: not found")
	// ErrInactive is returned for tenants that exist but are disabled.
	ErrInactive = errors.New("tenant: inactive")
)

// LLMConfig selects and configures the tenant's model provider.
type LLMConfig struct {
	// Provider is "anthropic" or "openai"
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key"`
}

// DatabaseConfig points at the tenant's museum catalogue.
type DatabaseConfig struct {
	// Driver is "postgres" or "mysql"
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	Schema string `json:"schema,omitempty"`

	// SiteID selects the tenant's site within the shared catalogue.
	SiteID int `json:"site_id"`

	// AllowedTables restricts the dictionary to a subset. Empty admits
	// every dictionary table.
	AllowedTables []string `json:"allowed_tables,omitempty"`

	// DictionaryPath points at the tenant's data dictionary JSON.
	DictionaryPath string `json:"dictionary_path"`
}

// DocumentsConfig points at the tenant's practical documents.
type DocumentsConfig struct {
	// SourceDir holds the .txt/.md files to index. Empty disables the
	// document search tool.
	SourceDir string `json:"source_dir,omitempty"`

	// IndexPath is where the built index lives. Empty keeps the index
	// in memory.
	IndexPath string `json:"index_path,omitempty"`
}

// Limits bound tenant consumption.
type Limits struct {
	// MaxQueriesPerMonth caps answered questions. Non-positive means
	// unlimited.
	MaxQueriesPerMonth int `json:"max_queries_per_month,omitempty"`
}

// Tenant is one museum's full configuration.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`

	// ConfigVersion changes whenever the configuration changes; the
	// pipeline cache keys on it so edits take effect without restarts.
	ConfigVersion string `json:"config_version"`

	// Persona is prepended to the system prompt, letting each museum
	// set the guide's voice. Empty uses the default persona.
	Persona string `json:"persona,omitempty"`

	// Language is the museum's primary language code. It is the reply
	// language when detection from the question is inconclusive. Empty
	// or unsupported codes fall back to Italian.
	Language string `json:"language,omitempty"`

	LLM       LLMConfig       `json:"llm"`
	Database  DatabaseConfig  `json:"database"`
	Documents DocumentsConfig `json:"documents"`
	Limits    Limits          `json:"limits"`
}

// Resolver looks tenants up by ID.
type Resolver interface {
	// Resolve returns the tenant, ErrNotFound, or ErrInactive.
	Resolve(ctx context.Context, id string) (*Tenant, error)

	// List returns every known tenant, active or not.
	List(ctx context.Context) ([]*Tenant, error)
}
