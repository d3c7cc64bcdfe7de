// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package museum

import (
	"context"

	"github.com/noesis-labs/cicerone/pkg/docindex"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// defaultPassages is how many chunks a document search returns.
const defaultPassages = 3

// DocSearchTool retrieves passages from the museum's practical
// documents: opening hours, tickets, services, accessibility.
type DocSearchTool struct {
	searcher docindex.Searcher
}

// NewDocSearchTool wraps a document searcher as an agent tool.
func NewDocSearchTool(searcher docindex.Searcher) *DocSearchTool {
	return &DocSearchTool{searcher: searcher}
}

func (t *DocSearchTool) Name() string { return "search_documents" }

func (t *DocSearchTool) Description() string {
	return "Search the museum's practical documents for opening hours, ticket prices, " +
		"services, and accessibility information. Use this for visit logistics; " +
		"use the catalogue tools for artworks and artists."
}

func (t *DocSearchTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("document search", map[string]*tool.JSONSchema{
		"query": tool.NewStringSchema("what to look for, e.g. opening hours on Sunday"),
	}, []string{"query"})
}

func (t *DocSearchTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	query := tool.StringParam(params, "query")
	if query == "" {
		return missingParam("query"), nil
	}

	passages, err := t.searcher.Query(ctx, query, defaultPassages)
	if err != nil {
		return &tool.Result{
			Success: false,
			Source:  tool.SourceRAG,
			Error: &tool.Error{
				Code:      "search_failed",
				Message:   "the document search failed",
				Retryable: true,
			},
		}, nil
	}
	if len(passages) == 0 {
		return &tool.Result{
			Success: false,
			Source:  tool.SourceRAG,
			Error: &tool.Error{
				Code:       "not_found",
				Message:    "no document passage matched the query",
				Suggestion: "rephrase with different keywords, or say the information is not available",
			},
		}, nil
	}

	return &tool.Result{Success: true, Data: passages, Source: tool.SourceRAG}, nil
}

var _ tool.Tool = (*DocSearchTool)(nil)
