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

	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// SearchArtistsTool lists the museum's artists with optional filters.
type SearchArtistsTool struct {
	broker *broker.Broker
}

func (t *SearchArtistsTool) Name() string { return "search_artists" }

func (t *SearchArtistsTool) Description() string {
	return "List the museum's artists, optionally filtered by name or category. " +
		"Returns artist_id, name, and category. Use this first to find an artist_id, " +
		"then call get_artist_details for the biography."
}

func (t *SearchArtistsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("artist search filters", map[string]*tool.JSONSchema{
		"name":     tool.NewStringSchema("artist name or part of it"),
		"category": tool.NewStringSchema("artist category, e.g. sculptors or painters"),
	}, nil)
}

func (t *SearchArtistsTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	artists, err := t.broker.ListArtists(ctx, scope.SiteID,
		tool.StringParam(params, "name"),
		tool.StringParam(params, "category"),
		scope.Language)
	if err != nil {
		return queryFailed(), nil
	}
	if len(artists) == 0 {
		return notFound("no artists matched the given filters",
			"retry without filters to list every artist"), nil
	}
	return sqlResult(artists), nil
}

// ArtistDetailsTool fetches one artist's biography.
type ArtistDetailsTool struct {
	broker *broker.Broker
}

func (t *ArtistDetailsTool) Name() string { return "get_artist_details" }

func (t *ArtistDetailsTool) Description() string {
	return "Fetch one artist's biography and life dates by artist_id."
}

func (t *ArtistDetailsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("artist detail lookup", map[string]*tool.JSONSchema{
		"artist_id": tool.NewNumberSchema("the artist_id returned by search_artists"),
	}, []string{"artist_id"})
}

func (t *ArtistDetailsTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	artistID, ok := tool.IntParam(params, "artist_id")
	if !ok {
		return missingParam("artist_id"), nil
	}

	detail, err := t.broker.GetArtistDetails(ctx, artistID, scope.Language)
	if err != nil {
		return queryFailed(), nil
	}
	if detail == nil {
		return notFound("no artist with that id",
			"use search_artists to find the correct artist_id"), nil
	}

	result := sqlResult(detail)
	result.Focus = &session.Focus{Kind: session.FocusArtist, ID: detail.ID, Label: detail.Name}
	return result, nil
}
