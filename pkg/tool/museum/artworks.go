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

// SearchArtworksTool finds artworks by title, artist, category, room,
// technique, or free text.
type SearchArtworksTool struct {
	broker *broker.Broker
}

func (t *SearchArtworksTool) Name() string { return "search_artworks" }

func (t *SearchArtworksTool) Description() string {
	return "Search the museum catalogue for artworks. All filters are optional and combine. " +
		"Returns up to 50 matches with artwork_id, title, artist, category, room, and technique. " +
		"Use this first to find an artwork_id, then call get_artwork_details for the full description."
}

func (t *SearchArtworksTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("artwork search filters", map[string]*tool.JSONSchema{
		"title":           tool.NewStringSchema("artwork title or part of it"),
		"artist_name":     tool.NewStringSchema("artist name or part of it"),
		"artist_category": tool.NewStringSchema("artist category, e.g. sculptors or painters"),
		"room_name":       tool.NewStringSchema("room name to search within"),
		"technique":       tool.NewStringSchema("technique, e.g. bronze, oil, plaster, terracotta, marble"),
		"query":           tool.NewStringSchema("free text matched against title, artist, room, and technique"),
	}, nil)
}

func (t *SearchArtworksTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	filter := broker.ArtworkFilter{
		Title:          tool.StringParam(params, "title"),
		ArtistName:     tool.StringParam(params, "artist_name"),
		ArtistCategory: tool.StringParam(params, "artist_category"),
		RoomName:       tool.StringParam(params, "room_name"),
		Technique:      tool.StringParam(params, "technique"),
		GeneralQuery:   tool.StringParam(params, "query"),
	}

	artworks, err := t.broker.SearchArtworks(ctx, scope.SiteID, filter)
	if err != nil {
		return queryFailed(), nil
	}
	if len(artworks) == 0 {
		return notFound("no artworks matched the given filters",
			"retry with fewer or broader filters, or use the free text query"), nil
	}
	return sqlResult(artworks), nil
}

// ArtworkDetailsTool fetches one artwork's full description.
type ArtworkDetailsTool struct {
	broker *broker.Broker
}

func (t *ArtworkDetailsTool) Name() string { return "get_artwork_details" }

func (t *ArtworkDetailsTool) Description() string {
	return "Fetch the full description of one artwork by its artwork_id, including nearby works " +
		"in the same room. The description is tailored to the visitor's audience and language " +
		"when a tailored text exists."
}

func (t *ArtworkDetailsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("artwork detail lookup", map[string]*tool.JSONSchema{
		"artwork_id": tool.NewNumberSchema("the artwork_id returned by search_artworks"),
	}, []string{"artwork_id"})
}

func (t *ArtworkDetailsTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	artworkID, ok := tool.IntParam(params, "artwork_id")
	if !ok {
		return missingParam("artwork_id"), nil
	}

	detail, err := t.broker.GetArtworkDetails(ctx, scope.SiteID, artworkID, scope.Language, scope.Target)
	if err != nil {
		return queryFailed(), nil
	}
	if detail == nil {
		return notFound("no artwork with that id in this museum",
			"use search_artworks to find the correct artwork_id"), nil
	}

	result := sqlResult(detail)
	result.Focus = &session.Focus{Kind: session.FocusArtwork, ID: detail.ID, Label: detail.Title}
	return result, nil
}

// InventoryLookupTool finds an artwork by its inventory number.
type InventoryLookupTool struct {
	broker *broker.Broker
}

func (t *InventoryLookupTool) Name() string { return "search_by_inventory" }

func (t *InventoryLookupTool) Description() string {
	return "Find an artwork by its inventory number, as printed on the exhibit label."
}

func (t *InventoryLookupTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("inventory number lookup", map[string]*tool.JSONSchema{
		"inventory_number": tool.NewStringSchema("the inventory number, exact or partial"),
	}, []string{"inventory_number"})
}

func (t *InventoryLookupTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	number := tool.StringParam(params, "inventory_number")
	if number == "" {
		return missingParam("inventory_number"), nil
	}

	artworks, err := t.broker.SearchByInventory(ctx, scope.SiteID, number)
	if err != nil {
		return queryFailed(), nil
	}
	if len(artworks) == 0 {
		return notFound("no artwork with that inventory number",
			"check the number on the exhibit label, or search by title instead"), nil
	}
	return sqlResult(artworks), nil
}

// RoomArtworksTool lists artworks exhibited in one room.
type RoomArtworksTool struct {
	broker *broker.Broker
}

func (t *RoomArtworksTool) Name() string { return "list_artworks_in_room" }

func (t *RoomArtworksTool) Description() string {
	return "List a few artworks exhibited in a room, by room id. " +
		"Useful for suggesting what else to see nearby."
}

func (t *RoomArtworksTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("room artwork listing", map[string]*tool.JSONSchema{
		"room_id": tool.NewNumberSchema("the room id"),
	}, []string{"room_id"})
}

func (t *RoomArtworksTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	roomID, ok := tool.IntParam(params, "room_id")
	if !ok {
		return missingParam("room_id"), nil
	}

	artworks, err := t.broker.ListArtworksInRoom(ctx, scope.SiteID, roomID)
	if err != nil {
		return queryFailed(), nil
	}
	if len(artworks) == 0 {
		return notFound("no artworks recorded for that room",
			"use list_locations to see the museum's rooms"), nil
	}
	return sqlResult(artworks), nil
}

// ListCategoriesTool lists the artist categories present in the museum.
type ListCategoriesTool struct {
	broker *broker.Broker
}

func (t *ListCategoriesTool) Name() string { return "list_categories" }

func (t *ListCategoriesTool) Description() string {
	return "List the artist categories represented in this museum, e.g. sculptors and painters."
}

func (t *ListCategoriesTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("category listing, no parameters", nil, nil)
}

func (t *ListCategoriesTool) Execute(ctx context.Context, scope session.Scope, _ map[string]interface{}) (*tool.Result, error) {
	categories, err := t.broker.ListCategories(ctx, scope.SiteID)
	if err != nil {
		return queryFailed(), nil
	}
	return sqlResult(categories), nil
}

// ListTechniquesTool lists the techniques present in the museum.
type ListTechniquesTool struct {
	broker *broker.Broker
}

func (t *ListTechniquesTool) Name() string { return "list_techniques" }

func (t *ListTechniquesTool) Description() string {
	return "List the artistic techniques represented in this museum's collection."
}

func (t *ListTechniquesTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("technique listing, no parameters", nil, nil)
}

func (t *ListTechniquesTool) Execute(ctx context.Context, scope session.Scope, _ map[string]interface{}) (*tool.Result, error) {
	techniques, err := t.broker.ListTechniques(ctx, scope.SiteID)
	if err != nil {
		return queryFailed(), nil
	}
	return sqlResult(techniques), nil
}
