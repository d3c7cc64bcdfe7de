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

// ListLocationsTool lists the museum's rooms and buildings.
type ListLocationsTool struct {
	broker *broker.Broker
}

func (t *ListLocationsTool) Name() string { return "list_locations" }

func (t *ListLocationsTool) Description() string {
	return "List the museum's rooms and buildings with their location_id. " +
		"Use get_location_details for a location's description."
}

func (t *ListLocationsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("location listing, no parameters", nil, nil)
}

func (t *ListLocationsTool) Execute(ctx context.Context, scope session.Scope, _ map[string]interface{}) (*tool.Result, error) {
	locations, err := t.broker.ListLocations(ctx, scope.SiteID)
	if err != nil {
		return queryFailed(), nil
	}
	return sqlResult(locations), nil
}

// LocationDetailsTool fetches one location's description.
type LocationDetailsTool struct {
	broker *broker.Broker
}

func (t *LocationDetailsTool) Name() string { return "get_location_details" }

func (t *LocationDetailsTool) Description() string {
	return "Fetch the description of one room or building by location_id."
}

func (t *LocationDetailsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("location detail lookup", map[string]*tool.JSONSchema{
		"location_id": tool.NewNumberSchema("the location_id returned by list_locations"),
	}, []string{"location_id"})
}

func (t *LocationDetailsTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	locationID, ok := tool.IntParam(params, "location_id")
	if !ok {
		return missingParam("location_id"), nil
	}

	detail, err := t.broker.GetLocationDetails(ctx, locationID, scope.Language)
	if err != nil {
		return queryFailed(), nil
	}
	if detail == nil {
		return notFound("no description for that location in the visitor's language",
			"use list_locations to verify the location_id"), nil
	}
	return sqlResult(detail), nil
}

// ListPathwaysTool lists the museum's thematic visit routes.
type ListPathwaysTool struct {
	broker *broker.Broker
}

func (t *ListPathwaysTool) Name() string { return "list_pathways" }

func (t *ListPathwaysTool) Description() string {
	return "List the museum's thematic visit routes. " +
		"Use get_pathway_artworks with a route name to list its stops in order."
}

func (t *ListPathwaysTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("pathway listing, no parameters", nil, nil)
}

func (t *ListPathwaysTool) Execute(ctx context.Context, scope session.Scope, _ map[string]interface{}) (*tool.Result, error) {
	pathways, err := t.broker.ListPathways(ctx, scope.SiteID)
	if err != nil {
		return queryFailed(), nil
	}
	if len(pathways) == 0 {
		return notFound("this museum has no thematic routes", ""), nil
	}
	return sqlResult(pathways), nil
}

// PathwayDetailsTool fetches one route's localized description.
type PathwayDetailsTool struct {
	broker *broker.Broker
}

func (t *PathwayDetailsTool) Name() string { return "get_pathway_details" }

func (t *PathwayDetailsTool) Description() string {
	return "Fetch the description of one thematic route by pathway_id."
}

func (t *PathwayDetailsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("pathway detail lookup", map[string]*tool.JSONSchema{
		"pathway_id": tool.NewNumberSchema("the pathway_id returned by list_pathways"),
	}, []string{"pathway_id"})
}

func (t *PathwayDetailsTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	pathwayID, ok := tool.IntParam(params, "pathway_id")
	if !ok {
		return missingParam("pathway_id"), nil
	}

	detail, err := t.broker.GetPathwayDetails(ctx, pathwayID, scope.Language)
	if err != nil {
		return queryFailed(), nil
	}
	if detail == nil {
		return notFound("no route with that id",
			"use list_pathways to find the correct pathway_id"), nil
	}
	return sqlResult(detail), nil
}

// PathwayArtworksTool lists a route's artworks in visit order.
type PathwayArtworksTool struct {
	broker *broker.Broker
}

func (t *PathwayArtworksTool) Name() string { return "get_pathway_artworks" }

func (t *PathwayArtworksTool) Description() string {
	return "List the artworks of a thematic route in visit order, matched by route name."
}

func (t *PathwayArtworksTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("pathway stop listing", map[string]*tool.JSONSchema{
		"pathway_name": tool.NewStringSchema("the route name, exact or partial"),
	}, []string{"pathway_name"})
}

func (t *PathwayArtworksTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*tool.Result, error) {
	name := tool.StringParam(params, "pathway_name")
	if name == "" {
		return missingParam("pathway_name"), nil
	}

	stops, err := t.broker.GetPathwayArtworks(ctx, scope.SiteID, name)
	if err != nil {
		return queryFailed(), nil
	}
	if len(stops) == 0 {
		return notFound("no route matched that name",
			"use list_pathways to see the available routes"), nil
	}
	return sqlResult(stops), nil
}
