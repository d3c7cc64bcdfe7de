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

// Package museum provides the catalogue tools the agent can call:
// artwork and artist search, detail lookups, places, thematic routes,
// museum information, document search, and a guarded raw SQL escape
// hatch. Every tool receives the request scope explicitly and never
// keeps per-visitor state.
package museum

import (
	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// RegisterCatalogueTools registers all broker-backed tools.
func RegisterCatalogueTools(r *tool.Registry, b *broker.Broker) {
	r.Register(&SearchArtworksTool{broker: b})
	r.Register(&ArtworkDetailsTool{broker: b})
	r.Register(&InventoryLookupTool{broker: b})
	r.Register(&RoomArtworksTool{broker: b})
	r.Register(&ListCategoriesTool{broker: b})
	r.Register(&ListTechniquesTool{broker: b})
	r.Register(&SearchArtistsTool{broker: b})
	r.Register(&ArtistDetailsTool{broker: b})
	r.Register(&ListLocationsTool{broker: b})
	r.Register(&LocationDetailsTool{broker: b})
	r.Register(&ListPathwaysTool{broker: b})
	r.Register(&PathwayDetailsTool{broker: b})
	r.Register(&PathwayArtworksTool{broker: b})
	r.Register(&MuseumInfoTool{broker: b})
}

// queryFailed wraps a broker error as an observation for the model.
// The message stays generic: driver details never reach the
// conversation.
func queryFailed() *tool.Result {
	return &tool.Result{
		Success: false,
		Source:  tool.SourceSQL,
		Error: &tool.Error{
			Code:      "query_failed",
			Message:   "the catalogue query failed",
			Retryable: true,
		},
	}
}

// notFound builds a not-found observation with a next-step hint.
func notFound(message, suggestion string) *tool.Result {
	return &tool.Result{
		Success: false,
		Source:  tool.SourceSQL,
		Error: &tool.Error{
			Code:       "not_found",
			Message:    message,
			Suggestion: suggestion,
		},
	}
}

// missingParam flags a required parameter the model omitted or mistyped.
func missingParam(name string) *tool.Result {
	return &tool.Result{
		Success: false,
		Error: &tool.Error{
			Code:       "invalid_params",
			Message:    "missing or invalid parameter: " + name,
			Suggestion: "call the tool again with " + name + " set",
		},
	}
}

func sqlResult(data interface{}) *tool.Result {
	return &tool.Result{Success: true, Data: data, Source: tool.SourceSQL}
}
