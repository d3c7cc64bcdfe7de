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

// Package session holds per-visitor conversation state: a rolling
// message window and the entity the conversation is currently focused
// on, keyed by an opaque session ID.
package session

import (
	"context"
	"time"
)

// Window is the maximum number of turns kept per session. Older turns
// are discarded oldest-first when a new turn is appended.
const Window = 10

// Role values for turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a session's history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Focus kinds.
const (
	FocusArtist  = "artist"
	FocusArtwork = "artwork"
)

// Focus records the entity most recently looked up in detail, so that
// follow-up questions ("where is it?", "who made it?") resolve without
// a new search. Each successful detail lookup overwrites the previous
// focus; there is no focus history.
type Focus struct {
	Kind  string `json:"kind"`
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Store is the session persistence contract. Implementations must
// serialize read-modify-write cycles per session key so that
// concurrent turns on the same session cannot lose appends.
type Store interface {
	// Turns returns the current history window for the session,
	// oldest first. A session that has never been written returns an
	// empty slice.
	Turns(ctx context.Context, sessionID string) ([]Turn, error)

	// AppendTurns appends turns to the session and trims the history
	// to the window size, discarding oldest-first.
	AppendTurns(ctx context.Context, sessionID string, turns ...Turn) error

	// Focus returns the session's current focus, if any.
	Focus(ctx context.Context, sessionID string) (Focus, bool, error)

	// SetFocus overwrites the session's focus.
	SetFocus(ctx context.Context, sessionID string, focus Focus) error

	// Clear removes all state for the session.
	Clear(ctx context.Context, sessionID string) error
}
