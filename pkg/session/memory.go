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

package session

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxSessions bounds the number of live sessions held in memory.
// Least-recently-touched sessions are evicted beyond this count.
const DefaultMaxSessions = 10000

type memorySession struct {
	mu       sync.Mutex
	turns    []Turn
	focus    Focus
	hasFocus bool
	elem     *list.Element
}

// MemoryStore is an in-process Store bounded by an LRU over session
// keys. Each session additionally serializes its own read-modify-write
// cycles on a per-session mutex.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*memorySession
	order       *list.List // front = most recently touched
	maxSessions int
}

// NewMemoryStore creates a bounded in-memory store. maxSessions <= 0
// uses DefaultMaxSessions.
func NewMemoryStore(maxSessions int) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemoryStore{
		sessions:    make(map[string]*memorySession),
		order:       list.New(),
		maxSessions: maxSessions,
	}
}

// touch fetches (creating if needed) the session and marks it most
// recently used, evicting the coldest session when over capacity.
func (s *MemoryStore) touch(sessionID string) *memorySession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		s.order.MoveToFront(sess.elem)
		return sess
	}

	sess := &memorySession{}
	sess.elem = s.order.PushFront(sessionID)
	s.sessions[sessionID] = sess

	for len(s.sessions) > s.maxSessions {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		key := oldest.Value.(string)
		s.order.Remove(oldest)
		delete(s.sessions, key)
	}
	return sess
}

// Turns returns the session's history window, oldest first.
func (s *MemoryStore) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	sess := s.touch(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// AppendTurns appends turns and trims to the window size.
func (s *MemoryStore) AppendTurns(ctx context.Context, sessionID string, turns ...Turn) error {
	sess := s.touch(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turns...)
	if n := len(sess.turns); n > Window {
		sess.turns = append([]Turn(nil), sess.turns[n-Window:]...)
	}
	return nil
}

// Focus returns the session's current focus.
func (s *MemoryStore) Focus(ctx context.Context, sessionID string) (Focus, bool, error) {
	sess := s.touch(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.focus, sess.hasFocus, nil
}

// SetFocus overwrites the session's focus.
func (s *MemoryStore) SetFocus(ctx context.Context, sessionID string, focus Focus) error {
	sess := s.touch(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.focus = focus
	sess.hasFocus = true
	return nil
}

// Clear removes all state for the session.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		s.order.Remove(sess.elem)
		delete(s.sessions, sessionID)
	}
	return nil
}

// Len reports the number of live sessions. Used by tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
