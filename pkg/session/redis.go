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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is how long an idle session survives in redis.
const DefaultSessionTTL = 2 * time.Hour

type redisRecord struct {
	Turns    []Turn `json:"turns"`
	Focus    Focus  `json:"focus"`
	HasFocus bool   `json:"has_focus"`
}

// lockStripes bounds the in-process lock table regardless of how many
// sessions pass through the store.
const lockStripes = 64

// RedisStore keeps session state as JSON blobs in redis under a TTL.
// Read-modify-write cycles for a given session are serialized in
// process on a striped lock; eviction is delegated to the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	locks [lockStripes]sync.Mutex
}

// NewRedisStore creates a redis-backed store. ttl <= 0 uses
// DefaultSessionTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cicerone:session:"
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) lock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*redisRecord, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &redisRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Corrupt record: start the session over rather than wedge it.
		return &redisRecord{}, nil
	}
	return &rec, nil
}

func (s *RedisStore) save(ctx context.Context, sessionID string, rec *redisRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// Turns returns the session's history window, oldest first.
func (s *RedisStore) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rec.Turns, nil
}

// AppendTurns appends turns and trims to the window size.
func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...Turn) error {
	l := s.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.Turns = append(rec.Turns, turns...)
	if n := len(rec.Turns); n > Window {
		rec.Turns = rec.Turns[n-Window:]
	}
	return s.save(ctx, sessionID, rec)
}

// Focus returns the session's current focus.
func (s *RedisStore) Focus(ctx context.Context, sessionID string) (Focus, bool, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return Focus{}, false, err
	}
	return rec.Focus, rec.HasFocus, nil
}

// SetFocus overwrites the session's focus.
func (s *RedisStore) SetFocus(ctx context.Context, sessionID string, focus Focus) error {
	l := s.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.Focus = focus
	rec.HasFocus = true
	return s.save(ctx, sessionID, rec)
}

// Clear removes all state for the session.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
