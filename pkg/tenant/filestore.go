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
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// FileStore resolves tenants from a JSON file holding an array of
// tenant records. Reload picks up edits without a restart.
type FileStore struct {
	path string

	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// NewFileStore loads the tenant file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the tenant file. On parse failure the previous
// state is kept.
func (s *FileStore) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("tenant: reading %s: %w", s.path, err)
	}

	var list []*Tenant
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("tenant: parsing %s: %w", s.path, err)
	}

	tenants := make(map[string]*Tenant, len(list))
	for _, t := range list {
		if t.ID == "" {
			return fmt.Errorf("tenant: entry without id in %s", s.path)
		}
		if _, dup := tenants[t.ID]; dup {
			return fmt.Errorf("tenant: duplicate id %q in %s", t.ID, s.path)
		}
		tenants[t.ID] = t
	}

	s.mu.Lock()
	s.tenants = tenants
	s.mu.Unlock()
	return nil
}

// Resolve implements Resolver.
func (s *FileStore) Resolve(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	t, ok := s.tenants[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !t.Active {
		return nil, ErrInactive
	}
	return t, nil
}

// List implements Resolver.
func (s *FileStore) List(_ context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Resolver = (*FileStore)(nil)
