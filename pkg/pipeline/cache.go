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
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/tenant"
)

// BuildFunc builds a pipeline for one tenant. The cache calls Build by
// default; tests substitute their own.
type BuildFunc func(ctx context.Context, t *tenant.Tenant, deps Deps) (*Pipeline, error)

// Cache holds one pipeline per tenant, keyed by configuration version.
// A version change rebuilds the pipeline and retires the stale one;
// concurrent requests for the same version share a single build.
type Cache struct {
	build  BuildFunc
	deps   Deps
	logger *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	version  string
	pipeline *Pipeline
}

// NewCache creates a pipeline cache. A nil build uses Build.
func NewCache(build BuildFunc, deps Deps) *Cache {
	if build == nil {
		build = Build
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Logger()
	}
	return &Cache{
		build:   build,
		deps:    deps,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the tenant's pipeline, building it if the tenant is new
// or its configuration version changed.
func (c *Cache) Get(ctx context.Context, t *tenant.Tenant) (*Pipeline, error) {
	c.mu.Lock()
	if e, ok := c.entries[t.ID]; ok && e.version == t.ConfigVersion {
		c.mu.Unlock()
		return e.pipeline, nil
	}
	c.mu.Unlock()

	// The singleflight key includes the version so a request carrying
	// a newer configuration is not coalesced into a stale build.
	key := t.ID + "@" + t.ConfigVersion
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if e, ok := c.entries[t.ID]; ok && e.version == t.ConfigVersion {
			c.mu.Unlock()
			return e.pipeline, nil
		}
		c.mu.Unlock()

		p, err := c.build(ctx, t, c.deps)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		stale := c.entries[t.ID]
		c.entries[t.ID] = &cacheEntry{version: t.ConfigVersion, pipeline: p}
		c.mu.Unlock()

		if stale != nil {
			c.logger.Info("retiring stale pipeline",
				zap.String("tenant", t.ID),
				zap.String("old_version", stale.version),
				zap.String("new_version", t.ConfigVersion))
			if err := stale.pipeline.Close(); err != nil {
				c.logger.Warn("closing stale pipeline failed",
					zap.String("tenant", t.ID), zap.Error(err))
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// Warmup builds pipelines for every active tenant so the first visitor
// does not pay the assembly cost. A tenant that fails to build is
// logged and skipped. Returns how many pipelines are ready.
func (c *Cache) Warmup(ctx context.Context, resolver tenant.Resolver) (int, error) {
	tenants, err := resolver.List(ctx)
	if err != nil {
		return 0, err
	}

	ready := 0
	for _, t := range tenants {
		if !t.Active {
			continue
		}
		if _, err := c.Get(ctx, t); err != nil {
			c.logger.Error("warmup failed for tenant",
				zap.String("tenant", t.ID), zap.Error(err))
			continue
		}
		ready++
	}
	return ready, nil
}

// Close retires every cached pipeline.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	for id, e := range entries {
		if err := e.pipeline.Close(); err != nil {
			c.logger.Warn("closing pipeline failed",
				zap.String("tenant", id), zap.Error(err))
		}
	}
}
