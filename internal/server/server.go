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

// Package server exposes the chat surface over HTTP: per-tenant chat
// (plain and streaming), usage reporting, tenant reload, health, and
// metrics.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/metering"
	"github.com/noesis-labs/cicerone/pkg/pipeline"
	"github.com/noesis-labs/cicerone/pkg/tenant"
)

// Chatter answers questions for one tenant. *pipeline.Pipeline is the
// production implementation.
type Chatter interface {
	Ask(ctx context.Context, sessionID, target, question string) (*pipeline.Answer, error)
	AskStream(ctx context.Context, sessionID, target, question string, tokenCallback llm.TokenCallback) (*pipeline.Answer, error)
}

// Pipelines hands out the Chatter for a resolved tenant.
type Pipelines interface {
	Get(ctx context.Context, t *tenant.Tenant) (Chatter, error)
}

type cacheSource struct{ cache *pipeline.Cache }

func (s cacheSource) Get(ctx context.Context, t *tenant.Tenant) (Chatter, error) {
	return s.cache.Get(ctx, t)
}

// NewCacheSource adapts a pipeline cache to the Pipelines interface.
func NewCacheSource(c *pipeline.Cache) Pipelines { return cacheSource{cache: c} }

// Reloader re-reads tenant configuration; tenant.FileStore implements
// it.
type Reloader interface{ Reload() error }

// Config wires the server's collaborators.
type Config struct {
	Resolver  tenant.Resolver
	Pipelines Pipelines
	Meter     *metering.Store

	// Reloader, when set, backs the admin reload endpoint.
	Reloader Reloader

	// JWTSecret signs and validates bearer tokens (required).
	JWTSecret []byte

	Logger *zap.Logger
}

// Server is the HTTP chat surface.
type Server struct {
	echo   *echo.Echo
	config Config
	logger *zap.Logger
}

// New builds the server and its routes.
func New(config Config) (*Server, error) {
	if len(config.JWTSecret) == 0 {
		return nil, errors.New("server: jwt secret is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Logger()
	}

	s := &Server{config: config, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.Use(authMiddleware(config.JWTSecret))

	tenants := api.Group("/tenants/:tenant")
	tenants.Use(requireTenantAccess)
	tenants.POST("/chat", s.chat)
	tenants.GET("/usage", s.usage)
	tenants.GET("/usage/current", s.usageCurrent)

	admin := api.Group("/admin")
	admin.Use(requireAdmin)
	admin.POST("/tenants/reload", s.reloadTenants)

	s.echo = e
	return s, nil
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorHandler renders every error as {"error": ..., "code": ...} with
// a stable code the app can key on.
func (s *Server) errorHandler(err error, c echo.Context) {
	status, code, msg := mapError(err)

	s.logger.Warn("request failed",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))

	if !c.Response().Committed {
		_ = c.JSON(status, map[string]string{"error": msg, "code": code})
	}
}

func mapError(err error) (status int, code, msg string) {
	var (
		he *echo.HTTPError
		ce *pipeline.ConfigurationError
	)
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound, "tenant_not_found", "unknown tenant"
	case errors.Is(err, tenant.ErrInactive):
		return http.StatusForbidden, "tenant_inactive", "tenant is not active"
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable, "tenant_misconfigured", "the tenant is not correctly configured"
	case errors.Is(err, metering.ErrUsageLimitExceeded):
		return http.StatusTooManyRequests, "usage_limit_exceeded", "monthly usage limit exceeded"
	case llm.IsThrottle(err):
		return http.StatusServiceUnavailable, "system_busy", "the system is busy, please retry shortly"
	case errors.As(err, &he):
		msg = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, codeForStatus(he.Code), msg
	default:
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}

// resolveChatter resolves the tenant from the URL and returns its
// pipeline.
func (s *Server) resolveChatter(c echo.Context) (*tenant.Tenant, Chatter, error) {
	ctx := c.Request().Context()
	t, err := s.config.Resolver.Resolve(ctx, c.Param("tenant"))
	if err != nil {
		return nil, nil, err
	}
	ch, err := s.config.Pipelines.Get(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return t, ch, nil
}

func (s *Server) reloadTenants(c echo.Context) error {
	if s.config.Reloader == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tenant reload is not available")
	}
	if err := s.config.Reloader.Reload(); err != nil {
		return err
	}
	s.logger.Info("tenant configuration reloaded")
	return c.NoContent(http.StatusNoContent)
}
