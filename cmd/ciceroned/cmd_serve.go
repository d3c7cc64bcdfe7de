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
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
	"github.com/noesis-labs/cicerone/internal/server"
	"github.com/noesis-labs/cicerone/pkg/llm"
	"github.com/noesis-labs/cicerone/pkg/metering"
	"github.com/noesis-labs/cicerone/pkg/pipeline"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tenant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cicerone HTTP server",
	Long: `Start the chat API server.

The server will:
- Load the tenant registry and, optionally, warm their pipelines
- Serve per-tenant chat, usage, and admin endpoints
- Expose health and Prometheus metrics

Press Ctrl+C to gracefully shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Validate(); err != nil {
		return err
	}
	logger := log.Logger()
	defer func() { _ = logger.Sync() }()

	tenants, err := tenant.NewFileStore(config.Tenants.Path)
	if err != nil {
		return err
	}

	meter, err := metering.Open(config.Metering.Path, logger)
	if err != nil {
		return err
	}
	defer meter.Close()

	sessions, err := buildSessionStore(config, logger)
	if err != nil {
		return err
	}

	limiterCfg := llm.DefaultRateLimiterConfig()
	limiterCfg.RequestsPerSecond = config.LLM.RequestsPerSecond
	limiterCfg.BurstCapacity = config.LLM.BurstCapacity
	limiterCfg.MaxRetries = config.LLM.MaxRetries
	limiterCfg.Logger = logger
	limiter := llm.NewRateLimiter(limiterCfg)
	defer limiter.Close()

	cache := pipeline.NewCache(nil, pipeline.Deps{
		Sessions:    sessions,
		Meter:       meter,
		RateLimiter: limiter,
		Logger:      logger,
	})
	defer cache.Close()

	if config.Tenants.Warmup {
		ready, err := cache.Warmup(cmd.Context(), tenants)
		if err != nil {
			return err
		}
		logger.Info("warmup complete", zap.Int("pipelines", ready))
	}

	srv, err := server.New(server.Config{
		Resolver:  tenants,
		Pipelines: server.NewCacheSource(cache),
		Meter:     meter,
		Reloader:  tenants,
		JWTSecret: []byte(config.Server.JWTSecret),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(config.Server.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func buildSessionStore(cfg *Config, logger *zap.Logger) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
		})
		logger.Info("using redis session store", zap.String("addr", cfg.Sessions.RedisAddr))
		return session.NewRedisStore(client, "cicerone", cfg.Sessions.TTL), nil
	default:
		logger.Info("using in-memory session store", zap.Int("max_sessions", cfg.Sessions.MaxSessions))
		return session.NewMemoryStore(cfg.Sessions.MaxSessions), nil
	}
}
