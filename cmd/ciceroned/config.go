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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon configuration, loaded from file, environment
// (CICERONE_ prefix), and flags.
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"server"`

	Tenants struct {
		// Path to the tenants JSON file.
		Path string `mapstructure:"path"`
		// Warmup builds every active tenant's pipeline at startup.
		Warmup bool `mapstructure:"warmup"`
	} `mapstructure:"tenants"`

	Metering struct {
		// Path to the usage SQLite database.
		Path string `mapstructure:"path"`
	} `mapstructure:"metering"`

	Sessions struct {
		// Backend is "memory" or "redis".
		Backend string `mapstructure:"backend"`
		// MaxSessions bounds the in-memory store (0 = unbounded).
		MaxSessions int `mapstructure:"max_sessions"`

		RedisAddr     string        `mapstructure:"redis_addr"`
		RedisPassword string        `mapstructure:"redis_password"`
		TTL           time.Duration `mapstructure:"ttl"`
	} `mapstructure:"sessions"`

	LLM struct {
		// RequestsPerSecond bounds outbound model calls across all
		// tenants.
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		BurstCapacity     int     `mapstructure:"burst_capacity"`
		MaxRetries        int     `mapstructure:"max_retries"`
	} `mapstructure:"llm"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("tenants.path", "tenants.json")
	viper.SetDefault("tenants.warmup", true)
	viper.SetDefault("metering.path", "cicerone.db")
	viper.SetDefault("sessions.backend", "memory")
	viper.SetDefault("sessions.max_sessions", 10000)
	viper.SetDefault("sessions.ttl", 2*time.Hour)
	viper.SetDefault("llm.requests_per_second", 5.0)
	viper.SetDefault("llm.burst_capacity", 10)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

// LoadConfig reads the config file (when given) over the defaults and
// environment.
func LoadConfig(path string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("CICERONE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required (or CICERONE_SERVER_JWT_SECRET)")
	}
	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			return fmt.Errorf("sessions.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown sessions.backend %q (memory or redis)", c.Sessions.Backend)
	}
	return nil
}
