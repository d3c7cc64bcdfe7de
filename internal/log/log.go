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

// Package log holds the process-wide zap logger. Library code reaches
// it through Logger when no logger was injected; the daemon configures
// it once at startup with Init.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

// The default lets code log before Init runs (tests, early startup).
var logger = zap.Must(zap.NewDevelopment())

// Init builds the global logger from the daemon's logging settings.
// format is "json" or "console"; level is any zap level name.
func Init(level, format string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("log: parsing level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("log: unknown format %q", format)
	}
	cfg.Level = lvl

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("log: building logger: %w", err)
	}
	logger = l
	return nil
}

// Logger returns the global logger.
func Logger() *zap.Logger { return logger }

// SetLogger replaces the global logger, mainly for tests.
func SetLogger(l *zap.Logger) { logger = l }

// Sync flushes buffered entries at shutdown.
func Sync() error { return logger.Sync() }
