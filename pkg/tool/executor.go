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
package tool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/pkg/session"
)

// DefaultToolTimeout bounds a single tool execution, which in turn
// bounds the database query behind it.
const DefaultToolTimeout = 15 * time.Second

// Executor executes tools with timeout and duration tracking.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		timeout:  DefaultToolTimeout,
		logger:   logger,
	}
}

// SetTimeout overrides the per-call timeout. d <= 0 keeps the default.
func (e *Executor) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Execute executes a tool by name with the given scope and parameters.
// A Go error is returned only for unknown tools or a panicking
// contract violation; tool-level failures come back as an unsuccessful
// Result the model can react to.
func (e *Executor) Execute(ctx context.Context, scope session.Scope, toolName string, params map[string]interface{}) (*Result, error) {
	t, ok := e.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", toolName)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := t.Execute(ctx, scope, params)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn("tool execution failed",
			zap.String("tool", toolName),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, fmt.Errorf("execute %s: %w", toolName, err)
	}
	if result == nil {
		result = &Result{Success: false, Error: &Error{
			Code:    "empty_result",
			Message: "tool returned no result",
		}}
	}
	result.ExecutionTimeMs = elapsed.Milliseconds()

	e.logger.Debug("tool executed",
		zap.String("tool", toolName),
		zap.Bool("success", result.Success),
		zap.Int64("elapsed_ms", result.ExecutionTimeMs))
	return result, nil
}
