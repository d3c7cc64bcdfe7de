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
	"sync"

	"github.com/noesis-labs/cicerone/pkg/session"
)

// MockTool is a configurable Tool for tests. Safe for concurrent use.
type MockTool struct {
	ToolName        string
	ToolDescription string
	Schema          *JSONSchema
	ExecuteFunc     func(ctx context.Context, scope session.Scope, params map[string]interface{}) (*Result, error)

	mu sync.Mutex

	// Calls records every invocation for assertions.
	Calls []MockCall
}

// MockCall is one recorded invocation.
type MockCall struct {
	Scope  session.Scope
	Params map[string]interface{}
}

func (m *MockTool) Name() string        { return m.ToolName }
func (m *MockTool) Description() string { return m.ToolDescription }

func (m *MockTool) InputSchema() *JSONSchema {
	if m.Schema != nil {
		return m.Schema
	}
	return NewObjectSchema("mock tool", nil, nil)
}

func (m *MockTool) Execute(ctx context.Context, scope session.Scope, params map[string]interface{}) (*Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Scope: scope, Params: params})
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, scope, params)
	}
	return &Result{Success: true, Data: "ok"}, nil
}
