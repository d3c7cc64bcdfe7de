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
	"fmt"
	"sync"
	"testing"
	"time"
)

func userTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text, Timestamp: time.Now()}
}

func TestMemoryStoreWindowTrim(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := 0; i < Window+5; i++ {
		if err := store.AppendTurns(ctx, "s1", userTurn(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("AppendTurns() error = %v", err)
		}
	}

	turns, err := store.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != Window {
		t.Fatalf("history length = %d, want %d", len(turns), Window)
	}
	if turns[0].Content != "msg-5" {
		t.Fatalf("oldest retained turn = %q, want msg-5", turns[0].Content)
	}
	if turns[len(turns)-1].Content != fmt.Sprintf("msg-%d", Window+4) {
		t.Fatalf("newest turn = %q", turns[len(turns)-1].Content)
	}
}

func TestMemoryStoreFocusOverwrite(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if _, ok, _ := store.Focus(ctx, "s1"); ok {
		t.Fatal("new session should have no focus")
	}

	_ = store.SetFocus(ctx, "s1", Focus{Kind: FocusArtist, ID: 7, Label: "Canova"})
	_ = store.SetFocus(ctx, "s1", Focus{Kind: FocusArtwork, ID: 42, Label: "Amore e Psiche"})

	focus, ok, err := store.Focus(ctx, "s1")
	if err != nil {
		t.Fatalf("Focus() error = %v", err)
	}
	if !ok {
		t.Fatal("expected focus to be set")
	}
	if focus.Kind != FocusArtwork || focus.ID != 42 {
		t.Fatalf("focus = %+v, want the later artwork focus", focus)
	}
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = store.AppendTurns(ctx, id, userTurn("hello "+id))
	}
	// Touch "a" so "b" becomes the coldest.
	_, _ = store.Turns(ctx, "a")
	_ = store.AppendTurns(ctx, "d", userTurn("hello d"))

	if store.Len() != 3 {
		t.Fatalf("live sessions = %d, want 3", store.Len())
	}
	turns, _ := store.Turns(ctx, "b")
	if len(turns) != 0 {
		t.Fatalf("evicted session should restart empty, got %d turns", len(turns))
	}
}

func TestMemoryStoreConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.AppendTurns(ctx, "shared", userTurn(fmt.Sprintf("turn-%d", n)))
		}(i)
	}
	wg.Wait()

	turns, err := store.Turns(ctx, "shared")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 8 {
		t.Fatalf("turns = %d, want 8 (no lost appends)", len(turns))
	}
}

func TestMemoryStoreSessionIsolation(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_ = store.AppendTurns(ctx, "s1", userTurn("about sculptures"))
	_ = store.AppendTurns(ctx, "s2", userTurn("about paintings"))

	t1, _ := store.Turns(ctx, "s1")
	t2, _ := store.Turns(ctx, "s2")
	if len(t1) != 1 || len(t2) != 1 {
		t.Fatalf("lengths = %d, %d", len(t1), len(t2))
	}
	if t1[0].Content == t2[0].Content {
		t.Fatal("sessions leaked into each other")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_ = store.AppendTurns(ctx, "s1", userTurn("hello"))
	_ = store.SetFocus(ctx, "s1", Focus{Kind: FocusArtist, ID: 1, Label: "x"})
	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	turns, _ := store.Turns(ctx, "s1")
	if len(turns) != 0 {
		t.Fatalf("cleared session has %d turns", len(turns))
	}
	if _, ok, _ := store.Focus(ctx, "s1"); ok {
		t.Fatal("cleared session still has focus")
	}
}
