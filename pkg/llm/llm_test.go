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
package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSanitizeToolName(t *testing.T) {
	cases := map[string]string{
		"search_artworks":  "search_artworks",
		"cerca opere":      "cerca_opere",
		"query.catalogue!": "query_catalogue_",
		"get-details":      "get-details",
	}
	for in, want := range cases {
		if got := SanitizeToolName(in); got != want {
			t.Errorf("SanitizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReverseToolName(t *testing.T) {
	nameMap := map[string]string{"cerca_opere": "cerca opere"}
	if got := ReverseToolName(nameMap, "cerca_opere"); got != "cerca opere" {
		t.Fatalf("ReverseToolName() = %q", got)
	}
	if got := ReverseToolName(nameMap, "search_artworks"); got != "search_artworks" {
		t.Fatalf("unknown names should pass through, got %q", got)
	}
}

func TestIsThrottle(t *testing.T) {
	throttled := []error{
		errors.New("API error (status 429): rate limited"),
		errors.New("TooManyRequests"),
		errors.New("rate_limit_error: slow down"),
		errors.New("request throttled upstream"),
	}
	for _, err := range throttled {
		if !IsThrottle(err) {
			t.Errorf("IsThrottle(%v) = false, want true", err)
		}
	}
	if IsThrottle(nil) || IsThrottle(errors.New("connection refused")) {
		t.Fatal("non-throttle errors misclassified")
	}
}

func TestRateLimiterRetriesThrottle(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.RequestsPerSecond = 1000
	cfg.MinDelay = 0
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	rl := NewRateLimiter(cfg)
	defer rl.Close()

	calls := 0
	result, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("status 429: rate limited")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Fatalf("result = %v, calls = %d", result, calls)
	}
}

func TestRateLimiterGivesUpAfterMaxRetries(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.RequestsPerSecond = 1000
	cfg.MinDelay = 0
	cfg.MaxRetries = 1
	cfg.RetryBackoff = time.Millisecond
	rl := NewRateLimiter(cfg)
	defer rl.Close()

	calls := 0
	_, err := rl.Do(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("status 429: rate limited")
	})
	if err == nil {
		t.Fatal("Do() should surface the throttle error")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (initial + one retry)", calls)
	}
}
