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
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the shared LLM rate limiter.
type RateLimiterConfig struct {
	// Enabled enables rate limiting (default: true for production)
	Enabled bool

	// RequestsPerSecond is the maximum requests allowed per second
	// across all tenant pipelines sharing the limiter.
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed.
	BurstCapacity int

	// MinDelay is the minimum delay between requests.
	MinDelay time.Duration

	// MaxRetries caps retries on 429 throttling errors. The cap is
	// strict: once exhausted, the throttling error surfaces to the
	// caller as-is.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	// (doubles each retry).
	RetryBackoff time.Duration

	// QueueTimeout is the maximum time a request can wait in the queue.
	QueueTimeout time.Duration

	// Logger for rate limiter events
	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns defaults suitable for the hosted
// Anthropic/OpenAI APIs.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 5.0,
		BurstCapacity:     10,
		MinDelay:          100 * time.Millisecond,
		MaxRetries:        3,
		RetryBackoff:      1 * time.Second,
		QueueTimeout:      2 * time.Minute,
		Logger:            zap.NewNop(),
	}
}

// RateLimiter implements token bucket rate limiting for LLM requests
// with bounded retry on throttling.
type RateLimiter struct {
	config RateLimiterConfig

	// Token bucket for request rate limiting
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex

	queue  chan *rateLimitedRequest
	stopCh chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

type rateLimitedRequest struct {
	ctx      context.Context
	call     func(context.Context) (interface{}, error)
	resultCh chan *rateLimitedResult
}

type rateLimitedResult struct {
	result interface{}
	err    error
}

// NewRateLimiter creates a new rate limiter and starts its processor.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 1
	}

	rl := &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
		queue:      make(chan *rateLimitedRequest, config.BurstCapacity*2),
		stopCh:     make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.processQueue()

	return rl
}

// Do executes a call with rate limiting and bounded retry on
// throttling.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if !rl.config.Enabled {
		return call(ctx)
	}
	if rl.closed.Load() {
		return nil, fmt.Errorf("rate limiter stopped")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req := &rateLimitedRequest{
		ctx:      ctx,
		call:     call,
		resultCh: make(chan *rateLimitedResult, 1),
	}

	queueCtx, cancel := context.WithTimeout(ctx, rl.config.QueueTimeout)
	defer cancel()

	select {
	case <-rl.stopCh:
		return nil, fmt.Errorf("rate limiter stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-queueCtx.Done():
		return nil, fmt.Errorf("rate limiter queue timeout after %v", rl.config.QueueTimeout)
	case rl.queue <- req:
	}

	select {
	case result := <-req.resultCh:
		return result.result, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.stopCh:
		return nil, fmt.Errorf("rate limiter stopped")
	}
}

func (rl *RateLimiter) processQueue() {
	defer rl.wg.Done()

	for {
		select {
		case req := <-rl.queue:
			rl.processRequest(req)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) processRequest(req *rateLimitedRequest) {
	for {
		if rl.acquireToken() {
			break
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-req.ctx.Done():
			req.resultCh <- &rateLimitedResult{err: req.ctx.Err()}
			return
		case <-rl.stopCh:
			req.resultCh <- &rateLimitedResult{err: fmt.Errorf("rate limiter stopped")}
			return
		}
	}

	if rl.config.MinDelay > 0 {
		time.Sleep(rl.config.MinDelay)
	}

	result, err := rl.executeWithRetry(req.ctx, req.call)

	select {
	case req.resultCh <- &rateLimitedResult{result: result, err: err}:
	case <-req.ctx.Done():
	case <-rl.stopCh:
	}
}

// executeWithRetry retries throttled calls with exponential backoff up
// to the configured cap, then surfaces the throttling error.
func (rl *RateLimiter) executeWithRetry(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	backoff := rl.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		result, err := call(ctx)
		if err == nil || !IsThrottle(err) {
			return result, err
		}
		lastErr = err

		rl.config.Logger.Warn("LLM request throttled, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", rl.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if attempt < rl.config.MaxRetries {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-rl.stopCh:
				return nil, fmt.Errorf("rate limiter stopped during retry")
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d throttled attempts: %w", rl.config.MaxRetries+1, lastErr)
}

func (rl *RateLimiter) acquireToken() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = rl.tokens + elapsed*rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// IsThrottle reports whether err looks like a provider throttling
// error (HTTP 429 and friends).
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "TooManyRequests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "throttle")
}

// Close stops the rate limiter and waits for pending requests.
func (rl *RateLimiter) Close() error {
	if !rl.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(rl.stopCh)
	rl.wg.Wait()
	close(rl.queue)
	return nil
}
