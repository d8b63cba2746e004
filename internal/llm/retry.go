package llm

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig bounds the retry decorator's backoff. SubAgentRetryConfig is
// the default used for sub-agent calls, which retry transient failures up
// to three times (spec.md §4.6).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SubAgentRetryConfig is the 3-retry policy spec.md §4.6 requires for
// llm_query/llm_batch sub-calls.
var SubAgentRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
}

type retryingClient struct {
	inner Client
	cfg   RetryConfig
	rnd   *rand.Rand
}

// WithRetry wraps inner so transient failures are retried with jittered
// exponential backoff. Non-retryable errors (4xx, context cancellation)
// return immediately.
func WithRetry(inner Client, cfg RetryConfig, seed int64) Client {
	if inner == nil || cfg.MaxRetries <= 0 {
		return inner
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &retryingClient{inner: inner, cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
}

func (c *retryingClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableLLMError(err) || attempt == c.cfg.MaxRetries {
			break
		}
		if !c.sleep(ctx, c.backoffForAttempt(attempt)) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *retryingClient) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	// The driving model's stream is emitted live as stream-token events;
	// retrying mid-stream would duplicate tokens already surfaced, so the
	// decorator only retries the initial connection attempt.
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch, err := c.inner.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !isRetryableLLMError(err) || attempt == c.cfg.MaxRetries {
			break
		}
		if !c.sleep(ctx, c.backoffForAttempt(attempt)) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *retryingClient) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *retryingClient) ModelInfo() *ModelInfo { return c.inner.ModelInfo() }
func (c *retryingClient) Close() error          { return c.inner.Close() }

func (c *retryingClient) backoffForAttempt(attempt int) time.Duration {
	backoff := c.cfg.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
			break
		}
	}
	jitterFrac := c.rnd.Float64()*0.4 - 0.2 // [-0.2, +0.2]
	sleep := backoff + time.Duration(float64(backoff)*jitterFrac)
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

func isRetryableLLMError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "api error 4") || strings.Contains(msg, "status 4") {
		return false
	}
	return true
}
