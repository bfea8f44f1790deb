package llm

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls automatic retry of transient provider failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// retryProvider wraps a Provider with bounded exponential backoff on rate
// limits and transient network failures when opening a stream. Mid-stream
// failures are not retried; the turn surfaces the error instead.
type retryProvider struct {
	inner Provider
	cfg   RetryConfig
}

// WrapWithRetry wraps a provider with retry behavior.
func WrapWithRetry(inner Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 1 {
		return inner
	}
	return &retryProvider{inner: inner, cfg: cfg}
}

func (p *retryProvider) Name() string               { return p.inner.Name() }
func (p *retryProvider) Credential() string         { return p.inner.Credential() }
func (p *retryProvider) Capabilities() Capabilities { return p.inner.Capabilities() }

func (p *retryProvider) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if d > p.cfg.MaxDelay {
		d = p.cfg.MaxDelay
	}
	return d
}

func (p *retryProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.delay(attempt - 1)):
			}
		}
		stream, err := p.inner.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *retryProvider) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.delay(attempt - 1)):
			}
		}
		out, err := p.inner.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
