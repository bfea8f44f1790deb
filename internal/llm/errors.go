package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorCategory buckets provider failures for user-facing rendering.
type ErrorCategory string

const (
	ErrAuth       ErrorCategory = "auth"
	ErrRateLimit  ErrorCategory = "rate_limit"
	ErrTimeout    ErrorCategory = "timeout"
	ErrConnection ErrorCategory = "connection"
	ErrGeneric    ErrorCategory = "generic"
)

// ClassifyError maps an error to its user-facing category.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrConnection
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "authentication"):
		return ErrAuth
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return ErrRateLimit
	case strings.Contains(strings.ToLower(msg), "timeout") || strings.Contains(strings.ToLower(msg), "deadline"):
		return ErrTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "Connection") || strings.Contains(msg, "no such host"):
		return ErrConnection
	default:
		return ErrGeneric
	}
}

// IsRetryable reports whether an error is worth retrying with backoff.
func IsRetryable(err error) bool {
	switch ClassifyError(err) {
	case ErrRateLimit, ErrTimeout, ErrConnection:
		return true
	default:
		return false
	}
}
