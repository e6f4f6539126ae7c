// Package resilience provides the retry, circuit-breaker and error
// monitoring layer that guards every upstream call.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the error taxonomy the retry policy decides on.
type Kind string

const (
	KindTransient       Kind = "transient"
	KindTimeout         Kind = "timeout"
	KindRateLimit       Kind = "rate_limit"
	KindInvalidResponse Kind = "invalid_response"
	KindBreakerOpen     Kind = "breaker_open"
	KindFatal           Kind = "fatal"
	KindCancelled       Kind = "cancelled"
)

// KindedError tags an underlying error with a taxonomy kind.
type KindedError struct {
	Kind Kind
	Err  error
}

func (e *KindedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindedError) Unwrap() error { return e.Err }

// WithKind wraps err with an explicit kind. A nil err stays nil.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindedError{Kind: kind, Err: err}
}

// Errorf builds a new kinded error from a format string.
func Errorf(kind Kind, format string, args ...any) error {
	return &KindedError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies an arbitrary error. Explicit tags win; otherwise the
// error chain and message are inspected for network and timeout signals.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kinded *KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return KindRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "reset") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "unreachable"):
		return KindTransient
	}
	return KindFatal
}

// IsBreakerOpen reports whether err came from an open circuit breaker.
func IsBreakerOpen(err error) bool {
	return KindOf(err) == KindBreakerOpen
}
