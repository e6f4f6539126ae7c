package resilience

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler composes retry policies, per-function circuit breakers and the
// error monitor into a single call wrapper. It is safe for concurrent use.
type Handler struct {
	breakers *BreakerRegistry
	monitor  *ErrorMonitor
	log      *logrus.Entry
	sleep    func(context.Context, time.Duration) error // test hook
}

func NewHandler(breakerConfig BreakerConfig) *Handler {
	return &Handler{
		breakers: NewBreakerRegistry(breakerConfig),
		monitor:  NewErrorMonitor(1000),
		log:      logrus.WithField("component", "resilience"),
		sleep:    sleepCtx,
	}
}

// Monitor exposes the error monitor for observability surfaces.
func (h *Handler) Monitor() *ErrorMonitor { return h.monitor }

// Breaker returns the breaker guarding a fully-qualified function name.
func (h *Handler) Breaker(function string) *CircuitBreaker {
	return h.breakers.Get(function)
}

// Call runs fn under policy and the breaker registered for function.
// Non-retriable errors propagate immediately after logging. A rejected
// attempt surfaces as a KindBreakerOpen error; when fallback is non-nil
// it is invoked instead. On exhaustion the last error is returned.
func (h *Handler) Call(
	ctx context.Context,
	function string,
	policy RetryPolicy,
	fn func(context.Context) (any, error),
	fallback func(context.Context) (any, error),
) (any, error) {
	breaker := h.breakers.Get(function)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, WithKind(KindCancelled, err)
		}

		if !breaker.Allow() {
			lastErr = Errorf(KindBreakerOpen, "circuit open for %s", function)
			h.monitor.Record(function, lastErr, attempt-1, false)
			if fallback != nil {
				h.log.WithField("function", function).Warn("breaker open, using fallback")
				return fallback(ctx)
			}
			return nil, lastErr
		}

		result, err := fn(ctx)
		if err == nil {
			breaker.RecordSuccess()
			if attempt > 1 {
				h.monitor.Record(function, lastErr, attempt-1, true)
			}
			return result, nil
		}

		breaker.RecordFailure()
		lastErr = err
		kind := KindOf(err)
		h.monitor.Record(function, err, attempt-1, false)

		if !policy.Retriable(kind) {
			h.log.WithFields(logrus.Fields{
				"function": function,
				"kind":     kind,
			}).WithError(err).Warn("non-retriable error")
			return nil, err
		}
		if attempt < policy.MaxAttempts {
			delay := policy.Delay(attempt)
			h.log.WithFields(logrus.Fields{
				"function": function,
				"attempt":  attempt,
				"delay":    delay,
			}).WithError(err).Debug("retrying")
			if err := h.sleep(ctx, delay); err != nil {
				return nil, WithKind(KindCancelled, err)
			}
		}
	}

	if fallback != nil {
		h.log.WithField("function", function).WithError(lastErr).Warn("attempts exhausted, using fallback")
		return fallback(ctx)
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
