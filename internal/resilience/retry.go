package resilience

import (
	"math/rand"
	"time"
)

// Strategy selects how the delay grows between attempts.
type Strategy string

const (
	Fixed              Strategy = "fixed"
	LinearBackoff      Strategy = "linear"
	ExponentialBackoff Strategy = "exponential"
	FibonacciBackoff   Strategy = "fibonacci"
)

// RetryPolicy describes how many times to try and how long to wait.
type RetryPolicy struct {
	MaxAttempts       int
	Strategy          Strategy
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            bool
	BackoffMultiplier float64
	RetriableKinds    map[Kind]bool
}

func defaultRetriable() map[Kind]bool {
	return map[Kind]bool{
		KindTransient: true,
		KindTimeout:   true,
		KindRateLimit: true,
	}
}

// Preset profiles. network_heavy additionally retries invalid upstream
// payloads a bounded number of times before they are treated as empty.
func FastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		Strategy:          ExponentialBackoff,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		Jitter:            true,
		BackoffMultiplier: 2.0,
		RetriableKinds:    defaultRetriable(),
	}
}

func StandardPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		Strategy:          ExponentialBackoff,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		Jitter:            true,
		BackoffMultiplier: 2.0,
		RetriableKinds:    defaultRetriable(),
	}
}

func PatientPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		Strategy:          ExponentialBackoff,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		Jitter:            true,
		BackoffMultiplier: 2.0,
		RetriableKinds:    defaultRetriable(),
	}
}

func NetworkHeavyPolicy() RetryPolicy {
	kinds := defaultRetriable()
	kinds[KindInvalidResponse] = true
	return RetryPolicy{
		MaxAttempts:       4,
		Strategy:          ExponentialBackoff,
		BaseDelay:         time.Second,
		MaxDelay:          45 * time.Second,
		Jitter:            true,
		BackoffMultiplier: 2.0,
		RetriableKinds:    kinds,
	}
}

// PolicyByName resolves a preset name, defaulting to standard.
func PolicyByName(name string) RetryPolicy {
	switch name {
	case "fast":
		return FastPolicy()
	case "patient":
		return PatientPolicy()
	case "network_heavy":
		return NetworkHeavyPolicy()
	default:
		return StandardPolicy()
	}
}

// Retriable reports whether the policy retries errors of this kind.
func (p RetryPolicy) Retriable(kind Kind) bool {
	return p.RetriableKinds[kind]
}

// Delay computes the wait before attempt n+1, for n >= 1 completed
// attempts. Jitter scales the result by a uniform factor in [0.5, 1.0].
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch p.Strategy {
	case Fixed:
		d = p.BaseDelay
	case LinearBackoff:
		d = p.BaseDelay * time.Duration(attempt)
	case ExponentialBackoff:
		mult := p.BackoffMultiplier
		if mult <= 0 {
			mult = 2.0
		}
		f := 1.0
		for i := 1; i < attempt; i++ {
			f *= mult
		}
		d = time.Duration(float64(p.BaseDelay) * f)
	case FibonacciBackoff:
		d = time.Duration(float64(p.BaseDelay) * float64(fib(attempt)))
	default:
		d = p.BaseDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// fib returns the n-th Fibonacci number with fib(1) = fib(2) = 1.
func fib(n int) int64 {
	if n <= 2 {
		return 1
	}
	var a, b int64 = 1, 1
	for i := 3; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}
