package resilience

import (
	"testing"
	"time"
)

func TestDelayStrategies(t *testing.T) {
	base := 100 * time.Millisecond
	max := 10 * time.Second

	cases := []struct {
		strategy Strategy
		attempt  int
		want     time.Duration
	}{
		{Fixed, 1, base},
		{Fixed, 5, base},
		{LinearBackoff, 1, base},
		{LinearBackoff, 3, 3 * base},
		{ExponentialBackoff, 1, base},
		{ExponentialBackoff, 2, 2 * base},
		{ExponentialBackoff, 4, 8 * base},
		{FibonacciBackoff, 1, base},
		{FibonacciBackoff, 2, base},
		{FibonacciBackoff, 3, 2 * base},
		{FibonacciBackoff, 4, 3 * base},
		{FibonacciBackoff, 5, 5 * base},
	}

	for _, tc := range cases {
		p := RetryPolicy{
			Strategy:          tc.strategy,
			BaseDelay:         base,
			MaxDelay:          max,
			BackoffMultiplier: 2.0,
		}
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("%s attempt %d: delay = %v, want %v", tc.strategy, tc.attempt, got, tc.want)
		}
	}
}

func TestDelayClampAndJitter(t *testing.T) {
	p := RetryPolicy{
		Strategy:          ExponentialBackoff,
		BaseDelay:         time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
	if got := p.Delay(10); got != 5*time.Second {
		t.Fatalf("delay not clamped: %v", got)
	}

	p.Jitter = true
	for i := 0; i < 100; i++ {
		d := p.Delay(3) // 4s un-jittered
		if d < 2*time.Second || d > 4*time.Second {
			t.Fatalf("jittered delay %v outside [2s, 4s]", d)
		}
	}
}

func TestPresetProfiles(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		base     time.Duration
		max      time.Duration
	}{
		{"fast", 2, 500 * time.Millisecond, 5 * time.Second},
		{"standard", 3, time.Second, 30 * time.Second},
		{"patient", 5, 2 * time.Second, 60 * time.Second},
		{"network_heavy", 4, time.Second, 45 * time.Second},
	}
	for _, tc := range cases {
		p := PolicyByName(tc.name)
		if p.MaxAttempts != tc.attempts || p.BaseDelay != tc.base || p.MaxDelay != tc.max {
			t.Errorf("%s: got (%d, %v, %v), want (%d, %v, %v)",
				tc.name, p.MaxAttempts, p.BaseDelay, p.MaxDelay, tc.attempts, tc.base, tc.max)
		}
	}

	nh := NetworkHeavyPolicy()
	if !nh.Retriable(KindInvalidResponse) {
		t.Error("network_heavy must retry invalid responses")
	}
	if StandardPolicy().Retriable(KindInvalidResponse) {
		t.Error("standard must not retry invalid responses")
	}
	if StandardPolicy().Retriable(KindFatal) {
		t.Error("fatal errors are never retriable")
	}
}

func TestKindOf(t *testing.T) {
	if k := KindOf(Errorf(KindRateLimit, "slow down")); k != KindRateLimit {
		t.Errorf("explicit kind lost: %s", k)
	}
	if k := KindOf(Errorf(KindInvalidResponse, "bad payload")); k != KindInvalidResponse {
		t.Errorf("explicit kind lost: %s", k)
	}
}
