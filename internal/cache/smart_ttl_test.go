package cache

import (
	"testing"
	"time"
)

func TestSmartTTLScalesWithAccessFrequency(t *testing.T) {
	p := NewSmartTTLPolicy(SmartTTLRule{
		Pattern:      "market:*",
		BaseTTL:      300,
		AccessFactor: 2.0,
		MinTTL:       60,
		MaxTTL:       600,
	})
	base := time.Unix(9000, 0)
	p.now = func() time.Time { return base }

	// Cold key clamps to the floor.
	if got := p.EffectiveTTL("market:600519", 300); got != 60 {
		t.Fatalf("cold key ttl = %d, want 60", got)
	}

	// 10 recent accesses: multiplier = 10*2/10 = 2.0.
	for i := 0; i < 10; i++ {
		p.RecordAccess("market:600519")
	}
	if got := p.EffectiveTTL("market:600519", 300); got != 600 {
		t.Fatalf("warm key ttl = %d, want 600 (clamped from 600)", got)
	}
}

func TestSmartTTLMultiplierCap(t *testing.T) {
	p := NewSmartTTLPolicy(SmartTTLRule{
		Pattern:      "news:*",
		BaseTTL:      100,
		AccessFactor: 1.0,
		MinTTL:       10,
		MaxTTL:       10000,
	})
	base := time.Unix(9000, 0)
	p.now = func() time.Time { return base }

	// 100 accesses would give multiplier 10; capped at 3.0.
	for i := 0; i < 100; i++ {
		p.RecordAccess("news:AAPL")
	}
	if got := p.EffectiveTTL("news:AAPL", 100); got != 300 {
		t.Fatalf("ttl = %d, want 300", got)
	}
}

func TestSmartTTLNoRuleKeepsFallback(t *testing.T) {
	p := NewSmartTTLPolicy(SmartTTLRule{Pattern: "market:*", BaseTTL: 300, AccessFactor: 1, MinTTL: 60, MaxTTL: 600})
	if got := p.EffectiveTTL("dividend:600519", 3600); got != 3600 {
		t.Fatalf("unmatched key ttl = %d, want fallback 3600", got)
	}
}

func TestSmartTTLIgnoresStaleAccesses(t *testing.T) {
	p := NewSmartTTLPolicy(SmartTTLRule{
		Pattern:      "market:*",
		BaseTTL:      300,
		AccessFactor: 10,
		MinTTL:       60,
		MaxTTL:       900,
	})
	base := time.Unix(9000, 0)

	p.now = func() time.Time { return base }
	p.RecordAccess("market:AAPL")

	// 31 minutes later that access is outside the window.
	p.now = func() time.Time { return base.Add(31 * time.Minute) }
	if got := p.EffectiveTTL("market:AAPL", 300); got != 60 {
		t.Fatalf("ttl = %d, want min 60 once accesses age out", got)
	}
}

func TestSmartTTLTrimAccessLog(t *testing.T) {
	p := NewSmartTTLPolicy()
	base := time.Unix(9000, 0)

	p.now = func() time.Time { return base }
	p.RecordAccess("market:AAPL")

	p.now = func() time.Time { return base.Add(2 * time.Hour) }
	p.RecordAccess("market:MSFT")
	p.TrimAccessLog()

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accesses["market:AAPL"]; ok {
		t.Fatal("hour-old access log survived trim")
	}
	if len(p.accesses["market:MSFT"]) != 1 {
		t.Fatal("fresh access trimmed")
	}
}
