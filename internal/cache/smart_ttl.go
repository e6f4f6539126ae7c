package cache

import (
	"sync"
	"time"
)

// SmartTTLRule adjusts the TTL of keys matching a glob pattern based on
// recent access frequency. First registered match wins.
type SmartTTLRule struct {
	Pattern      string
	BaseTTL      int
	AccessFactor float64
	TimeDecay    float64
	MinTTL       int
	MaxTTL       int
}

// SmartTTLPolicy tracks per-key access timestamps for the trailing hour
// and computes frequency-scaled TTLs.
type SmartTTLPolicy struct {
	mu       sync.Mutex
	rules    []SmartTTLRule
	accesses map[string][]time.Time
	now      func() time.Time
}

func NewSmartTTLPolicy(rules ...SmartTTLRule) *SmartTTLPolicy {
	return &SmartTTLPolicy{
		rules:    rules,
		accesses: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// AddRule appends a rule; earlier rules take precedence.
func (p *SmartTTLPolicy) AddRule(rule SmartTTLRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, rule)
}

// RecordAccess notes one access of a composite key.
func (p *SmartTTLPolicy) RecordAccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accesses[key] = append(p.accesses[key], p.now())
}

// EffectiveTTL computes the TTL for key. The frequency multiplier is
// accesses-in-last-30-minutes x access_factor / 10, capped at 3.0, and
// the result is clamped to the rule's [min, max] bounds. Keys matching
// no rule keep the fallback TTL unchanged.
func (p *SmartTTLPolicy) EffectiveTTL(key string, fallback int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rule *SmartTTLRule
	for i := range p.rules {
		if matchPattern(p.rules[i].Pattern, key) {
			rule = &p.rules[i]
			break
		}
	}
	if rule == nil {
		return fallback
	}

	cutoff := p.now().Add(-30 * time.Minute)
	recent := 0
	for _, ts := range p.accesses[key] {
		if ts.After(cutoff) {
			recent++
		}
	}

	multiplier := float64(recent) * rule.AccessFactor / 10
	if multiplier > 3.0 {
		multiplier = 3.0
	}

	ttl := int(float64(rule.BaseTTL) * multiplier)
	if ttl < rule.MinTTL {
		ttl = rule.MinTTL
	}
	if rule.MaxTTL > 0 && ttl > rule.MaxTTL {
		ttl = rule.MaxTTL
	}
	return ttl
}

// TrimAccessLog expunges access timestamps older than one hour. Run
// periodically by the manager's sweep loop.
func (p *SmartTTLPolicy) TrimAccessLog() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-time.Hour)
	for key, stamps := range p.accesses {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(p.accesses, key)
			continue
		}
		p.accesses[key] = kept
	}
}
