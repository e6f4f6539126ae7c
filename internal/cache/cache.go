// Package cache is the tiered key/value store in front of the data
// provider layer. Entries are namespaced, TTL-bound and flow through a
// primary backend with ordered fallbacks. The cache is never on the
// correctness path: every backend error degrades to a miss.
package cache

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tradingagents/internal/config"
)

// Entry is one cached value with its expiry metadata.
type Entry struct {
	Key        string    `json:"key"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int       `json:"ttl_seconds"` // 0 means never expire
	DataType   string    `json:"data_type"`
	Namespace  string    `json:"namespace"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

// BackendStats describes one backend for the stats surface.
type BackendStats struct {
	Backend   string `json:"backend"`
	Entries   int    `json:"entries"`
	SizeBytes int64  `json:"size_bytes"`
}

// Backend is a single cache store. Implementations must be safe for
// concurrent use and must not interpret TTLs; expiry is the manager's job.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) BackendStats
}

// Per-data-type TTL defaults in seconds.
var defaultTTLs = map[string]int{
	"market_data":   300,
	"capital_flow":  300,
	"stock_data":    1800,
	"concept_data":  1800,
	"news_data":     900,
	"dividend_data": 3600,
	"fundamentals":  86400,
}

// Manager orchestrates the backend chain, TTL policy and sweeps.
type Manager struct {
	primary   Backend
	fallbacks []Backend
	ttls      map[string]int
	smartTTL  *SmartTTLPolicy
	log       *logrus.Entry
	now       func() time.Time
}

// NewManager wires the backend chain. Fallbacks are probed in order on a
// primary miss and promoted back into the primary on a hit.
func NewManager(primary Backend, fallbacks []Backend, cfg config.CacheConfig) *Manager {
	ttls := make(map[string]int, len(defaultTTLs))
	for k, v := range defaultTTLs {
		ttls[k] = v
	}
	for k, v := range cfg.DefaultTTL {
		ttls[k] = v
	}
	return &Manager{
		primary:   primary,
		fallbacks: fallbacks,
		ttls:      ttls,
		log:       logrus.WithField("component", "cache"),
		now:       time.Now,
	}
}

// WithSmartTTL attaches a smart-TTL policy used to adjust derived TTLs.
func (m *Manager) WithSmartTTL(policy *SmartTTLPolicy) *Manager {
	m.smartTTL = policy
	return m
}

// CompositeKey builds the deterministic cache-internal identifier from a
// namespace, key and extra params. Params are sorted by name so that map
// iteration order never leaks into the key.
func CompositeKey(namespace, key string, extra map[string]string) string {
	if len(extra) == 0 {
		return namespace + ":" + key
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+extra[name])
	}
	return namespace + ":" + key + ":" + strings.Join(parts, "&")
}

// Get probes the primary then each fallback in order. A found-but-expired
// entry is deleted from its backend and treated as a miss. A fallback hit
// is written through into the primary.
func (m *Manager) Get(ctx context.Context, namespace, key string, extra map[string]string) ([]byte, bool) {
	ck := CompositeKey(namespace, key, extra)
	now := m.now()

	if entry, ok := m.probe(ctx, m.primary, ck, now); ok {
		m.recordAccess(ck)
		return entry.Payload, true
	}
	for _, backend := range m.fallbacks {
		entry, ok := m.probe(ctx, backend, ck, now)
		if !ok {
			continue
		}
		if err := m.primary.Set(ctx, entry); err != nil {
			m.log.WithError(err).WithField("key", ck).Warn("promotion to primary failed")
		}
		m.recordAccess(ck)
		return entry.Payload, true
	}
	return nil, false
}

func (m *Manager) probe(ctx context.Context, backend Backend, ck string, now time.Time) (*Entry, bool) {
	entry, found, err := backend.Get(ctx, ck)
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"backend": backend.Name(), "key": ck,
		}).Warn("backend get failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}
	if entry.Expired(now) {
		if err := backend.Delete(ctx, ck); err != nil {
			m.log.WithError(err).WithField("key", ck).Debug("expired entry delete failed")
		}
		return nil, false
	}
	return entry, true
}

// Set writes to the primary backend only. ttlSeconds < 0 derives the TTL
// from the data type (adjusted by the smart-TTL policy when configured);
// 0 means never expire. Backend errors are logged and swallowed.
func (m *Manager) Set(ctx context.Context, namespace, key string, payload []byte, dataType string, ttlSeconds int, extra map[string]string) {
	ck := CompositeKey(namespace, key, extra)
	if ttlSeconds < 0 {
		ttlSeconds = m.ttlFor(dataType)
		if m.smartTTL != nil {
			ttlSeconds = m.smartTTL.EffectiveTTL(ck, ttlSeconds)
		}
	}
	entry := &Entry{
		Key:        ck,
		Payload:    payload,
		CreatedAt:  m.now(),
		TTLSeconds: ttlSeconds,
		DataType:   dataType,
		Namespace:  namespace,
	}
	if err := m.primary.Set(ctx, entry); err != nil {
		m.log.WithError(err).WithField("key", ck).Warn("cache set failed")
		return
	}
	m.recordAccess(ck)
}

func (m *Manager) ttlFor(dataType string) int {
	if ttl, ok := m.ttls[dataType]; ok {
		return ttl
	}
	return m.ttls["stock_data"]
}

// Delete broadcasts to every backend.
func (m *Manager) Delete(ctx context.Context, namespace, key string, extra map[string]string) {
	ck := CompositeKey(namespace, key, extra)
	for _, backend := range m.allBackends() {
		if err := backend.Delete(ctx, ck); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"backend": backend.Name(), "key": ck,
			}).Warn("cache delete failed")
		}
	}
}

// ClearNamespace removes every entry whose key lives under namespace.
func (m *Manager) ClearNamespace(ctx context.Context, namespace string) {
	pattern := namespace + ":*"
	for _, backend := range m.allBackends() {
		keys, err := backend.Keys(ctx, pattern)
		if err != nil {
			m.log.WithError(err).WithField("backend", backend.Name()).Warn("namespace listing failed")
			continue
		}
		for _, k := range keys {
			_ = backend.Delete(ctx, k)
		}
	}
}

// ClearAll wipes every backend.
func (m *Manager) ClearAll(ctx context.Context) {
	for _, backend := range m.allBackends() {
		if err := backend.Clear(ctx); err != nil {
			m.log.WithError(err).WithField("backend", backend.Name()).Warn("cache clear failed")
		}
	}
}

// Keys lists composite keys matching a glob pattern across all backends.
func (m *Manager) Keys(ctx context.Context, pattern string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, backend := range m.allBackends() {
		keys, err := backend.Keys(ctx, pattern)
		if err != nil {
			continue
		}
		for _, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Stats reports each backend in chain order, primary first.
func (m *Manager) Stats(ctx context.Context) []BackendStats {
	out := make([]BackendStats, 0, 1+len(m.fallbacks))
	for _, backend := range m.allBackends() {
		out = append(out, backend.Stats(ctx))
	}
	return out
}

// StartSweeps launches the background expiry and access-pattern sweeps.
// Both stop when ctx is cancelled and hold no locks across I/O.
func (m *Manager) StartSweeps(ctx context.Context, expiryEvery, accessEvery time.Duration) {
	if expiryEvery <= 0 {
		expiryEvery = 5 * time.Minute
	}
	if accessEvery <= 0 {
		accessEvery = time.Minute
	}
	go m.sweepLoop(ctx, expiryEvery, func() { m.sweepExpired(ctx) })
	if m.smartTTL != nil {
		go m.sweepLoop(ctx, accessEvery, m.smartTTL.TrimAccessLog)
	}
}

func (m *Manager) sweepLoop(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (m *Manager) sweepExpired(ctx context.Context) {
	now := m.now()
	for _, backend := range m.allBackends() {
		keys, err := backend.Keys(ctx, "*")
		if err != nil {
			continue
		}
		removed := 0
		for _, k := range keys {
			entry, found, err := backend.Get(ctx, k)
			if err != nil || !found {
				continue
			}
			if entry.Expired(now) {
				if backend.Delete(ctx, k) == nil {
					removed++
				}
			}
		}
		if removed > 0 {
			m.log.WithFields(logrus.Fields{
				"backend": backend.Name(), "removed": removed,
			}).Debug("expiry sweep")
		}
	}
}

func (m *Manager) recordAccess(ck string) {
	if m.smartTTL != nil {
		m.smartTTL.RecordAccess(ck)
	}
}

func (m *Manager) allBackends() []Backend {
	return append([]Backend{m.primary}, m.fallbacks...)
}

// matchPattern is the shared glob matcher for backend key listings.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
