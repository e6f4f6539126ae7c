package resilience

import (
	"runtime/debug"
	"sync"
	"time"
)

// ErrorRecord is one observed failure, kept for diagnostics only.
type ErrorRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Function   string    `json:"function"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	Stack      string    `json:"stack"`
	RetryCount int       `json:"retry_count"`
	Resolved   bool      `json:"resolved"`
}

// ErrorMonitor keeps a bounded queue of error records and aggregate
// counts per (function, kind). It never influences control flow.
type ErrorMonitor struct {
	mu      sync.Mutex
	records []ErrorRecord
	counts  map[string]map[Kind]int
	maxSize int
}

func NewErrorMonitor(maxSize int) *ErrorMonitor {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ErrorMonitor{
		counts:  make(map[string]map[Kind]int),
		maxSize: maxSize,
	}
}

// Record appends an error record, evicting the oldest past the bound.
func (m *ErrorMonitor) Record(function string, err error, retryCount int, resolved bool) {
	if err == nil {
		return
	}
	kind := KindOf(err)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, ErrorRecord{
		Timestamp:  time.Now(),
		Function:   function,
		Kind:       kind,
		Message:    err.Error(),
		Stack:      string(debug.Stack()),
		RetryCount: retryCount,
		Resolved:   resolved,
	})
	if len(m.records) > m.maxSize {
		m.records = m.records[len(m.records)-m.maxSize:]
	}
	if m.counts[function] == nil {
		m.counts[function] = make(map[Kind]int)
	}
	m.counts[function][kind]++
}

// Stats returns the aggregate counts keyed by function then kind.
func (m *ErrorMonitor) Stats() map[string]map[Kind]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[Kind]int, len(m.counts))
	for fn, kinds := range m.counts {
		out[fn] = make(map[Kind]int, len(kinds))
		for k, n := range kinds {
			out[fn][k] = n
		}
	}
	return out
}

// Recent returns up to n of the latest records, newest last.
func (m *ErrorMonitor) Recent(n int) []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]ErrorRecord, n)
	copy(out, m.records[len(m.records)-n:])
	return out
}
