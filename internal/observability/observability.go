// Package observability implements an in-memory, enable/disable-able
// diagnostics monitor over the traffic the Request Adapter sends. This
// is deliberately NOT scan-history persistence (spec.md §1 Non-goals —
// "persistence of scan history" is explicitly out of scope): nothing
// here is written to a database, and it is wiped on process restart.
package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/radarhq/mass-assignment-radar/internal/util"
)

// MaxBodyPreviewBytes bounds how much of a request/response body is
// retained in a diagnostic entry.
const MaxBodyPreviewBytes = 2048

// MaxEntries caps the in-memory ring buffer.
const MaxEntries = 200

// Entry is one observed send, retained only in memory.
type Entry struct {
	Time        time.Time `json:"time"`
	Phase       string    `json:"phase"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"statusCode"`
	HadResponse bool      `json:"hadResponse"`
	BodyPreview string    `json:"bodyPreview"`
}

// Monitor is a thread-safe, enable/disable-able ring buffer plus running
// counters over the traffic the adapter sends during scans.
type Monitor struct {
	enabled atomic.Bool

	mu      sync.RWMutex
	entries []Entry

	totalSent      atomic.Int64
	totalResponded atomic.Int64
	totalFailed    atomic.Int64
}

// New returns a Monitor, disabled by default.
func New() *Monitor {
	return &Monitor{entries: make([]Entry, 0, MaxEntries)}
}

// SetEnabled toggles recording. Disabling does not clear history already
// recorded; it only stops Record from appending further entries.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Enabled reports whether recording is currently on.
func (m *Monitor) Enabled() bool {
	return m.enabled.Load()
}

// Record appends one observed send to the ring buffer and updates the
// running counters. A no-op when disabled.
func (m *Monitor) Record(phase, method, url string, statusCode int, hadResponse bool, body []byte) {
	if !m.Enabled() {
		return
	}

	m.totalSent.Add(1)
	if hadResponse {
		m.totalResponded.Add(1)
	} else {
		m.totalFailed.Add(1)
	}

	entry := Entry{
		Time:        time.Now(),
		Phase:       phase,
		Method:      method,
		URL:         url,
		StatusCode:  statusCode,
		HadResponse: hadResponse,
		BodyPreview: util.TruncateLog(string(body), MaxBodyPreviewBytes),
	}

	m.mu.Lock()
	m.entries = append([]Entry{entry}, m.entries...)
	if len(m.entries) > MaxEntries {
		m.entries = m.entries[:MaxEntries]
	}
	m.mu.Unlock()
}

// Recent returns up to limit of the most recently recorded entries,
// newest first.
func (m *Monitor) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, limit)
	copy(out, m.entries[:limit])
	return out
}

// Stats is a snapshot of the running counters.
type Stats struct {
	TotalSent      int64 `json:"totalSent"`
	TotalResponded int64 `json:"totalResponded"`
	TotalFailed    int64 `json:"totalFailed"`
}

// Stats returns a snapshot of the running counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		TotalSent:      m.totalSent.Load(),
		TotalResponded: m.totalResponded.Load(),
		TotalFailed:    m.totalFailed.Load(),
	}
}
