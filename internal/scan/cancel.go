package scan

import "sync/atomic"

// CancelToken is a scan-scoped cancellation signal (spec.md §9 design
// note: "replace the global shouldStopScan boolean with an explicit
// scan-token structure"). A host-facing layer constructs one per scan,
// passes it to Run, and keeps a reference so a peer stopScan operation
// can call Stop on the scan currently in flight. Serializing "one scan
// at a time" so that reference is unambiguous remains the caller's
// responsibility (spec.md §5).
type CancelToken struct {
	stopped int32
}

// NewCancelToken returns a token in the not-stopped state.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Stop raises the cancellation signal. Safe to call concurrently with
// Stopped, and safe to call more than once.
func (t *CancelToken) Stop() {
	if t == nil {
		return
	}
	atomic.StoreInt32(&t.stopped, 1)
}

// Stopped reports whether Stop has been called. A nil token is never
// stopped, so callers that have no cancellation mechanism can pass nil.
func (t *CancelToken) Stopped() bool {
	return t != nil && atomic.LoadInt32(&t.stopped) == 1
}
