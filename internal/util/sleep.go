package util

import "time"

// BusyWaitMillis blocks for ms milliseconds of real wall-clock time. Scan
// delays (spec.md §5, §9) must elapse real time before the dependent
// send regardless of how the surrounding loop is scheduled, so this
// spins on a deadline rather than handing control to a scheduler that
// might reorder it past a concurrent cancellation. ms <= 0 returns
// immediately.
func BusyWaitMillis(ms int) {
	if ms <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
	for time.Now().Before(deadline) {
	}
}
