package radarlog

import "log"

// Scan logs one line for a scan lifecycle event, prefixed with the
// scan ID so concurrent/sequential scans stay distinguishable in the
// process log. Mirrors the teacher's emoji-prefixed log.Printf
// convention.
func Scan(scanID, emoji, format string, args ...any) {
	log.Printf(emoji+" [scan %s] "+format, append([]any{scanID}, args...)...)
}

// Request logs one line for an RPC request, prefixed with its request ID.
func Request(requestID, emoji, format string, args ...any) {
	log.Printf(emoji+" [req %s] "+format, append([]any{requestID}, args...)...)
}
