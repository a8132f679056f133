package adapter

import (
	"strings"

	"github.com/radarhq/mass-assignment-radar/internal/jsonmodel"
)

// maxSniffBytes bounds how large a body may be before IsJSONish gives up
// trying to parse it speculatively (spec.md §4.4 step 2, §5).
const maxSniffBytes = 1_000_000

// IsJSONish reports whether a request looks like a JSON-bodied request:
// its Content-Type header contains "application/json", or its body
// (trimmed) begins with "{" and parses as a JSON object. Shared by the
// scan orchestrator's BASELINE_ENSURE step and the request store's
// listJsonRequests filter (spec.md §4.4 step 2, §6).
func IsJSONish(headers Headers, body []byte) bool {
	ct, _ := headers.Get("Content-Type")
	if strings.Contains(strings.ToLower(ct), "application/json") {
		return true
	}
	if len(body) > maxSniffBytes {
		return false
	}
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	_, err := jsonmodel.ParseObject(body)
	return err == nil
}
