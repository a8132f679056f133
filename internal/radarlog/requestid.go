// Package radarlog provides request/scan ID context propagation for the
// scanner's RPC surface, and the log-line conventions the rest of the
// repo follows.
package radarlog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	requestIDKey contextKey = "requestId"
	scanIDKey    contextKey = "scanId"
)

// GenerateID creates an 8-character hex ID, used for both RPC request
// IDs and scan IDs.
func GenerateID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// WithRequestID injects an RPC request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID retrieves the RPC request ID from the context, or "" if
// none was set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithScanID injects the running scan's ID into the context, where
// ScanID reads it back. The orchestrator, classifier and adapter do not
// read it: their log lines carry no scan ID.
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, scanIDKey, scanID)
}

// ScanID retrieves the current scan ID from the context, or "" if none
// was set.
func ScanID(ctx context.Context) string {
	if id, ok := ctx.Value(scanIDKey).(string); ok {
		return id
	}
	return ""
}
