// Package adapter implements the Request Adapter (spec.md §4.1): it
// wraps the host platform's request store, clones stored requests into
// mutable specs, sends requests and awaits responses, and parses raw
// wire-format HTTP/1 requests. It is the only component that performs
// I/O on the scan orchestrator's behalf.
package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radarhq/mass-assignment-radar/internal/observability"
	"github.com/radarhq/mass-assignment-radar/internal/radarlog"
	"github.com/radarhq/mass-assignment-radar/internal/util"
)

// MarkerHeader is injected on every request the adapter sends for a
// scan, tagging the phase that produced it. Request listings use its
// mere presence (any value) to filter out plugin-generated traffic.
const MarkerHeader = "X-Mass-Assignment-Radar"

// Marker phase values (spec.md §4.1, §6).
const (
	PhaseBaseline       = "baseline"
	PhaseMutated        = "mutated"
	PhasePersisted      = "persisted"
	PhaseVerifyBaseline = "verify-baseline"
	PhaseVerifyMutated  = "verify-mutated"
)

// ErrRequestNotFound is returned by Get (by way of the Store) when no
// stored request matches the given ID.
var ErrRequestNotFound = errors.New("request not found")

// RequestSpec is a mutable HTTP request specification: everything needed
// to send a request, independent of where it came from.
type RequestSpec struct {
	Method  string
	URL     string
	Headers Headers
	Body    []byte
}

// ResponseSpec is the observed outcome of sending a RequestSpec.
type ResponseSpec struct {
	StatusCode int
	Headers    Headers
	Body       []byte
}

// SavedRequest is a stored request plus its optional previously-recorded
// response, as returned by Store.Get.
type SavedRequest struct {
	ID       string
	Spec     RequestSpec
	Response *ResponseSpec
}

// Sent is the result of Send: the request actually transmitted (with the
// marker header stamped in) and, if the transport succeeded, the
// response received. A nil Response means "no response" (spec.md §4.5
// NoResponse / §7 transport errors) — the caller, not this package,
// decides whether that terminates the scan or becomes a finding.
// RequestID is the store-assigned ID for the transmitted/received pair,
// when the adapter was constructed with a Store and persistence of the
// sent traffic succeeded; it is empty otherwise (findings simply omit
// the optional request-ID field they would have attached).
type Sent struct {
	RequestID string
	Request   RequestSpec
	Response  *ResponseSpec
}

// Store is the host platform's request store collaborator (spec.md §1,
// §4.1, §6): persistent lookup by ID, and recording of traffic the
// adapter sends so findings can reference it by ID. Concrete
// implementations (e.g. internal/store's gorm-backed store) live outside
// this package to keep the adapter free of storage concerns.
type Store interface {
	Get(ctx context.Context, id string) (*SavedRequest, error)
	Save(ctx context.Context, spec RequestSpec, resp *ResponseSpec) (id string, err error)
}

// Adapter implements the Request Adapter component.
type Adapter struct {
	store      Store
	httpClient *http.Client

	// Monitor, if set, records every Send outcome for the diagnostics
	// RPC surface (spec.md §6 is silent on this; it is a host-platform
	// concern layered on top, not scan-engine logic). Left nil, Send
	// skips recording entirely.
	Monitor *observability.Monitor
}

// New returns an Adapter backed by store, using a dedicated HTTP client
// with no automatic redirect following or retries — the adapter never
// retries; a transport failure always surfaces as a "no response"
// outcome (spec.md §4.1).
func New(store Store) *Adapter {
	return &Adapter{
		store: store,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Get fetches a stored request by (trimmed) ID.
func (a *Adapter) Get(ctx context.Context, id string) (*SavedRequest, error) {
	trimmed := strings.TrimSpace(id)
	return a.store.Get(ctx, trimmed)
}

// SpecFrom clones a SavedRequest into an independent, mutable RequestSpec
// (spec_from). The clone shares no backing arrays with the original.
func SpecFrom(saved *SavedRequest) RequestSpec {
	return RequestSpec{
		Method:  saved.Spec.Method,
		URL:     saved.Spec.URL,
		Headers: saved.Spec.Headers.Clone(),
		Body:    append([]byte(nil), saved.Spec.Body...),
	}
}

// Send transmits spec after stamping it with the scan's marker header
// for the given phase, and returns the observed outcome. A transport
// failure (DNS, connection refused, timeout, etc.) is reported as
// (Sent{Request: stamped spec, Response: nil}, err) rather than retried.
func (a *Adapter) Send(ctx context.Context, spec RequestSpec, phase string) (Sent, error) {
	stamped := spec
	stamped.Headers = spec.Headers.WithSet(MarkerHeader, phase)

	httpReq, err := http.NewRequestWithContext(ctx, stamped.Method, stamped.URL, bytes.NewReader(stamped.Body))
	if err != nil {
		a.record(phase, stamped, nil)
		return Sent{Request: stamped}, err
	}
	for _, f := range stamped.Headers {
		for _, v := range f.Values {
			httpReq.Header.Add(f.Name, v)
		}
	}
	if httpReq.Header.Get("Content-Length") == "" {
		httpReq.ContentLength = int64(len(stamped.Body))
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.record(phase, stamped, nil)
		radarlog.Request(radarlog.RequestID(ctx), "⚠️", "%s %s: %v", phase, stamped.URL, err)
		return Sent{Request: stamped}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.record(phase, stamped, nil)
		return Sent{Request: stamped}, err
	}

	respSpec := &ResponseSpec{
		StatusCode: resp.StatusCode,
		Headers:    headersFromHTTP(resp.Header),
		Body:       body,
	}
	a.record(phase, stamped, respSpec)
	radarlog.Request(radarlog.RequestID(ctx), "📡", "%s %s -> %d: %s", phase, stamped.URL, resp.StatusCode, util.TruncateBytes(body))

	var id string
	if a.store != nil {
		if savedID, saveErr := a.store.Save(ctx, stamped, respSpec); saveErr == nil {
			id = savedID
		}
	}

	return Sent{RequestID: id, Request: stamped, Response: respSpec}, nil
}

// record forwards the outcome of one Send to the configured Monitor, a
// no-op when Monitor is nil or disabled.
func (a *Adapter) record(phase string, req RequestSpec, resp *ResponseSpec) {
	if a.Monitor == nil {
		return
	}
	if resp == nil {
		a.Monitor.Record(phase, req.Method, req.URL, 0, false, nil)
		return
	}
	a.Monitor.Record(phase, req.Method, req.URL, resp.StatusCode, true, resp.Body)
}

func headersFromHTTP(h http.Header) Headers {
	out := make(Headers, 0, len(h))
	for name, values := range h {
		out = append(out, HeaderField{Name: name, Values: append([]string(nil), values...)})
	}
	return out
}
