// Package rpc exposes the scanner's host-mediated RPC surface
// (spec.md §6) over HTTP, wiring together the adapter, store,
// findings sink, and scan orchestrator. Every endpoint answers with
// the tagged-union result envelope described in envelope.go.
package rpc

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/classify"
	"github.com/radarhq/mass-assignment-radar/internal/findingsdb"
	"github.com/radarhq/mass-assignment-radar/internal/observability"
	"github.com/radarhq/mass-assignment-radar/internal/radarlog"
	"github.com/radarhq/mass-assignment-radar/internal/scan"
	"github.com/radarhq/mass-assignment-radar/internal/store"
)

// Server holds everything runScan/stopScan/etc. need and enforces the
// "one scan at a time" contract (spec.md §4.4): concurrent runScan
// calls are rejected rather than interleaved.
type Server struct {
	Adapter       *adapter.Adapter
	Store         *store.Store
	Findings      *findingsdb.Sink
	Monitor       *observability.Monitor
	DefaultConfig scan.ScanConfig

	// APIKey gates every /api route behind APIKeyAuth when non-empty.
	// Left empty, the RPC surface is unauthenticated (local/dev mode).
	APIKey string

	mu     sync.Mutex
	cancel *scan.CancelToken
}

// NewServer wires the given dependencies into a Server using the
// given default ScanConfig for runScan calls that omit one. The
// adapter is wired to record every send into mon, enabled by default
// so GET /api/monitor reflects live traffic without a separate toggle
// call.
func NewServer(ad *adapter.Adapter, st *store.Store, findings *findingsdb.Sink, mon *observability.Monitor, defaultConfig scan.ScanConfig) *Server {
	mon.SetEnabled(true)
	ad.Monitor = mon
	return &Server{
		Adapter:       ad,
		Store:         st,
		Findings:      findings,
		Monitor:       mon,
		DefaultConfig: defaultConfig,
	}
}

// Router builds the chi router exposing every RPC endpoint under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyAuth(s.APIKey))
		r.Post("/runScan", s.handleRunScan)
		r.Post("/stopScan", s.handleStopScan)
		r.Get("/requests", s.handleListJSONRequests)
		r.Get("/requests/{id}", s.handleGetRequestSummary)
		r.Get("/requests/{id}/preview", s.handleGetRequestPreview)
		r.Post("/requests/raw", s.handleSaveRequestFromRaw)
		r.Post("/findings", s.handleCreateFindings)
		r.Get("/monitor", s.handleGetMonitor)
	})

	return r
}

type runScanRequest struct {
	Target scan.ScanTarget  `json:"target"`
	Config *scan.ScanConfig `json:"config,omitempty"`
}

// handleRunScan implements runScan: claims the single in-flight scan
// slot, runs the state machine to completion (or until stopScan is
// called), and always releases the slot before returning.
func (s *Server) handleRunScan(w http.ResponseWriter, r *http.Request) {
	var req runScanRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, "invalid request body: "+err.Error())
		return
	}

	cfg := s.DefaultConfig
	if req.Config != nil {
		cfg = *req.Config
	}

	cancel, err := s.claimScanSlot()
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	defer s.releaseScanSlot()

	scanID := radarlog.GenerateID()
	ctx := radarlog.WithScanID(r.Context(), scanID)
	radarlog.Scan(scanID, "🔎", "starting against requestId=%s", req.Target.RequestID)

	result, err := scan.Run(ctx, s.Adapter, req.Target, cfg, cancel)
	if err != nil {
		radarlog.Scan(scanID, "⚠️", "failed: %v", err)
		writeErr(w, err.Error())
		return
	}

	radarlog.Scan(scanID, "✅", "done, %d finding(s)", len(result.Findings))
	writeOk(w, result)
}

// claimScanSlot enforces the one-scan-at-a-time contract (spec.md §4.4,
// §9): a scan already in flight rejects a second runScan outright
// rather than queuing it.
func (s *Server) claimScanSlot() (*scan.CancelToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil, errScanInProgress
	}
	s.cancel = scan.NewCancelToken()
	return s.cancel, nil
}

func (s *Server) releaseScanSlot() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// handleStopScan implements stopScan: sets the cancellation flag on
// whichever scan is currently running. A no-op (not an error) when no
// scan is in flight, since cancellation is advisory (spec.md §4.4).
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel.Stop()
	}
	writeOk(w, map[string]any{})
}

func (s *Server) handleListJSONRequests(w http.ResponseWriter, r *http.Request) {
	urlFilter := r.URL.Query().Get("urlFilter")
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			writeErr(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	summaries, err := s.Store.ListJSON(r.Context(), urlFilter, limit)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w, summaries)
}

func (s *Server) handleGetRequestSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := s.Store.GetSummary(r.Context(), id)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w, summary)
}

func (s *Server) handleGetRequestPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	preview, err := s.Store.GetPreview(r.Context(), id)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w, preview)
}

func (s *Server) handleSaveRequestFromRaw(w http.ResponseWriter, r *http.Request) {
	var raw adapter.RawRequest
	if err := decodeBody(r, &raw); err != nil {
		writeErr(w, "invalid request body: "+err.Error())
		return
	}

	summary, err := s.Store.SaveFromRaw(r.Context(), raw)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w, summary)
}

type monitorResult struct {
	Stats  observability.Stats   `json:"stats"`
	Recent []observability.Entry `json:"recent"`
}

// handleGetMonitor exposes the adapter's in-memory traffic diagnostics
// (spec.md is silent on this; it is a host-platform ambient concern,
// not scan-history persistence). Not a spec.md §6 operation name.
func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			writeErr(w, "limit must be an integer")
			return
		}
		limit = parsed
	}
	writeOk(w, monitorResult{Stats: s.Monitor.Stats(), Recent: s.Monitor.Recent(limit)})
}

type createFindingsRequest struct {
	RequestID string             `json:"requestId"`
	Findings  []classify.Finding `json:"findings"`
}

type createFindingsResult struct {
	Created int `json:"created"`
}

func (s *Server) handleCreateFindings(w http.ResponseWriter, r *http.Request) {
	var req createFindingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, "invalid request body: "+err.Error())
		return
	}

	created, err := s.Findings.CreateFindings(r.Context(), req.RequestID, req.Findings)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w, createFindingsResult{Created: created})
}
