package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/findingsdb"
	"github.com/radarhq/mass-assignment-radar/internal/mutation"
	"github.com/radarhq/mass-assignment-radar/internal/observability"
	"github.com/radarhq/mass-assignment-radar/internal/scan"
	"github.com/radarhq/mass-assignment-radar/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	fs, err := findingsdb.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("findingsdb.Open: %v", err)
	}
	ad := adapter.New(st)
	s := NewServer(ad, st, fs, observability.New(), scan.ScanConfig{
		MaxMutations:             3,
		IncludeBuiltInCandidates: true,
		ValueModes:               mutation.ValueModes{BooleanTrue: true},
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRunScanUnknownTargetReturnsErrorEnvelope(t *testing.T) {
	_, srv := newTestServer(t)

	body, _ := json.Marshal(runScanRequest{Target: scan.ScanTarget{RequestID: "missing"}})
	resp, err := http.Post(srv.URL+"/api/runScan", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	env := decodeEnvelope(t, resp)
	if env.Kind != "Error" {
		t.Errorf("kind = %q, want Error", env.Kind)
	}
}

func TestStopScanIsNoOpWithoutRunningScan(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/stopScan", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if env.Kind != "Ok" {
		t.Errorf("kind = %q, want Ok", env.Kind)
	}
}

func TestRunScanRejectsConcurrentCall(t *testing.T) {
	s, _ := newTestServer(t)

	cancel, err := s.claimScanSlot()
	if err != nil {
		t.Fatalf("claimScanSlot: %v", err)
	}
	defer cancel.Stop()

	if _, err := s.claimScanSlot(); err != errScanInProgress {
		t.Errorf("claimScanSlot() error = %v, want errScanInProgress", err)
	}
}

func TestListJSONRequestsReturnsOk(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/requests")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if env.Kind != "Ok" {
		t.Errorf("kind = %q, want Ok", env.Kind)
	}
}

func TestSaveRequestFromRawAndFetchSummary(t *testing.T) {
	_, srv := newTestServer(t)

	raw := adapter.RawRequest{
		Host: "target.example",
		Port: 443,
		Raw:  "POST /signup HTTP/1.1\nContent-Type: application/json\n\n{\"email\":\"a@b.com\"}",
	}
	body, _ := json.Marshal(raw)
	resp, err := http.Post(srv.URL+"/api/requests/raw", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if env.Kind != "Ok" {
		t.Fatalf("kind = %q, want Ok: %v", env.Kind, env.Error)
	}

	value, ok := env.Value.(map[string]any)
	if !ok {
		t.Fatalf("value is not an object: %#v", env.Value)
	}
	id, _ := value["id"].(string)
	if id == "" {
		t.Fatalf("missing id in response: %#v", value)
	}

	summaryResp, err := http.Get(srv.URL + "/api/requests/" + id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	summaryEnv := decodeEnvelope(t, summaryResp)
	if summaryEnv.Kind != "Ok" {
		t.Errorf("kind = %q, want Ok", summaryEnv.Kind)
	}
}

func TestGetMonitorReflectsAdapterTraffic(t *testing.T) {
	s, srv := newTestServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	if _, err := s.Adapter.Send(context.Background(), adapter.RequestSpec{Method: "GET", URL: upstream.URL}, adapter.PhaseBaseline); err != nil {
		t.Fatalf("Send: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/monitor")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if env.Kind != "Ok" {
		t.Fatalf("kind = %q, want Ok", env.Kind)
	}

	value, ok := env.Value.(map[string]any)
	if !ok {
		t.Fatalf("value is not an object: %#v", env.Value)
	}
	stats, ok := value["stats"].(map[string]any)
	if !ok {
		t.Fatalf("missing stats: %#v", value)
	}
	if stats["totalSent"].(float64) < 1 {
		t.Errorf("totalSent = %v, want >= 1", stats["totalSent"])
	}
}

func TestCreateFindingsRejectsInvalidBody(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/findings", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if env.Kind != "Error" {
		t.Errorf("kind = %q, want Error", env.Kind)
	}
}
