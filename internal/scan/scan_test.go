package scan

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/classify"
	"github.com/radarhq/mass-assignment-radar/internal/mutation"
)

// fakeStore is a minimal in-memory adapter.Store for orchestrator tests.
type fakeStore struct {
	saved *adapter.SavedRequest
}

func (f *fakeStore) Get(ctx context.Context, id string) (*adapter.SavedRequest, error) {
	if f.saved == nil || f.saved.ID != id {
		return nil, adapter.ErrRequestNotFound
	}
	return f.saved, nil
}

func (f *fakeStore) Save(ctx context.Context, spec adapter.RequestSpec, resp *adapter.ResponseSpec) (string, error) {
	return "sent-1", nil
}

// echoServer parses the request body as a generic JSON object and
// writes it straight back, so every injected field is reflected.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out, _ := json.Marshal(m)
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	}))
}

func baseConfig() ScanConfig {
	return ScanConfig{
		MaxMutations:             3,
		IncludeBuiltInCandidates: true,
		MutateExistingFields:     false,
		ValueModes:               mutation.ValueModes{BooleanTrue: true},
	}
}

func TestRun_EndToEndReflected(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	store := &fakeStore{saved: &adapter.SavedRequest{
		ID: "req-1",
		Spec: adapter.RequestSpec{
			Method:  "POST",
			URL:     srv.URL + "/users",
			Headers: adapter.Headers{{Name: "Content-Type", Values: []string{"application/json"}}},
			Body:    []byte(`{"username":"u"}`),
		},
	}}
	ad := adapter.New(store)

	result, err := Run(context.Background(), ad, ScanTarget{RequestID: "req-1"}, baseConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.BaselineRequestID != "req-1" {
		t.Errorf("BaselineRequestID = %q", result.BaselineRequestID)
	}
	if len(result.Findings) != 3 {
		t.Fatalf("Findings = %+v, want 3 (maxMutations cap)", result.Findings)
	}
	wantFields := []string{"isAdmin", "admin", "is_staff"}
	for i, f := range result.Findings {
		if f.Kind != classify.KindReflected {
			t.Errorf("finding[%d].Kind = %v, want Reflected", i, f.Kind)
		}
		if f.Field != wantFields[i] {
			t.Errorf("finding[%d].Field = %q, want %q", i, f.Field, wantFields[i])
		}
		if f.Message != "response contains injected key" {
			t.Errorf("finding[%d].Message = %q", i, f.Message)
		}
	}
}

func TestRun_TargetNotFound(t *testing.T) {
	ad := adapter.New(&fakeStore{})
	_, err := Run(context.Background(), ad, ScanTarget{RequestID: "missing"}, baseConfig(), nil)
	if err == nil || err.Error() != "request missing not found" {
		t.Fatalf("err = %v, want \"request missing not found\"", err)
	}
	se, ok := err.(*Error)
	if !ok || se.Kind != KindPrecondition {
		t.Fatalf("err kind = %+v, want Precondition", err)
	}
}

func TestRun_RequestIDRequired(t *testing.T) {
	ad := adapter.New(&fakeStore{})
	_, err := Run(context.Background(), ad, ScanTarget{RequestID: "  "}, baseConfig(), nil)
	if err == nil || err.Error() != "requestId is required" {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_InvalidConfigRejectedBeforeStoreLookup(t *testing.T) {
	ad := adapter.New(&fakeStore{})
	cfg := baseConfig()
	cfg.MaxMutations = 0
	_, err := Run(context.Background(), ad, ScanTarget{RequestID: "req-1"}, cfg, nil)
	if err == nil || err.Error() != "maxMutations must be >= 1" {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_NoMutationsWhenAllFieldsExist(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	store := &fakeStore{saved: &adapter.SavedRequest{
		ID: "req-2",
		Spec: adapter.RequestSpec{
			Method: "POST",
			URL:    srv.URL,
			Headers: adapter.Headers{{Name: "Content-Type", Values: []string{"application/json"}}},
			Body: []byte(`{"isAdmin":true,"admin":true,"is_staff":true,"isStaff":true,"isSuperuser":true,
				"role":true,"roles":true,"permissions":true,"tier":true,"plan":true}`),
		},
	}}
	ad := adapter.New(store)
	cfg := baseConfig()
	cfg.MutateExistingFields = false

	_, err := Run(context.Background(), ad, ScanTarget{RequestID: "req-2"}, cfg, nil)
	want := "no mutations generated (all candidate fields already exist in request body)"
	if err == nil || err.Error() != want {
		t.Fatalf("err = %v, want %q", err, want)
	}
}

func TestRun_CancellationStopsBeforeFirstMutation(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	store := &fakeStore{saved: &adapter.SavedRequest{
		ID: "req-3",
		Spec: adapter.RequestSpec{
			Method:  "POST",
			URL:     srv.URL,
			Headers: adapter.Headers{{Name: "Content-Type", Values: []string{"application/json"}}},
			Body:    []byte(`{"username":"u"}`),
		},
	}}
	ad := adapter.New(store)
	cancel := NewCancelToken()
	cancel.Stop()

	result, err := Run(context.Background(), ad, ScanTarget{RequestID: "req-3"}, baseConfig(), cancel)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Errorf("Findings = %+v, want none once cancelled before the loop starts", result.Findings)
	}
	if result.BaselineRequestID != "req-3" {
		t.Errorf("BaselineRequestID = %q", result.BaselineRequestID)
	}
}

func TestRun_BodyNotJSONObject(t *testing.T) {
	store := &fakeStore{saved: &adapter.SavedRequest{
		ID: "req-4",
		Spec: adapter.RequestSpec{
			Method:  "POST",
			URL:     "http://example.invalid",
			Headers: adapter.Headers{{Name: "Content-Type", Values: []string{"application/json"}}},
			Body:    []byte(`[1,2,3]`),
		},
	}}
	ad := adapter.New(store)
	_, err := Run(context.Background(), ad, ScanTarget{RequestID: "req-4"}, baseConfig(), nil)
	if err == nil || err.Error() != "request JSON body must be an object" {
		t.Fatalf("err = %v", err)
	}
}
