package classify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/jsonmodel"
	"github.com/radarhq/mass-assignment-radar/internal/mutation"
)

func noSleep(int) {}

func mustParseObject(t *testing.T, s string) *jsonmodel.Value {
	t.Helper()
	v, err := jsonmodel.ParseObject([]byte(s))
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", s, err)
	}
	return v
}

func baseContext(t *testing.T, url string) Context {
	return Context{
		BaselineRequestID: "base-1",
		BaselineSpec:      adapter.RequestSpec{Method: "POST", URL: url, Body: []byte(`{"username":"u","plan":"free"}`)},
		BaselineResponse:  &adapter.ResponseSpec{StatusCode: 200, Body: []byte(`{"username":"u","plan":"free"}`)},
		BaselineJSON:      mustParseObject(t, `{"username":"u","plan":"free"}`),
	}
}

func mustMutation(t *testing.T, field, value, existing string) mutation.Mutation {
	t.Helper()
	obj := mustParseObject(t, existing)
	mutated := jsonmodel.SetDeep(obj, field, jsonmodel.String(value))
	body, err := jsonmodel.Serialize(mutated)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return mutation.Mutation{Field: field, Value: jsonmodel.String(value), BodyText: string(body)}
}

func TestClassify_ReflectedInjectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"u","plan":"free","role":"admin"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != KindReflected {
		t.Fatalf("findings = %+v, want one Reflected", findings)
	}
	if findings[0].Message != "response contains injected key" {
		t.Errorf("Message = %q", findings[0].Message)
	}
}

func TestClassify_ReflectedOverriddenValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"u","plan":"admin"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	m := mustMutation(t, "plan", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != KindReflected {
		t.Fatalf("findings = %+v", findings)
	}
	if findings[0].Message != "response contains overridden value" {
		t.Errorf("Message = %q", findings[0].Message)
	}
}

func TestClassify_CodeChangedIndependentOfBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != KindCodeChanged {
		t.Fatalf("findings = %+v, want one CodeChanged", findings)
	}
	if findings[0].Message != "status code changed 200 -> 403" {
		t.Errorf("Message = %q", findings[0].Message)
	}
}

func TestClassify_NonJsonResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != KindNonJsonResponse {
		t.Fatalf("findings = %+v, want one NonJsonResponse", findings)
	}
}

func TestClassify_NoResponseOnTransportFailure(t *testing.T) {
	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, "http://127.0.0.1:1")
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != KindNoResponse {
		t.Fatalf("findings = %+v, want one NoResponse", findings)
	}
	if findings[0].Message != "failed to send request" {
		t.Errorf("Message = %q", findings[0].Message)
	}
}

func TestClassify_PersistenceProbeEmitsPersisted(t *testing.T) {
	var mu sync.Mutex
	persisted := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(string(body), `"role":"admin"`) {
			persisted = true
		}
		if persisted {
			w.Write([]byte(`{"username":"u","plan":"free","role":"admin"}`))
			return
		}
		w.Write([]byte(`{"username":"u","plan":"free"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	sc.ConfirmPersistence = true
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	var kinds []Kind
	for _, f := range findings {
		kinds = append(kinds, f.Kind)
	}
	if len(findings) != 2 || kinds[0] != KindReflected || kinds[1] != KindPersisted {
		t.Fatalf("findings kinds = %v, want [Reflected Persisted]", kinds)
	}
}

func TestClassify_StateChangedViaFollowUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Write([]byte(`{"plan":"free"}`))
			return
		}
		w.Write([]byte(`{"plan":"pro"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	sc.VerifyEnabled = true
	sc.VerifySpec = adapter.RequestSpec{Method: "GET", URL: srv.URL + "/me"}
	sc.VerifyBaselineJSON = mustParseObject(t, `{"plan":"free"}`)
	sc.VerifyBaselineRequestID = "verify-base-1"
	m := mustMutation(t, "plan", "pro", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	var state *Finding
	for i := range findings {
		if findings[i].Kind == KindStateChanged {
			state = &findings[i]
		}
	}
	if state == nil {
		t.Fatalf("findings = %+v, want a StateChanged finding", findings)
	}
	if !strings.Contains(state.Message, "plan: free -> pro") {
		t.Errorf("Message = %q", state.Message)
	}
}

func TestClassify_StateChangedExcludesNoisyKeys(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Write([]byte(`{"plan":"free","updatedAt":"t1"}`))
			return
		}
		w.Write([]byte(`{"plan":"free","updatedAt":"t2"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	sc.VerifyEnabled = true
	sc.VerifySpec = adapter.RequestSpec{Method: "GET", URL: srv.URL + "/me"}
	sc.VerifyBaselineJSON = mustParseObject(t, `{"plan":"free","updatedAt":"t1"}`)
	m := mustMutation(t, "plan", "pro", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for _, f := range findings {
		if f.Kind == KindStateChanged {
			t.Fatalf("expected no StateChanged finding since only the noisy updatedAt key differs, got %+v", f)
		}
	}
}

func TestFindingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"u","plan":"free","role":"admin"}`))
	}))
	defer srv.Close()

	c := New(adapter.New(nil), noSleep)
	sc := baseContext(t, srv.URL)
	m := mustMutation(t, "role", "admin", `{"username":"u","plan":"free"}`)

	findings, err := c.Classify(context.Background(), sc, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := "base-1:Reflected:role:admin"
	if findings[0].ID != want {
		t.Errorf("ID = %q, want %q", findings[0].ID, want)
	}
}
