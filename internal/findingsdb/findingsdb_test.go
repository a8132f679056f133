package findingsdb

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/radarhq/mass-assignment-radar/internal/classify"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&StoredFinding{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestCreateFindingsRejectsEmpty(t *testing.T) {
	s := newTestSink(t)
	_, err := s.CreateFindings(context.Background(), "req-1", nil)
	if err == nil || err.Error() != "findings is empty" {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateFindingsRejectsTooMany(t *testing.T) {
	s := newTestSink(t)
	findings := make([]classify.Finding, 201)
	for i := range findings {
		findings[i] = classify.Finding{Field: "role", Kind: classify.KindReflected}
	}
	_, err := s.CreateFindings(context.Background(), "req-1", findings)
	if err == nil || err.Error() != "too many findings" {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateFindingsDedupesByOverwrite(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	first := []classify.Finding{{
		Field: "role", Kind: classify.KindReflected, Value: "admin",
		MutatedRequestID: "mut-1", Message: "response contains injected key",
	}}
	created, err := s.CreateFindings(ctx, "req-1", first)
	if err != nil || created != 1 {
		t.Fatalf("CreateFindings: created=%d err=%v", created, err)
	}

	second := []classify.Finding{{
		Field: "role", Kind: classify.KindReflected, Value: "admin",
		MutatedRequestID: "mut-2", Message: "response contains overridden value",
	}}
	if _, err := s.CreateFindings(ctx, "req-1", second); err != nil {
		t.Fatalf("CreateFindings (second): %v", err)
	}

	var count int64
	s.db.Model(&StoredFinding{}).Where("dedupe_key = ?", "req-1:Reflected:role").Count(&count)
	if count != 1 {
		t.Fatalf("count = %d, want 1 (upsert, not insert)", count)
	}

	var row StoredFinding
	s.db.Where("dedupe_key = ?", "req-1:Reflected:role").First(&row)
	if row.AttachedRequestID != "mut-2" || row.Message != "response contains overridden value" {
		t.Errorf("row = %+v, want overwritten by the second call", row)
	}
}

func TestAttachedRequestIDPreferenceOrder(t *testing.T) {
	cases := []struct {
		name string
		f    classify.Finding
		want string
	}{
		{"state changed prefers verify", classify.Finding{Kind: classify.KindStateChanged, VerifyRequestID: "v1", MutatedRequestID: "m1", RequestID: "b1"}, "v1"},
		{"persisted prefers persisted", classify.Finding{Kind: classify.KindPersisted, PersistedRequestID: "p1", MutatedRequestID: "m1", RequestID: "b1"}, "p1"},
		{"reflected falls back to mutated", classify.Finding{Kind: classify.KindReflected, MutatedRequestID: "m1", RequestID: "b1"}, "m1"},
		{"no mutated falls back to baseline", classify.Finding{Kind: classify.KindNoResponse, RequestID: "b1"}, "b1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := attachedRequestID(c.f); got != c.want {
				t.Errorf("attachedRequestID() = %q, want %q", got, c.want)
			}
		})
	}
}
