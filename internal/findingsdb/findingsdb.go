// Package findingsdb implements the gorm-backed concrete findings sink
// that satisfies spec.md §6's createFindings contract: a deduplicated
// issue database keyed by (baseline request, kind, field).
package findingsdb

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/radarhq/mass-assignment-radar/internal/classify"
)

// maxFindingsPerCall caps a single createFindings call (spec.md §6).
const maxFindingsPerCall = 200

// reporterName is the fixed reporter attributed to every finding this
// sink creates (spec.md §6).
const reporterName = "Mass Assignment Radar"

// StoredFinding is one row of the findings sink. DedupeKey carries the
// "coalesce by overwrite" semantics spec.md §4.5 defers to the sink.
type StoredFinding struct {
	ID                 uint   `gorm:"primaryKey"`
	DedupeKey          string `gorm:"uniqueIndex;not null"`
	Title              string `gorm:"not null"`
	Reporter           string `gorm:"not null"`
	RequestID          string `gorm:"index;not null"`
	AttachedRequestID  string
	Field              string
	Value              string
	Kind               string
	Message            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (StoredFinding) TableName() string { return "stored_findings" }

// Sink is the gorm-backed findings sink.
type Sink struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// migrates the stored_findings table.
func Open(path string) (*Sink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open findings sink: %w", err)
	}
	if err := db.AutoMigrate(&StoredFinding{}); err != nil {
		return nil, fmt.Errorf("migrate findings sink: %w", err)
	}
	return &Sink{db: db}, nil
}

// New wraps an already-open, already-migrated *gorm.DB.
func New(db *gorm.DB) *Sink {
	return &Sink{db: db}
}

// CreateFindings implements createFindings (spec.md §6): each finding is
// upserted on its dedupe key, titled, attributed to the fixed reporter,
// and attached to whichever concrete stored request best represents it
// (the verify request for StateChanged, the persisted request for
// Persisted, else the mutated request, else the baseline).
func (s *Sink) CreateFindings(ctx context.Context, requestID string, findings []classify.Finding) (int, error) {
	if len(findings) == 0 {
		return 0, fmt.Errorf("findings is empty")
	}
	if len(findings) > maxFindingsPerCall {
		return 0, fmt.Errorf("too many findings")
	}

	rows := make([]StoredFinding, 0, len(findings))
	now := time.Now().UTC()
	for _, f := range findings {
		rows = append(rows, StoredFinding{
			DedupeKey:         fmt.Sprintf("%s:%s:%s", requestID, f.Kind, f.Field),
			Title:             fmt.Sprintf("Mass Assignment Radar: %s %s", f.Kind, f.Field),
			Reporter:          reporterName,
			RequestID:         requestID,
			AttachedRequestID: attachedRequestID(f),
			Field:             f.Field,
			Value:             f.Value,
			Kind:              string(f.Kind),
			Message:           f.Message,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "reporter", "attached_request_id", "value", "message", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to create findings: %w", err)
	}
	return len(rows), nil
}

// attachedRequestID picks the concrete stored request a finding is
// attached to, per spec.md §6's preference order.
func attachedRequestID(f classify.Finding) string {
	switch f.Kind {
	case classify.KindStateChanged:
		if f.VerifyRequestID != "" {
			return f.VerifyRequestID
		}
	case classify.KindPersisted:
		if f.PersistedRequestID != "" {
			return f.PersistedRequestID
		}
	}
	if f.MutatedRequestID != "" {
		return f.MutatedRequestID
	}
	return f.RequestID
}
