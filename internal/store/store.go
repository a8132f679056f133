// Package store implements the gorm-backed concrete request store that
// satisfies the Request Adapter's Store collaborator (spec.md §4.1, §6),
// plus the listing/summary/preview/raw-import RPC operations that are
// host-platform concerns rather than scan-engine logic.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
)

// Store is the gorm-backed request store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// migrates the stored_requests table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open request store: %w", err)
	}
	if err := db.AutoMigrate(&StoredRequest{}); err != nil {
		return nil, fmt.Errorf("migrate request store: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open, already-migrated *gorm.DB. Used by tests
// and by callers that share one database handle across stores.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get implements adapter.Store: fetch a stored request and its optional
// recorded response by ID.
func (s *Store) Get(ctx context.Context, id string) (*adapter.SavedRequest, error) {
	var row StoredRequest
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, adapter.ErrRequestNotFound
	}
	return &adapter.SavedRequest{
		ID:       row.ID,
		Spec:     row.toSpec(),
		Response: row.toResponse(),
	}, nil
}

// Save implements adapter.Store: record traffic the adapter sent (and,
// if the transport succeeded, the response it got back) under a fresh
// ID, so later findings can reference it.
func (s *Store) Save(ctx context.Context, spec adapter.RequestSpec, resp *adapter.ResponseSpec) (string, error) {
	id := "req_" + uuid.New().String()
	row := fromSpecAndResponse(id, spec, resp, time.Now().UTC())
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return id, nil
}

// RequestSummary is the listing/summary shape of spec.md §6.
type RequestSummary struct {
	ID         string `json:"id"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	CreatedAt  string `json:"createdAt"`
	HasResponse bool  `json:"hasResponse"`
	StatusCode *int   `json:"statusCode,omitempty"`
}

func toSummary(row StoredRequest) RequestSummary {
	summary := RequestSummary{
		ID:          row.ID,
		Method:      row.Method,
		URL:         row.URL,
		CreatedAt:   row.CreatedAt.Format(time.RFC3339),
		HasResponse: row.HasResponse,
	}
	if row.HasResponse {
		status := row.Status
		summary.StatusCode = &status
	}
	return summary
}

// ListJSON implements listJsonRequests (spec.md §6): rows are returned
// most-recent-first, excluding anything carrying the scanner's own
// marker header and anything that doesn't look JSON-bodied (spec.md
// §4.4 step 2), optionally narrowed by a case-insensitive substring
// match against the URL.
func (s *Store) ListJSON(ctx context.Context, urlFilter string, limit int) ([]RequestSummary, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1")
	}
	if limit > 5000 {
		return nil, fmt.Errorf("limit must be <= 5000")
	}

	var rows []StoredRequest
	q := s.db.WithContext(ctx).Order("created_at desc")
	if trimmed := strings.TrimSpace(urlFilter); trimmed != "" {
		q = q.Where("url LIKE ?", "%"+trimmed+"%")
	}
	// Over-fetch a little so filtering out marker/non-JSON traffic still
	// leaves room to satisfy limit; a production store would push the
	// marker-header filter into SQL instead of decoding every header blob.
	if err := q.Limit(limit * 4).Find(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]RequestSummary, 0, limit)
	for _, row := range rows {
		if len(summaries) >= limit {
			break
		}
		headers := decodeHeaders(row.HeadersJSON)
		if _, marked := headers.Get(adapter.MarkerHeader); marked {
			continue
		}
		if !adapter.IsJSONish(headers, row.Body) {
			continue
		}
		summaries = append(summaries, toSummary(row))
	}
	return summaries, nil
}

// GetSummary implements getRequestSummary (spec.md §6).
func (s *Store) GetSummary(ctx context.Context, id string) (RequestSummary, error) {
	var row StoredRequest
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return RequestSummary{}, adapter.ErrRequestNotFound
	}
	return toSummary(row), nil
}

// maxPreviewBodyLen bounds getRequestPreview's rendered body (spec.md §6).
const maxPreviewBodyLen = 200_000

// Preview is the result of getRequestPreview (spec.md §6).
type Preview struct {
	RequestID    string  `json:"requestId"`
	RequestText  string  `json:"requestText"`
	ResponseText *string `json:"responseText,omitempty"`
}

// GetPreview implements getRequestPreview (spec.md §6): renders
// "<METHOD> <URL>\n<headers>\n\n<body?>" for the request, and the same
// shape for the response if one was recorded.
func (s *Store) GetPreview(ctx context.Context, id string) (Preview, error) {
	var row StoredRequest
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return Preview{}, adapter.ErrRequestNotFound
	}

	spec := row.toSpec()
	requestText := renderPreview(spec.Method, spec.URL, spec.Headers, spec.Body)

	preview := Preview{RequestID: row.ID, RequestText: requestText}
	if resp := row.toResponse(); resp != nil {
		statusLine := fmt.Sprintf("%d", resp.StatusCode)
		responseText := renderPreview(statusLine, "", resp.Headers, resp.Body)
		preview.ResponseText = &responseText
	}
	return preview, nil
}

func renderPreview(methodOrStatus, url string, headers adapter.Headers, body []byte) string {
	var b strings.Builder
	if url != "" {
		fmt.Fprintf(&b, "%s %s\n", methodOrStatus, url)
	} else {
		fmt.Fprintf(&b, "%s\n", methodOrStatus)
	}
	for _, f := range headers {
		for _, v := range f.Values {
			fmt.Fprintf(&b, "%s: %s\n", f.Name, v)
		}
	}
	b.WriteString("\n")
	text := string(body)
	if len(text) > maxPreviewBodyLen {
		text = text[:maxPreviewBodyLen]
	}
	b.WriteString(text)
	return b.String()
}

// SaveFromRaw implements saveRequestFromRaw (spec.md §6): parses a
// wire-format capture via adapter.ParseRaw and stores it with no
// recorded response, ready to be used as a scan target.
func (s *Store) SaveFromRaw(ctx context.Context, raw adapter.RawRequest) (RequestSummary, error) {
	spec, err := adapter.ParseRaw(raw)
	if err != nil {
		return RequestSummary{}, err
	}
	id := "req_" + uuid.New().String()
	row := fromSpecAndResponse(id, spec, nil, time.Now().UTC())
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return RequestSummary{}, err
	}
	return toSummary(row), nil
}
