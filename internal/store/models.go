package store

import (
	"time"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/jsonenc"
)

// StoredRequest is the gorm-backed concrete implementation of the host
// platform's request store collaborator (spec.md §4.1, §6): a stored
// request, the response it was recorded with (if any), and the bits
// `listJsonRequests` needs to filter and summarize without refetching.
type StoredRequest struct {
	ID            string `gorm:"primaryKey"`
	Method        string `gorm:"not null"`
	URL           string `gorm:"not null"`
	HeadersJSON   string `gorm:"type:text"`
	Body          []byte `gorm:"type:blob"`
	HasResponse   bool   `gorm:"index"`
	Status        int
	RespHeadersJSON string `gorm:"type:text"`
	RespBody      []byte `gorm:"type:blob"`
	CreatedAt     time.Time
}

// TableName pins the table name so renaming the Go type doesn't silently
// migrate to a new table.
func (StoredRequest) TableName() string { return "stored_requests" }

func encodeHeaders(h adapter.Headers) string {
	if len(h) == 0 {
		return ""
	}
	data, err := jsonenc.Marshal(h)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeHeaders(s string) adapter.Headers {
	if s == "" {
		return nil
	}
	var h adapter.Headers
	if err := jsonenc.Unmarshal([]byte(s), &h); err != nil {
		return nil
	}
	return h
}

// toSpec reconstructs the RequestSpec this row was stored from.
func (r StoredRequest) toSpec() adapter.RequestSpec {
	return adapter.RequestSpec{
		Method:  r.Method,
		URL:     r.URL,
		Headers: decodeHeaders(r.HeadersJSON),
		Body:    append([]byte(nil), r.Body...),
	}
}

// toResponse reconstructs the recorded ResponseSpec, or nil if none was
// stored.
func (r StoredRequest) toResponse() *adapter.ResponseSpec {
	if !r.HasResponse {
		return nil
	}
	return &adapter.ResponseSpec{
		StatusCode: r.Status,
		Headers:    decodeHeaders(r.RespHeadersJSON),
		Body:       append([]byte(nil), r.RespBody...),
	}
}

func fromSpecAndResponse(id string, spec adapter.RequestSpec, resp *adapter.ResponseSpec, createdAt time.Time) StoredRequest {
	row := StoredRequest{
		ID:          id,
		Method:      spec.Method,
		URL:         spec.URL,
		HeadersJSON: encodeHeaders(spec.Headers),
		Body:        append([]byte(nil), spec.Body...),
		CreatedAt:   createdAt,
	}
	if resp != nil {
		row.HasResponse = true
		row.Status = resp.StatusCode
		row.RespHeadersJSON = encodeHeaders(resp.Headers)
		row.RespBody = append([]byte(nil), resp.Body...)
	}
	return row
}
