// Package classify implements the Finding Classifier (spec.md §4.5): the
// per-mutation decision rules that turn a baseline response, a mutated
// response, and the optional persistence/verification follow-ups into
// zero or more findings.
package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/jsonmodel"
	"github.com/radarhq/mass-assignment-radar/internal/mutation"
	"github.com/radarhq/mass-assignment-radar/internal/util"
)

// Kind is the finding outcome label.
type Kind string

const (
	KindReflected       Kind = "Reflected"
	KindPersisted       Kind = "Persisted"
	KindCodeChanged     Kind = "CodeChanged"
	KindStateChanged    Kind = "StateChanged"
	KindNonJsonResponse Kind = "NonJsonResponse"
	KindNoResponse      Kind = "NoResponse"
)

// noisyLeafNames are excluded from the follow-up state diff because they
// change on every request regardless of mass-assignment (spec.md §4.5).
var noisyLeafNames = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true, "timestamp": true,
	"time": true, "iat": true, "exp": true, "nonce": true, "imageUrl": true,
}

// Finding is one classified outcome for a single (field, value) mutation.
type Finding struct {
	ID                      string `json:"id"`
	RequestID               string `json:"requestId"`
	Field                   string `json:"field"`
	Value                   string `json:"value"`
	Kind                    Kind   `json:"kind"`
	BaselineStatusCode      *int   `json:"baselineStatusCode,omitempty"`
	MutatedStatusCode       *int   `json:"mutatedStatusCode,omitempty"`
	PersistedStatusCode     *int   `json:"persistedStatusCode,omitempty"`
	MutatedRequestID        string `json:"mutatedRequestId,omitempty"`
	PersistedRequestID      string `json:"persistedRequestId,omitempty"`
	VerifyBaselineRequestID string `json:"verifyBaselineRequestId,omitempty"`
	VerifyRequestID         string `json:"verifyRequestId,omitempty"`
	BaselineBodySnippet     string `json:"baselineBodySnippet,omitempty"`
	MutatedBodySnippet      string `json:"mutatedBodySnippet,omitempty"`
	PersistedBodySnippet    string `json:"persistedBodySnippet,omitempty"`
	VerifyBodySnippet       string `json:"verifyBodySnippet,omitempty"`
	Message                 string `json:"message,omitempty"`
}

// Context carries everything the classifier needs about the enclosing
// scan that does not change across mutations: the baseline identity and
// response, the optional follow-up verification state, and the knobs
// that gate the persistence probe and the state diff.
type Context struct {
	BaselineRequestID  string
	BaselineSpec       adapter.RequestSpec
	BaselineResponse   *adapter.ResponseSpec
	BaselineJSON       *jsonmodel.Value
	ConfirmPersistence bool
	PersistenceDelayMs int

	VerifyEnabled           bool
	VerifySpec              adapter.RequestSpec
	VerifyBaselineJSON      *jsonmodel.Value
	VerifyBaselineRequestID string
	VerifyDelayMs           int
}

// Classifier sends the mutated/verify/persisted requests and applies the
// diff rules. It is the only component besides the orchestrator that
// talks to the Request Adapter.
type Classifier struct {
	adapter *adapter.Adapter
	sleep   func(ms int)
}

// New returns a Classifier that sends through a and delays via sleep. A
// nil sleep defaults to util.BusyWaitMillis (spec.md §5, §9: delays must
// be real wall-clock time that a concurrent stopScan cannot race past).
func New(a *adapter.Adapter, sleep func(ms int)) *Classifier {
	if sleep == nil {
		sleep = util.BusyWaitMillis
	}
	return &Classifier{adapter: a, sleep: sleep}
}

// Classify runs the full per-mutation rule set (spec.md §4.5) and
// returns the findings it produced, in the order they were decided.
func (c *Classifier) Classify(ctx context.Context, sc Context, m mutation.Mutation) ([]Finding, error) {
	var findings []Finding
	valueStr := jsonmodel.Stringify(m.Value)

	mutatedSpec := withBody(sc.BaselineSpec, []byte(m.BodyText))
	sent, err := c.adapter.Send(ctx, mutatedSpec, adapter.PhaseMutated)
	if err != nil || sent.Response == nil {
		findings = append(findings, c.finding(sc, m.Field, valueStr, KindNoResponse, findingOpts{
			requestID: sent.RequestID,
			message:   "failed to send request",
		}))
		return findings, nil
	}
	mutatedResp := sent.Response

	if sc.BaselineResponse != nil && mutatedResp.StatusCode != sc.BaselineResponse.StatusCode {
		findings = append(findings, c.finding(sc, m.Field, valueStr, KindCodeChanged, findingOpts{
			requestID:          sent.RequestID,
			baselineStatusCode: &sc.BaselineResponse.StatusCode,
			mutatedStatusCode:  &mutatedResp.StatusCode,
			message:            fmt.Sprintf("status code changed %d -> %d", sc.BaselineResponse.StatusCode, mutatedResp.StatusCode),
		}))
	}

	if sf := c.followUpStateDiff(ctx, sc, m, valueStr); sf != nil {
		findings = append(findings, *sf)
	}

	if len(mutatedResp.Body) == 0 {
		return findings, nil
	}
	parsedMutated, err := jsonmodel.Parse(mutatedResp.Body)
	if err != nil {
		findings = append(findings, c.finding(sc, m.Field, valueStr, KindNonJsonResponse, findingOpts{
			requestID:          sent.RequestID,
			mutatedStatusCode:  &mutatedResp.StatusCode,
			mutatedBodySnippet: util.TruncateSnippet(string(mutatedResp.Body), util.MaxSnippetLen),
			message:            "response is not JSON",
		}))
		return findings, nil
	}

	reflected := false
	if mutatedTop, ok := jsonmodel.GetPrimitiveDeep(parsedMutated, m.Field); ok && jsonmodel.Stringify(mutatedTop) == valueStr {
		reflected = true
		findings = append(findings, c.finding(sc, m.Field, valueStr, KindReflected, findingOpts{
			requestID:          sent.RequestID,
			mutatedStatusCode:  &mutatedResp.StatusCode,
			mutatedBodySnippet: util.TruncateSnippet(string(mutatedResp.Body), util.MaxSnippetLen),
			message:            reflectedMessage(sc.BaselineJSON, m.Field, valueStr),
		}))
	}

	if reflected && sc.ConfirmPersistence {
		if pf := c.persistenceProbe(ctx, sc, m, valueStr); pf != nil {
			findings = append(findings, *pf)
		}
	}

	return findings, nil
}

type findingOpts struct {
	requestID           string
	baselineStatusCode  *int
	mutatedStatusCode   *int
	persistedStatusCode *int
	mutatedRequestID    string
	persistedRequestID  string
	verifyBaselineID    string
	verifyRequestID     string
	baselineBodySnippet string
	mutatedBodySnippet  string
	persistedSnippet    string
	verifySnippet       string
	message             string
}

func (c *Classifier) finding(sc Context, field, valueStr string, kind Kind, o findingOpts) Finding {
	mutatedID := o.mutatedRequestID
	if mutatedID == "" {
		mutatedID = o.requestID
	}
	return Finding{
		ID:                      fmt.Sprintf("%s:%s:%s:%s", sc.BaselineRequestID, kind, field, valueStr),
		RequestID:               sc.BaselineRequestID,
		Field:                   field,
		Value:                   valueStr,
		Kind:                    kind,
		BaselineStatusCode:      o.baselineStatusCode,
		MutatedStatusCode:       o.mutatedStatusCode,
		PersistedStatusCode:     o.persistedStatusCode,
		MutatedRequestID:        mutatedID,
		PersistedRequestID:      o.persistedRequestID,
		VerifyBaselineRequestID: o.verifyBaselineID,
		VerifyRequestID:         o.verifyRequestID,
		BaselineBodySnippet:     o.baselineBodySnippet,
		MutatedBodySnippet:      o.mutatedBodySnippet,
		PersistedBodySnippet:    o.persistedSnippet,
		VerifyBodySnippet:       o.verifySnippet,
		Message:                 o.message,
	}
}

func reflectedMessage(baseline *jsonmodel.Value, field, valueStr string) string {
	if !jsonmodel.ContainsKeyDeep(baseline, field) {
		return "response contains injected key"
	}
	if existing, ok := jsonmodel.GetPrimitiveDeep(baseline, field); !ok || jsonmodel.Stringify(existing) != valueStr {
		return "response contains overridden value"
	}
	return "response echoed injected value"
}

func (c *Classifier) followUpStateDiff(ctx context.Context, sc Context, m mutation.Mutation, valueStr string) *Finding {
	if !sc.VerifyEnabled || sc.VerifyBaselineJSON == nil {
		return nil
	}
	c.sleep(sc.VerifyDelayMs)

	sent, err := c.adapter.Send(ctx, sc.VerifySpec, adapter.PhaseVerifyMutated)
	if err != nil || sent.Response == nil || len(sent.Response.Body) == 0 {
		return nil
	}
	parsed, err := jsonmodel.Parse(sent.Response.Body)
	if err != nil {
		return nil
	}

	before := jsonmodel.GetAllPrimitives(sc.VerifyBaselineJSON, "")
	after := jsonmodel.GetAllPrimitives(parsed, "")

	var changes []string
	paths := make([]string, 0, len(after))
	for p := range after {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		newVal := after[p]
		oldVal, existed := before[p]
		if !existed || oldVal == newVal {
			continue
		}
		if isNoisyPath(p) {
			continue
		}
		changes = append(changes, fmt.Sprintf("%s: %s -> %s", p, oldVal, newVal))
	}
	if len(changes) == 0 {
		return nil
	}

	f := c.finding(sc, m.Field, valueStr, KindStateChanged, findingOpts{
		verifyBaselineID: sc.VerifyBaselineRequestID,
		verifyRequestID:  sent.RequestID,
		verifySnippet:    util.TruncateSnippet(string(sent.Response.Body), util.MaxSnippetLen),
		message:          fmt.Sprintf("state changed via follow-up (%s)", strings.Join(changes, ", ")),
	})
	return &f
}

func isNoisyPath(path string) bool {
	if noisyLeafNames[path] {
		return true
	}
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return false
	}
	return noisyLeafNames[path[idx+1:]]
}

func (c *Classifier) persistenceProbe(ctx context.Context, sc Context, m mutation.Mutation, valueStr string) *Finding {
	c.sleep(sc.PersistenceDelayMs)

	sent, err := c.adapter.Send(ctx, sc.BaselineSpec, adapter.PhasePersisted)
	if err != nil || sent.Response == nil || len(sent.Response.Body) == 0 {
		return nil
	}
	parsed, err := jsonmodel.Parse(sent.Response.Body)
	if err != nil {
		return nil
	}
	got, ok := jsonmodel.GetPrimitiveDeep(parsed, m.Field)
	if !ok || jsonmodel.Stringify(got) != valueStr {
		return nil
	}

	f := c.finding(sc, m.Field, valueStr, KindPersisted, findingOpts{
		persistedRequestID:  sent.RequestID,
		persistedStatusCode: &sent.Response.StatusCode,
		persistedSnippet:    util.TruncateSnippet(string(sent.Response.Body), util.MaxSnippetLen),
		message:             "injected value present after baseline replay",
	})
	return &f
}

func withBody(spec adapter.RequestSpec, body []byte) adapter.RequestSpec {
	return adapter.RequestSpec{
		Method:  spec.Method,
		URL:     spec.URL,
		Headers: spec.Headers.Clone(),
		Body:    append([]byte(nil), body...),
	}
}
