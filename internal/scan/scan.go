// Package scan implements the Scan Orchestrator (spec.md §4.4): the
// state machine that resolves a stored baseline request, ensures it has
// a JSON body and a response to compare against, optionally probes a
// follow-up verification endpoint, builds the mutation list, and drives
// the Finding Classifier over it one mutation at a time.
package scan

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/classify"
	"github.com/radarhq/mass-assignment-radar/internal/jsonmodel"
	"github.com/radarhq/mass-assignment-radar/internal/mutation"
	"github.com/radarhq/mass-assignment-radar/internal/util"
)

// ScanTarget identifies the stored baseline request a scan runs against.
type ScanTarget struct {
	RequestID string `json:"requestId"`
}

func (t ScanTarget) trimmedID() string { return strings.TrimSpace(t.RequestID) }

// Validate enforces the "requestId is required" bound.
func (t ScanTarget) Validate() error {
	if t.trimmedID() == "" {
		return validationErr("requestId is required")
	}
	return nil
}

// ScanResult is the outcome of one scan: the resolved baseline request
// ID and the findings produced, in production order.
type ScanResult struct {
	BaselineRequestID string             `json:"baselineRequestId"`
	Findings          []classify.Finding `json:"findings"`
}

// Run executes the full state machine:
// INIT -> RESOLVE_TARGET -> BASELINE_ENSURE -> [VERIFY_BASELINE] ->
// BUILD_MUTATIONS -> LOOP_MUTATION -> DONE.
//
// cancel may be nil, meaning the scan cannot be cancelled mid-flight.
func Run(ctx context.Context, ad *adapter.Adapter, target ScanTarget, config ScanConfig, cancel *CancelToken) (ScanResult, error) {
	if err := target.Validate(); err != nil {
		return ScanResult{}, err
	}
	if err := config.Validate(); err != nil {
		return ScanResult{}, err
	}

	// RESOLVE_TARGET
	saved, err := ad.Get(ctx, target.trimmedID())
	if err != nil {
		return ScanResult{}, preconditionErr(fmt.Sprintf("request %s not found", target.trimmedID()))
	}

	// BASELINE_ENSURE
	baselineJSON, baselineSpec, baselineResp, err := ensureBaseline(ctx, ad, saved)
	if err != nil {
		return ScanResult{}, err
	}

	classifyCtx := classify.Context{
		BaselineRequestID:  saved.ID,
		BaselineSpec:       baselineSpec,
		BaselineResponse:   baselineResp,
		BaselineJSON:       baselineJSON,
		ConfirmPersistence: config.ConfirmPersistence,
		PersistenceDelayMs: config.PersistenceDelayMs,
	}

	// VERIFY_BASELINE
	if config.Verification.Kind == VerificationFollowUp {
		if err := runVerifyBaseline(ctx, ad, baselineSpec, config.Verification, &classifyCtx); err != nil {
			return ScanResult{}, err
		}
	}

	// BUILD_MUTATIONS
	mutations := mutation.Generate(baselineJSON, config.mutationOptions())
	if len(mutations) == 0 {
		return ScanResult{}, preconditionErr("no mutations generated (all candidate fields already exist in request body)")
	}

	// LOOP_MUTATION
	classifier := classify.New(ad, util.BusyWaitMillis)
	var findings []classify.Finding
	for _, m := range mutations {
		if cancel.Stopped() {
			break
		}
		mutationFindings, err := classifier.Classify(ctx, classifyCtx, m)
		if err != nil {
			return ScanResult{BaselineRequestID: saved.ID, Findings: findings}, err
		}
		findings = append(findings, mutationFindings...)
	}

	return ScanResult{BaselineRequestID: saved.ID, Findings: findings}, nil
}

// ensureBaseline implements BASELINE_ENSURE (spec.md §4.4 step 2): it
// sniffs whether the stored request is JSON-ish, parses its body into
// an object, and ensures a response exists to compare mutations
// against (sending a baseline copy if the store had none recorded).
func ensureBaseline(ctx context.Context, ad *adapter.Adapter, saved *adapter.SavedRequest) (*jsonmodel.Value, adapter.RequestSpec, *adapter.ResponseSpec, error) {
	bodyTrimmed := strings.TrimSpace(string(saved.Spec.Body))

	if !adapter.IsJSONish(saved.Spec.Headers, saved.Spec.Body) {
		return nil, adapter.RequestSpec{}, nil, preconditionErr("request Content-Type is not application/json")
	}
	if bodyTrimmed == "" {
		return nil, adapter.RequestSpec{}, nil, preconditionErr("request body is empty")
	}

	baselineJSON, err := jsonmodel.ParseObject(saved.Spec.Body)
	if err != nil {
		return nil, adapter.RequestSpec{}, nil, preconditionErr(err.Error())
	}

	baselineSpec := adapter.SpecFrom(saved)

	resp := saved.Response
	if resp == nil {
		sent, sendErr := ad.Send(ctx, baselineSpec, adapter.PhaseBaseline)
		if sendErr != nil || sent.Response == nil {
			return nil, adapter.RequestSpec{}, nil, transportErr("failed to send baseline request")
		}
		resp = sent.Response
	}

	return baselineJSON, baselineSpec, resp, nil
}

// runVerifyBaseline implements VERIFY_BASELINE (spec.md §4.4 step 3): it
// resolves the verification URL against the baseline's origin, sends
// the verification baseline request, and — if its response parses as a
// JSON object — records it on classifyCtx for the per-mutation
// follow-up state diff.
func runVerifyBaseline(ctx context.Context, ad *adapter.Adapter, baselineSpec adapter.RequestSpec, v Verification, classifyCtx *classify.Context) error {
	resolvedURL, err := resolveVerificationURL(v.URL, baselineSpec.URL)
	if err != nil {
		return err
	}

	verifySpec := adapter.RequestSpec{
		Method:  v.verificationMethod(),
		URL:     resolvedURL,
		Headers: baselineSpec.Headers.Without("Content-Length", "Transfer-Encoding", "Host"),
		Body:    []byte(v.Body),
	}

	sent, err := ad.Send(ctx, verifySpec, adapter.PhaseVerifyBaseline)
	if err != nil || sent.Response == nil {
		return transportErr("verification request has no response")
	}

	classifyCtx.VerifyEnabled = true
	classifyCtx.VerifySpec = verifySpec
	classifyCtx.VerifyBaselineRequestID = sent.RequestID
	classifyCtx.VerifyDelayMs = v.DelayMs

	if len(sent.Response.Body) > 0 {
		if parsed, err := jsonmodel.ParseObject(sent.Response.Body); err == nil {
			classifyCtx.VerifyBaselineJSON = parsed
		}
	}
	return nil
}

// resolveVerificationURL resolves a configured verification URL against
// the baseline request's origin (spec.md §4.4 step 3): an absolute
// http(s) URL is kept verbatim; otherwise it is prefixed with the
// baseline's scheme and authority, with a leading slash enforced.
func resolveVerificationURL(verifyURL, baselineURL string) (string, error) {
	if strings.TrimSpace(verifyURL) == "" {
		return "", validationErr("verification url is required")
	}
	if strings.HasPrefix(verifyURL, "http://") || strings.HasPrefix(verifyURL, "https://") {
		return verifyURL, nil
	}

	parsed, err := url.Parse(baselineURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", validationErr("baseline url is invalid")
	}

	path := verifyURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return parsed.Scheme + "://" + parsed.Host + path, nil
}
