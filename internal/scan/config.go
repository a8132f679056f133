package scan

import (
	"strings"

	"github.com/radarhq/mass-assignment-radar/internal/mutation"
)

// VerificationKind selects the verification variant (spec.md §3, §6).
type VerificationKind string

const (
	VerificationDisabled VerificationKind = "Disabled"
	VerificationFollowUp VerificationKind = "FollowUp"
)

// Verification is the tagged union `verification` field of ScanConfig.
// Method defaults to GET when empty (spec.md §6, §9 open question);
// Body defaults to the empty string.
type Verification struct {
	Kind    VerificationKind `json:"kind"`
	URL     string           `json:"url,omitempty"`
	Method  string           `json:"method,omitempty"`
	Body    string           `json:"body,omitempty"`
	DelayMs int              `json:"delayMs"`
}

// ScanConfig is the scan's full configuration (spec.md §3).
type ScanConfig struct {
	MaxMutations             int                 `json:"maxMutations"`
	IncludeBuiltInCandidates bool                `json:"includeBuiltInCandidates"`
	CandidateFields          []string            `json:"candidateFields,omitempty"`
	CustomValues             []string            `json:"customValues,omitempty"`
	MutateExistingFields     bool                `json:"mutateExistingFields"`
	ValueModes               mutation.ValueModes `json:"valueModes"`
	ConfirmPersistence       bool                `json:"confirmPersistence"`
	PersistenceDelayMs       int                 `json:"persistenceDelayMs"`
	Verification             Verification        `json:"verification"`
}

// maxCandidateFields is the hard cap on ScanConfig.CandidateFields
// (spec.md §5).
const maxCandidateFields = 5000

// Validate enforces every bound in spec.md §3/§5 and returns the exact
// error string from the §7 taxonomy on the first violation found.
func (c ScanConfig) Validate() error {
	if c.MaxMutations < 1 {
		return validationErr("maxMutations must be >= 1")
	}
	if c.MaxMutations > 256 {
		return validationErr("maxMutations must be <= 256")
	}
	if c.PersistenceDelayMs < 0 {
		return validationErr("persistenceDelayMs must be >= 0")
	}
	if c.PersistenceDelayMs > 10000 {
		return validationErr("persistenceDelayMs must be <= 10000")
	}
	if len(c.CandidateFields) > maxCandidateFields {
		return validationErr("candidateFields is too large")
	}
	if c.Verification.DelayMs < 0 {
		return validationErr("verification.delayMs must be >= 0")
	}
	if c.Verification.DelayMs > 10000 {
		return validationErr("verification.delayMs must be <= 10000")
	}
	if c.Verification.Kind == VerificationFollowUp && strings.TrimSpace(c.Verification.URL) == "" {
		return validationErr("verification url is required")
	}
	return nil
}

// mutationOptions adapts ScanConfig to the generator's Options shape
// (internal/mutation deliberately has no dependency on this package).
func (c ScanConfig) mutationOptions() mutation.Options {
	return mutation.Options{
		MaxMutations:             c.MaxMutations,
		IncludeBuiltInCandidates: c.IncludeBuiltInCandidates,
		CandidateFields:          c.CandidateFields,
		CustomValues:             c.CustomValues,
		MutateExistingFields:     c.MutateExistingFields,
		ValueModes:               c.ValueModes,
	}
}

// verificationMethod returns the configured method, defaulting to GET
// when the configured value is empty.
func (v Verification) verificationMethod() string {
	if strings.TrimSpace(v.Method) == "" {
		return "GET"
	}
	return v.Method
}
