// Package mutation implements the deterministic mutation generator
// (spec.md §4.3): from a decoded baseline JSON object and a bounded
// configuration, it enumerates an ordered list of (field, value,
// serialized-body) candidates for the scan orchestrator to replay.
package mutation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/radarhq/mass-assignment-radar/internal/jsonmodel"
)

// builtInCandidateFields is the fixed list injected when
// Options.IncludeBuiltInCandidates is set. Order is part of the
// deterministic contract.
var builtInCandidateFields = []string{
	"isAdmin", "admin", "is_staff", "isStaff", "isSuperuser",
	"role", "roles", "permissions", "tier", "plan",
}

// ValueModes selects which built-in value candidates participate in
// enumeration, independently of one another.
type ValueModes struct {
	BooleanTrue    bool `json:"booleanTrue"`
	StringAdmin    bool `json:"stringAdmin"`
	NumberOne      bool `json:"numberOne"`
	NumberPlusOne  bool `json:"numberPlusOne"`
	NumberMinusOne bool `json:"numberMinusOne"`
}

// Options is the subset of ScanConfig the generator consumes.
type Options struct {
	MaxMutations             int
	IncludeBuiltInCandidates bool
	CandidateFields          []string
	CustomValues             []string
	MutateExistingFields     bool
	ValueModes               ValueModes
}

// Mutation is one (field, value) candidate and its fully serialized
// mutated request body.
type Mutation struct {
	Field    string
	Value    *jsonmodel.Value
	BodyText string
}

// candidateKind distinguishes a value candidate that is fixed up front
// from one that must be resolved against the existing value at Field.
type candidateKind int

const (
	kindFixed candidateKind = iota
	kindNumericDelta
)

type valueCandidate struct {
	kind  candidateKind
	fixed *jsonmodel.Value
	delta float64
}

var numberLiteralPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Generate enumerates mutations over baseline per spec.md §4.3. baseline
// must be a JSON object; Generate does not validate that itself (the
// scan orchestrator's BASELINE_ENSURE state does).
func Generate(baseline *jsonmodel.Value, opts Options) []Mutation {
	fields := buildFieldList(opts)
	values := buildValueCandidates(opts)

	var out []Mutation
	for _, field := range fields {
		if len(out) >= opts.MaxMutations {
			break
		}
		if !opts.MutateExistingFields && baseline.IsObject() && baseline.Object.Has(field) {
			continue
		}

		existing, hasExisting := jsonmodel.GetPrimitiveDeep(baseline, field)

		for _, candidate := range values {
			if len(out) >= opts.MaxMutations {
				break
			}

			value, ok := resolveCandidate(candidate, existing, hasExisting)
			if !ok {
				continue
			}
			if value.Kind == jsonmodel.KindNumber && !isFiniteNumber(value.Number) {
				continue
			}
			if opts.MutateExistingFields && hasExisting &&
				jsonmodel.Stringify(existing) == jsonmodel.Stringify(value) {
				continue
			}

			mutated := jsonmodel.SetDeep(baseline, field, value)
			bodyText, err := jsonmodel.Serialize(mutated)
			if err != nil {
				continue
			}
			out = append(out, Mutation{Field: field, Value: value, BodyText: string(bodyText)})
		}
	}
	return out
}

func buildFieldList(opts Options) []string {
	var combined []string
	if opts.IncludeBuiltInCandidates {
		combined = append(combined, builtInCandidateFields...)
	}
	combined = append(combined, opts.CandidateFields...)

	seen := make(map[string]bool, len(combined))
	fields := make([]string, 0, len(combined))
	for _, f := range combined {
		trimmed := strings.TrimSpace(f)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		fields = append(fields, trimmed)
	}
	return fields
}

func buildValueCandidates(opts Options) []valueCandidate {
	var out []valueCandidate
	if opts.ValueModes.BooleanTrue {
		out = append(out, valueCandidate{kind: kindFixed, fixed: jsonmodel.Bool(true)})
	}
	if opts.ValueModes.StringAdmin {
		out = append(out, valueCandidate{kind: kindFixed, fixed: jsonmodel.String("admin")})
	}
	if opts.ValueModes.NumberOne {
		out = append(out, valueCandidate{kind: kindFixed, fixed: jsonmodel.Number(1)})
	}
	if opts.ValueModes.NumberPlusOne {
		out = append(out, valueCandidate{kind: kindNumericDelta, delta: 1})
	}
	if opts.ValueModes.NumberMinusOne {
		out = append(out, valueCandidate{kind: kindNumericDelta, delta: -1})
	}

	for _, raw := range opts.CustomValues {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, parseCustomValue(trimmed))
	}

	if len(out) == 0 {
		out = append(out, valueCandidate{kind: kindFixed, fixed: jsonmodel.Bool(true)})
	}
	return out
}

func parseCustomValue(trimmed string) valueCandidate {
	switch trimmed {
	case "true":
		return valueCandidate{kind: kindFixed, fixed: jsonmodel.Bool(true)}
	case "false":
		return valueCandidate{kind: kindFixed, fixed: jsonmodel.Bool(false)}
	case "null":
		return valueCandidate{kind: kindFixed, fixed: jsonmodel.Null()}
	}

	if numberLiteralPattern.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && isFiniteNumber(n) {
			return valueCandidate{kind: kindFixed, fixed: jsonmodel.Number(n)}
		}
	}

	if looksLikeJSONContainer(trimmed) {
		if parsed, err := jsonmodel.Parse([]byte(trimmed)); err == nil {
			return valueCandidate{kind: kindFixed, fixed: parsed}
		}
	}

	return valueCandidate{kind: kindFixed, fixed: jsonmodel.String(trimmed)}
}

func looksLikeJSONContainer(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func isFiniteNumber(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// resolveCandidate turns a valueCandidate into a concrete *jsonmodel.Value
// given the existing value (if any) at the mutation's field.
func resolveCandidate(c valueCandidate, existing *jsonmodel.Value, hasExisting bool) (*jsonmodel.Value, bool) {
	switch c.kind {
	case kindFixed:
		return c.fixed, true
	case kindNumericDelta:
		if !hasExisting {
			return nil, false
		}
		if existing.Kind == jsonmodel.KindNumber {
			return jsonmodel.Number(existing.Number + c.delta), true
		}
		if existing.Kind == jsonmodel.KindString && isDigitsOnly(existing.Str) {
			n, err := strconv.Atoi(existing.Str)
			if err != nil {
				return nil, false
			}
			return jsonmodel.String(strconv.Itoa(n + int(c.delta))), true
		}
		return nil, false
	default:
		return nil, false
	}
}

func isDigitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
