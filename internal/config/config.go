// Package config loads the scanner's default ScanConfig from a YAML
// file, trying a fixed list of candidate paths the way the teacher's
// model-route seeding does, and falling back to hardcoded defaults if
// none exist.
package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radarhq/mass-assignment-radar/internal/mutation"
	"github.com/radarhq/mass-assignment-radar/internal/scan"
)

// yamlVerification mirrors scan.Verification for YAML decoding.
type yamlVerification struct {
	Kind    string `yaml:"kind"`
	URL     string `yaml:"url"`
	Method  string `yaml:"method"`
	Body    string `yaml:"body"`
	DelayMs int    `yaml:"delayMs"`
}

// yamlValueModes mirrors mutation.ValueModes for YAML decoding.
type yamlValueModes struct {
	BooleanTrue    bool `yaml:"booleanTrue"`
	StringAdmin    bool `yaml:"stringAdmin"`
	NumberOne      bool `yaml:"numberOne"`
	NumberPlusOne  bool `yaml:"numberPlusOne"`
	NumberMinusOne bool `yaml:"numberMinusOne"`
}

// yamlScanConfig is the on-disk shape of config/massradar.yaml.
type yamlScanConfig struct {
	MaxMutations             int              `yaml:"maxMutations"`
	IncludeBuiltInCandidates bool             `yaml:"includeBuiltInCandidates"`
	CandidateFields          []string         `yaml:"candidateFields"`
	CustomValues             []string         `yaml:"customValues"`
	MutateExistingFields     bool             `yaml:"mutateExistingFields"`
	ValueModes               yamlValueModes   `yaml:"valueModes"`
	ConfirmPersistence       bool             `yaml:"confirmPersistence"`
	PersistenceDelayMs       int              `yaml:"persistenceDelayMs"`
	Verification             yamlVerification `yaml:"verification"`
}

func (y yamlScanConfig) toScanConfig() scan.ScanConfig {
	return scan.ScanConfig{
		MaxMutations:             y.MaxMutations,
		IncludeBuiltInCandidates: y.IncludeBuiltInCandidates,
		CandidateFields:          y.CandidateFields,
		CustomValues:             y.CustomValues,
		MutateExistingFields:     y.MutateExistingFields,
		ValueModes: mutation.ValueModes{
			BooleanTrue:    y.ValueModes.BooleanTrue,
			StringAdmin:    y.ValueModes.StringAdmin,
			NumberOne:      y.ValueModes.NumberOne,
			NumberPlusOne:  y.ValueModes.NumberPlusOne,
			NumberMinusOne: y.ValueModes.NumberMinusOne,
		},
		ConfirmPersistence: y.ConfirmPersistence,
		PersistenceDelayMs: y.PersistenceDelayMs,
		Verification: scan.Verification{
			Kind:    scan.VerificationKind(y.Verification.Kind),
			URL:     y.Verification.URL,
			Method:  y.Verification.Method,
			Body:    y.Verification.Body,
			DelayMs: y.Verification.DelayMs,
		},
	}
}

// DefaultScanConfig is used when no config file is found on any
// candidate path.
func DefaultScanConfig() scan.ScanConfig {
	return scan.ScanConfig{
		MaxMutations:             16,
		IncludeBuiltInCandidates: true,
		MutateExistingFields:     false,
		ValueModes: mutation.ValueModes{
			BooleanTrue: true,
			StringAdmin: true,
			NumberOne:   true,
		},
		ConfirmPersistence: false,
		PersistenceDelayMs: 0,
		Verification:       scan.Verification{Kind: scan.VerificationDisabled},
	}
}

// candidatePaths are tried in order, mirroring the teacher's
// ensureModelRoutes path list (local project dir, then system-wide
// locations, then the user's home directory).
func candidatePaths() []string {
	paths := []string{
		"config/massradar.yaml",
		"./config/massradar.yaml",
		"/etc/massradar/config.yaml",
		"/opt/homebrew/etc/massradar/config.yaml",
		"/usr/local/etc/massradar/config.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths,
			home+"/.config/massradar/config.yaml",
			home+"/.massradar/config.yaml",
		)
	}
	return paths
}

// Load reads the first candidate path that exists, parses it as YAML,
// and validates the result. If no candidate path exists, it returns
// DefaultScanConfig(). explicitPath, if non-empty, is tried first.
func Load(explicitPath string) (scan.ScanConfig, error) {
	paths := candidatePaths()
	if explicitPath != "" {
		paths = append([]string{explicitPath}, paths...)
	}

	var data []byte
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err == nil {
			log.Printf("📦 Loading scan config from: %s", path)
			data = b
			break
		}
	}

	if data == nil {
		log.Printf("⚠️ No massradar config found, using built-in defaults")
		return DefaultScanConfig(), nil
	}

	var parsed yamlScanConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return scan.ScanConfig{}, err
	}
	cfg := parsed.toScanConfig()
	if err := cfg.Validate(); err != nil {
		return scan.ScanConfig{}, err
	}
	return cfg, nil
}
