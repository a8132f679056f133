package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFallsBackToDefaultsWhenNoFileFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxMutations != DefaultScanConfig().MaxMutations {
		t.Errorf("MaxMutations = %d, want default %d", cfg.MaxMutations, DefaultScanConfig().MaxMutations)
	}
}

func TestLoadParsesExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "massradar.yaml")
	yamlBody := `
maxMutations: 5
includeBuiltInCandidates: false
candidateFields: ["role", "isAdmin"]
mutateExistingFields: true
valueModes:
  booleanTrue: true
  numberOne: true
confirmPersistence: true
persistenceDelayMs: 250
verification:
  kind: FollowUp
  url: /me
  delayMs: 100
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxMutations != 5 {
		t.Errorf("MaxMutations = %d, want 5", cfg.MaxMutations)
	}
	if cfg.IncludeBuiltInCandidates {
		t.Errorf("IncludeBuiltInCandidates = true, want false")
	}
	if len(cfg.CandidateFields) != 2 || cfg.CandidateFields[0] != "role" {
		t.Errorf("CandidateFields = %v", cfg.CandidateFields)
	}
	if !cfg.ConfirmPersistence || cfg.PersistenceDelayMs != 250 {
		t.Errorf("persistence settings = %v/%d", cfg.ConfirmPersistence, cfg.PersistenceDelayMs)
	}
	if cfg.Verification.URL != "/me" || cfg.Verification.DelayMs != 100 {
		t.Errorf("Verification = %+v", cfg.Verification)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "massradar.yaml")
	yamlBody := "maxMutations: 0\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("Load() error = nil, want validation error for maxMutations: 0")
	}
}
