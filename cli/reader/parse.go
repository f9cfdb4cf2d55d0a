package reader

import (
	"encoding/json"
	"fmt"
)

// manifestDoc is the subset of manifest.json the CLI needs.
type manifestDoc struct {
	RunID      string `json:"run_id"`
	CreatedAt  string `json:"created_at_utc"`
	MaterialID string `json:"material_id"`
	ConfigHash string `json:"config_hash"`
	Git        struct {
		CommitShort string `json:"commit_short"`
	} `json:"git"`
}

// summaryDoc is the subset of results/summary.json the CLI needs. The
// placeholder summary written at run start carries only status and ids,
// so every section beyond that is optional.
type summaryDoc struct {
	Status      string `json:"status"`
	RunID       string `json:"run_id"`
	MaterialID  string `json:"material_id"`
	Calculation *struct {
		EnergyEV     *float64 `json:"energy_eV"`
		SCFConverged *bool    `json:"scf_converged"`
	} `json:"calculation"`
	Relaxation *struct {
		StepsTaken *int `json:"steps_taken"`
	} `json:"relaxation"`
	Retry *struct {
		RetriesUsed int `json:"retries_used"`
	} `json:"retry"`
	Validation *struct {
		Passed   bool     `json:"passed"`
		Reasons  []string `json:"reasons"`
		MaxForce *float64 `json:"max_force"`
	} `json:"validation"`
}

func parseManifest(data []byte) (*manifestDoc, error) {
	var m manifestDoc
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot parse manifest: %w", err)
	}
	if m.RunID == "" {
		return nil, fmt.Errorf("manifest has no run_id")
	}
	return &m, nil
}

func parseSummary(data []byte) (*summaryDoc, error) {
	var s summaryDoc
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cannot parse summary: %w", err)
	}
	return &s, nil
}

// passed returns the validation verdict, or nil when the run never reached
// validation (placeholder summary).
func (s *summaryDoc) passed() *bool {
	if s == nil || s.Validation == nil {
		return nil
	}
	v := s.Validation.Passed
	return &v
}

func (s *summaryDoc) status() string {
	if s == nil || s.Status == "" {
		return "unknown"
	}
	return s.Status
}
