// Package reader provides the read-side data access layer for the crucible CLI.
//
// Read-only commands never execute the workflow. They scan a runs directory
// and parse the manifest and summary artifacts each run leaves behind, so
// they work on any runs tree regardless of which machine produced it.
package reader

// ListRunItem is the thin per-run slice returned by `list runs`.
type ListRunItem struct {
	RunID      string `json:"run_id"`
	MaterialID string `json:"material_id"`
	CreatedAt  string `json:"created_at_utc"`
	Status     string `json:"status"`
	Passed     *bool  `json:"passed"`
}

// InspectRunResponse is the deep view of a single run.
type InspectRunResponse struct {
	RunID        string   `json:"run_id"`
	MaterialID   string   `json:"material_id"`
	RunDir       string   `json:"run_dir"`
	CreatedAt    string   `json:"created_at_utc"`
	ConfigHash   string   `json:"config_hash"`
	GitCommit    string   `json:"git_commit"`
	Status       string   `json:"status"`
	Passed       *bool    `json:"passed"`
	Reasons      []string `json:"reasons"`
	EnergyEV     *float64 `json:"energy_eV"`
	MaxForce     *float64 `json:"max_force"`
	SCFConverged *bool    `json:"scf_converged"`
	RetriesUsed  int      `json:"retries_used"`
	RelaxSteps   *int     `json:"relax_steps"`
}

// RunStats aggregates validation verdicts across a runs directory.
type RunStats struct {
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	NoCalculation int `json:"no_calculation"`
	Initialized   int `json:"initialized"`
	RetriesUsed   int `json:"retries_used"`
}

// ListRunsOptions filters `list runs` output.
type ListRunsOptions struct {
	// Status keeps only runs whose summary status matches
	// (done, no_calculation, initialized).
	Status string
	// Limit caps the number of items returned; 0 means no limit.
	Limit int
}
