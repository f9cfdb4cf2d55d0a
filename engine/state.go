// Package engine drives the fixed workflow graph over a shared state
// record. The graph has a single conditional edge, out of run_relaxation,
// which either advances to validation or loops through repair_and_retry.
// The loop is statically bounded because every traversal decrements the
// retry budget.
package engine

import (
	"github.com/annealab/crucible/compute"
	"github.com/annealab/crucible/config"
	"github.com/annealab/crucible/eventlog"
	"github.com/annealab/crucible/metrics"
	"github.com/annealab/crucible/runstore"
	"github.com/annealab/crucible/structio"
	"github.com/annealab/crucible/validate"
)

// CalculationRecord is the calculation section of the run summary. Pointer
// fields stay nil until the corresponding stage produces them, so the
// serialized form distinguishes "not run" from a zero value.
type CalculationRecord struct {
	Mode          string       `json:"mode,omitempty"`
	Backend       string       `json:"backend,omitempty"`
	Method        string       `json:"method,omitempty"`
	XC            string       `json:"xc,omitempty"`
	Basis         string       `json:"basis,omitempty"`
	Charge        int          `json:"charge"`
	Spin          int          `json:"spin"`
	EnergyEV      *float64     `json:"energy_eV"`
	Forces        [][3]float64 `json:"forces_eV_per_A"`
	SCFConverged  *bool        `json:"scf_converged"`
	SCFIterations *int         `json:"scf_iterations"`
	SCFSolver     *string      `json:"scf_solver"`
	WalltimeS     *float64     `json:"walltime_s"`
	Error         *string      `json:"error"`
}

// RelaxationRecord is the relaxation section of the run summary.
type RelaxationRecord struct {
	Enabled            bool     `json:"enabled"`
	Optimizer          *string  `json:"optimizer"`
	FMax               *float64 `json:"fmax"`
	Steps              *int     `json:"steps"`
	StepsTaken         *int     `json:"steps_taken"`
	TrajectoryPath     *string  `json:"trajectory_path"`
	FinalStructurePath *string  `json:"final_structure_path"`
}

// ParamChange records an old/new value pair for one repaired parameter.
type ParamChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// RetryAttempt is one entry in the repair history.
type RetryAttempt struct {
	Attempt int                    `json:"attempt"`
	Changes map[string]ParamChange `json:"changes"`
	Reason  string                 `json:"reason"`
}

// RetryState is the retry bookkeeping threaded through the loop.
// RetriesUsed + RetriesRemaining equals the configured budget at every
// point in the run.
type RetryState struct {
	RetriesRemaining int            `json:"retries_remaining"`
	RetriesUsed      int            `json:"retries_used"`
	History          []RetryAttempt `json:"history"`
}

// StructureProvenance tracks the structure input from the configured path
// through copy, parse and canonicalization.
type StructureProvenance struct {
	Path          *string // as configured, nil when no structure source
	ResolvedPath  string  // absolute source path
	InputHash     string  // content hash of the copied raw input
	CopiedPath    string  // input/structure<ext>
	CanonicalPath string  // input/canonical.xyz
	CanonicalHash string  // hash of the canonicalized structure
}

// State is the single mutable record threaded through every stage. Each
// stage writes only the fields it owns; repair_and_retry additionally
// mutates Resolved.Config.Calculator.SCF in place.
type State struct {
	// CLI inputs, set before the first stage runs.
	ConfigPath string
	MaterialID string
	Overrides  config.Overrides
	Argv       []string

	// Owned by load_config.
	Resolved   *config.Resolved
	ConfigHash string
	Store      *runstore.Store
	Log        *eventlog.Logger
	GitRev     string
	Structure  StructureProvenance

	// Owned by load_structure.
	Mol *structio.Structure

	// Owned by build_calculator.
	Plan        *compute.Plan
	Calculation *CalculationRecord

	// Owned by run_relaxation.
	Relaxation *RelaxationRecord

	// Owned by repair_and_retry (initialized by load_config).
	Retry RetryState

	// Owned by validate_and_report.
	Validation *validate.Outcome

	// Collaborators injected by the caller.
	Calculator compute.Calculator
	Optimizer  compute.Optimizer
	Metrics    *metrics.Collector
}

// Converged reports whether the last calculation attempt converged.
func (s *State) Converged() bool {
	return s.Calculation != nil &&
		s.Calculation.SCFConverged != nil &&
		*s.Calculation.SCFConverged
}
