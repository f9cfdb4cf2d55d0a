// Package validate evaluates calculation results against the configured
// acceptance criteria. Checks accumulate independently so a failed run
// reports every violated criterion, not just the first.
package validate

import (
	"math"

	"github.com/annealab/crucible/config"
)

// Failure reasons, in the order they are checked.
const (
	ReasonEnergyMissing    = "energy_missing_or_not_run"
	ReasonSCFNotConverged  = "scf_not_converged_or_not_run"
	ReasonMaxForceExceeded = "max_force_exceeded"
)

// maxForceDigits is the rounding precision applied to the force norm
// before the threshold comparison, so the reported value and the
// compared value are the same number.
const maxForceDigits = 8

// Input carries the calculation fields the checks inspect. A zero Input
// describes a run where no calculation happened.
type Input struct {
	Energy       *float64
	Forces       [][3]float64
	SCFConverged bool
}

// Outcome is the validation verdict recorded in the run summary.
type Outcome struct {
	Passed   bool     `json:"passed"`
	Reasons  []string `json:"reasons"`
	MaxForce *float64 `json:"max_force"`
}

// Evaluate runs every check against in and returns the combined verdict.
// Reasons is never nil so the serialized form is always a JSON array.
func Evaluate(in Input, cfg config.Validate) Outcome {
	reasons := []string{}

	if in.Energy == nil {
		reasons = append(reasons, ReasonEnergyMissing)
	}
	if cfg.RequireSCFConverged && !in.SCFConverged {
		reasons = append(reasons, ReasonSCFNotConverged)
	}

	var maxForce *float64
	if len(in.Forces) > 0 {
		mf := roundTo(maxForceNorm(in.Forces), maxForceDigits)
		maxForce = &mf
		if mf > cfg.MaxForce {
			reasons = append(reasons, ReasonMaxForceExceeded)
		}
	}

	return Outcome{
		Passed:   len(reasons) == 0,
		Reasons:  reasons,
		MaxForce: maxForce,
	}
}

// maxForceNorm returns the largest per-atom Euclidean force norm.
func maxForceNorm(forces [][3]float64) float64 {
	var max float64
	for _, f := range forces {
		n := math.Sqrt(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
		if n > max {
			max = n
		}
	}
	return max
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
