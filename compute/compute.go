// Package compute defines the narrow interfaces to the external
// electronic-structure collaborators: the single-point calculator and the
// geometry optimizer. The orchestration engine performs no numerical work
// itself; it invokes these adapters and records what they report.
package compute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annealab/crucible/structio"
)

// Supported capability sets, checked statically before any adapter call.
var (
	SupportedBackends   = map[string]bool{"pyscf": true}
	SupportedMethods    = map[string]bool{"dft": true}
	SupportedOptimizers = map[string]bool{"BFGS": true, "LBFGS": true, "FIRE": true}
)

// ErrUnsupported marks a capability the system cannot provide (unrecognized
// backend, method, or optimizer). It is raised before any compute adapter
// is invoked.
var ErrUnsupported = errors.New("unsupported capability")

// UnsupportedError carries the capability kind and the rejected value.
type UnsupportedError struct {
	Kind  string
	Value string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s %q", e.Kind, e.Value)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// CheckBackend validates the backend/method pair.
func CheckBackend(backend, method string) error {
	if !SupportedBackends[backend] {
		return &UnsupportedError{Kind: "calculator.backend", Value: backend}
	}
	if !SupportedMethods[method] {
		return &UnsupportedError{Kind: "calculator.method", Value: method}
	}
	return nil
}

// CheckOptimizer validates the relaxation algorithm choice.
func CheckOptimizer(name string) error {
	if !SupportedOptimizers[name] {
		return &UnsupportedError{Kind: "relax.optimizer", Value: name}
	}
	return nil
}

// CheckKPoints validates the periodic k-point mesh. Only the gamma point
// is supported; a denser mesh needs a k-point-aware solver. An empty mesh
// defaults to gamma and passes.
func CheckKPoints(kpts []int) error {
	for _, k := range kpts {
		if k != 1 {
			return &UnsupportedError{Kind: "calculator.pbc.kpts", Value: fmt.Sprint(kpts)}
		}
	}
	return nil
}

// SCFParams are the solver parameters the repair policy may adjust between
// attempts.
type SCFParams struct {
	ConvTol  float64 `msgpack:"conv_tol" json:"conv_tol"`
	MaxCycle int     `msgpack:"max_cycle" json:"max_cycle"`
}

// PBCParams are the periodic-boundary solver parameters.
type PBCParams struct {
	Enabled      bool    `msgpack:"enabled" json:"enabled"`
	Basis        string  `msgpack:"basis,omitempty" json:"basis,omitempty"`
	Pseudo       *string `msgpack:"pseudo,omitempty" json:"pseudo,omitempty"`
	Mesh         []int   `msgpack:"mesh,omitempty" json:"mesh,omitempty"`
	KPts         []int   `msgpack:"kpts,omitempty" json:"kpts,omitempty"`
	UseMultigrid bool    `msgpack:"use_multigrid,omitempty" json:"use_multigrid,omitempty"`
}

// Plan is the full calculation plan handed to the adapters. Mode is
// "molecule" or "pbc".
type Plan struct {
	Mode           string    `msgpack:"mode" json:"mode"`
	Backend        string    `msgpack:"backend" json:"backend"`
	Method         string    `msgpack:"method" json:"method"`
	XC             string    `msgpack:"xc" json:"xc"`
	Basis          string    `msgpack:"basis" json:"basis"`
	Charge         int       `msgpack:"charge" json:"charge"`
	Spin           int       `msgpack:"spin" json:"spin"`
	SCF            SCFParams `msgpack:"scf" json:"scf"`
	FallbackNewton bool      `msgpack:"fallback_newton" json:"fallback_newton"`
	PBC            PBCParams `msgpack:"pbc" json:"pbc"`
	ComputeForces  bool      `msgpack:"compute_forces" json:"compute_forces"`
}

// Result is what the calculator reports for one single-point evaluation.
// The adapter may internally retry with an alternate solver before
// reporting; only the finally-used solver identifier surfaces here.
type Result struct {
	Energy        *float64     `msgpack:"energy_eV" json:"energy_eV"`
	Forces        [][3]float64 `msgpack:"forces_eV_per_A,omitempty" json:"forces_eV_per_A,omitempty"`
	SCFConverged  bool         `msgpack:"scf_converged" json:"scf_converged"`
	SCFIterations int          `msgpack:"scf_iterations" json:"scf_iterations"`
	Solver        string       `msgpack:"solver" json:"solver"`
}

// RelaxParams configure the geometry optimizer.
type RelaxParams struct {
	Optimizer string  `msgpack:"optimizer" json:"optimizer"`
	FMax      float64 `msgpack:"fmax" json:"fmax"`
	Steps     int     `msgpack:"steps" json:"steps"`
}

// Step is one optimizer iteration snapshot handed to the step callback.
type Step struct {
	Index     int                 `msgpack:"index" json:"index"`
	Structure *structio.Structure `msgpack:"structure" json:"structure"`
	Energy    *float64            `msgpack:"energy_eV" json:"energy_eV"`
	MaxForce  *float64            `msgpack:"max_force" json:"max_force"`
}

// StepFunc is invoked after each optimizer iteration, e.g. to append
// trajectory snapshots. Errors from the callback abort the relaxation.
type StepFunc func(Step) error

// RelaxOutcome is the final converged-or-exhausted optimizer state.
type RelaxOutcome struct {
	Final      *structio.Structure `msgpack:"final" json:"final"`
	Result     Result              `msgpack:"result" json:"result"`
	StepsTaken int                 `msgpack:"steps_taken" json:"steps_taken"`
	Walltime   time.Duration       `msgpack:"-" json:"-"`
}

// Calculator evaluates a single-point energy (and optionally forces) for a
// fixed structure.
type Calculator interface {
	SinglePoint(ctx context.Context, s *structio.Structure, plan *Plan) (*Result, error)
}

// Optimizer iteratively updates atomic positions toward the force
// threshold, invoking the step callback after each iteration.
type Optimizer interface {
	Relax(ctx context.Context, s *structio.Structure, plan *Plan, params RelaxParams, onStep StepFunc) (*RelaxOutcome, error)
}
