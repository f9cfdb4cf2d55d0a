package compute

import (
	"context"
	"math"

	"github.com/annealab/crucible/structio"
)

// StubCalculator is a deterministic in-process Calculator for tests. It
// converges iff the plan's max_cycle is at least ConvergeAtMaxCycle, which
// lets tests drive the repair-and-retry loop without a worker process.
type StubCalculator struct {
	// ConvergeAtMaxCycle is the max_cycle threshold for convergence.
	// Zero means always converge.
	ConvergeAtMaxCycle int
	// Energy reported on every evaluation.
	Energy float64
	// ForceScale sets the magnitude of the reported per-atom forces.
	ForceScale float64
	// Err, when set, is returned from every call (simulates adapter failure).
	Err error

	// Calls counts SinglePoint invocations.
	Calls int
}

var _ Calculator = (*StubCalculator)(nil)

// SinglePoint implements Calculator deterministically.
func (c *StubCalculator) SinglePoint(_ context.Context, s *structio.Structure, plan *Plan) (*Result, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}

	converged := c.ConvergeAtMaxCycle == 0 || plan.SCF.MaxCycle >= c.ConvergeAtMaxCycle
	energy := c.Energy
	res := &Result{
		Energy:        &energy,
		SCFConverged:  converged,
		SCFIterations: min(plan.SCF.MaxCycle, 17),
		Solver:        "stub-rks",
	}
	if plan.ComputeForces {
		res.Forces = make([][3]float64, s.NumAtoms())
		for i := range res.Forces {
			res.Forces[i] = [3]float64{c.ForceScale, 0, 0}
		}
	}
	return res, nil
}

// StubOptimizer is a deterministic in-process Optimizer for tests. It
// nudges every coordinate toward zero by a fixed fraction per step, calls
// the step callback Steps times (bounded by params.Steps), and delegates
// the final single-point to the given Calculator.
type StubOptimizer struct {
	Calculator Calculator
	// Steps is the number of iterations the stub performs.
	Steps int
}

var _ Optimizer = (*StubOptimizer)(nil)

// Relax implements Optimizer deterministically.
func (o *StubOptimizer) Relax(ctx context.Context, s *structio.Structure, plan *Plan, params RelaxParams, onStep StepFunc) (*RelaxOutcome, error) {
	steps := o.Steps
	if params.Steps < steps {
		steps = params.Steps
	}

	current := cloneStructure(s)
	for i := 0; i < steps; i++ {
		for a := range current.Positions {
			for j := 0; j < 3; j++ {
				current.Positions[a][j] *= 0.99
			}
		}
		if onStep != nil {
			fmax := params.FMax * math.Pow(0.5, float64(i))
			if err := onStep(Step{Index: i, Structure: cloneStructure(current), MaxForce: &fmax}); err != nil {
				return nil, err
			}
		}
	}

	res, err := o.Calculator.SinglePoint(ctx, current, plan)
	if err != nil {
		return nil, err
	}
	return &RelaxOutcome{Final: current, Result: *res, StepsTaken: steps}, nil
}

func cloneStructure(s *structio.Structure) *structio.Structure {
	out := &structio.Structure{
		Symbols:   append([]string(nil), s.Symbols...),
		Positions: append([][3]float64(nil), s.Positions...),
		PBC:       s.PBC,
	}
	if s.Cell != nil {
		cell := *s.Cell
		out.Cell = &cell
	}
	return out
}
