package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/annealab/crucible/compute"
	"github.com/annealab/crucible/engine"
	"github.com/annealab/crucible/structio"
)

// RunRelaxation invokes the compute adapters: a geometry relaxation through
// the Optimizer when relax.enabled, otherwise a bare single-point through
// the Calculator. Adapter failures are recorded into the calculation record
// and never propagated, so the retry loop and final validation always run
// and artifacts are always written.
func RunRelaxation(ctx context.Context, st *engine.State) error {
	stage := string(engine.StageRunRelaxation)
	cfg := st.Resolved.Config

	if st.Calculation == nil {
		st.Calculation = &engine.CalculationRecord{}
	}

	if st.Mol == nil || st.Calculator == nil {
		st.Log.Info(stage, "no calculation performed", map[string]any{
			"have_structure":  st.Mol != nil,
			"have_calculator": st.Calculator != nil,
		})
		return nil
	}

	// The repair policy mutates the resolved SCF section between attempts;
	// pick it up fresh on every traversal.
	st.Plan.SCF = compute.SCFParams{
		ConvTol:  cfg.Calculator.SCF.ConvTol,
		MaxCycle: cfg.Calculator.SCF.MaxCycle,
	}

	st.Metrics.IncCalculatorCall()
	t0 := time.Now()

	var result *compute.Result
	var err error
	if cfg.Relax.Enabled && st.Optimizer != nil {
		result, err = relax(ctx, st)
	} else {
		result, err = st.Calculator.SinglePoint(ctx, st.Mol, st.Plan)
	}
	walltime := time.Since(t0).Seconds()
	st.Calculation.WalltimeS = &walltime

	if err != nil {
		st.Metrics.IncCalculatorError()
		if compute.IsFrameError(err) {
			st.Metrics.IncWorkerFrameError()
		}
		msg := err.Error()
		converged := false
		st.Calculation.Error = &msg
		st.Calculation.SCFConverged = &converged
		st.Calculation.EnergyEV = nil
		st.Calculation.Forces = nil
		st.Log.Error(stage, "calculation failed", map[string]any{
			"error":      msg,
			"walltime_s": walltime,
		})
		return nil
	}

	st.Calculation.Error = nil
	st.Calculation.EnergyEV = result.Energy
	st.Calculation.Forces = result.Forces
	converged := result.SCFConverged
	st.Calculation.SCFConverged = &converged
	iterations := result.SCFIterations
	st.Calculation.SCFIterations = &iterations
	if result.Solver != "" {
		solver := result.Solver
		st.Calculation.SCFSolver = &solver
	}

	st.Log.Info(stage, "calculation finished", map[string]any{
		"scf_converged":  result.SCFConverged,
		"scf_iterations": result.SCFIterations,
		"walltime_s":     walltime,
	})
	return nil
}

// relax drives the Optimizer, streaming trajectory snapshots and writing
// the final relaxed structure under results/.
func relax(ctx context.Context, st *engine.State) (*compute.Result, error) {
	stage := string(engine.StageRunRelaxation)
	cfg := st.Resolved.Config
	digits := cfg.Run.PrecisionDigits

	params := compute.RelaxParams{
		Optimizer: cfg.Relax.Optimizer,
		FMax:      cfg.Relax.FMax,
		Steps:     cfg.Relax.Steps,
	}

	optimizer := cfg.Relax.Optimizer
	fmax := cfg.Relax.FMax
	steps := cfg.Relax.Steps
	st.Relaxation = &engine.RelaxationRecord{
		Enabled:   true,
		Optimizer: &optimizer,
		FMax:      &fmax,
		Steps:     &steps,
	}

	var onStep compute.StepFunc
	var traj *os.File
	if cfg.Output.WriteTrajectory {
		trajPath := filepath.Join(st.Store.ResultsDir(), "trajectory.xyz")
		f, err := os.OpenFile(trajPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open trajectory %q: %w", trajPath, err)
		}
		traj = f
		st.Relaxation.TrajectoryPath = &trajPath
		onStep = func(step compute.Step) error {
			if step.Structure == nil {
				return nil
			}
			st.Metrics.AddOptimizerSteps(1)
			comment := fmt.Sprintf("step=%d", step.Index)
			return structio.WriteXYZ(traj, step.Structure, comment, digits)
		}
	} else {
		onStep = func(step compute.Step) error {
			st.Metrics.AddOptimizerSteps(1)
			return nil
		}
	}
	defer func() {
		if traj != nil {
			_ = traj.Close()
		}
	}()

	outcome, err := st.Optimizer.Relax(ctx, st.Mol, st.Plan, params, onStep)
	if err != nil {
		return nil, err
	}

	taken := outcome.StepsTaken
	st.Relaxation.StepsTaken = &taken

	if outcome.Final != nil {
		finalPath := filepath.Join(st.Store.ResultsDir(), "final.xyz")
		if err := writeStructureFile(finalPath, outcome.Final, "final", digits); err != nil {
			return nil, err
		}
		st.Relaxation.FinalStructurePath = &finalPath
		st.Mol = outcome.Final
	}

	st.Log.Info(stage, "relaxation finished", map[string]any{
		"optimizer":   params.Optimizer,
		"steps_taken": taken,
	})
	return &outcome.Result, nil
}

func writeStructureFile(path string, s *structio.Structure, comment string, digits int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %q: %w", path, err)
	}
	if err := structio.WriteXYZ(f, s, comment, digits); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
