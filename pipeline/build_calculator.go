package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/annealab/crucible/compute"
	"github.com/annealab/crucible/config"
	"github.com/annealab/crucible/engine"
)

// BuildCalculator checks the configured compute capabilities, decides
// molecular versus periodic mode, and records the calculation plan in state
// and the manifest. All statically-detectable capability problems surface
// here, before any compute adapter is invoked.
func BuildCalculator(_ context.Context, st *engine.State) error {
	stage := string(engine.StageBuildCalculator)
	cfg := st.Resolved.Config
	calc := cfg.Calculator

	backend := strings.ToLower(calc.Backend)
	method := strings.ToLower(calc.Method)
	if err := compute.CheckBackend(backend, method); err != nil {
		return &config.ValidationError{
			Field: "calculator",
			Msg:   err.Error(),
			Err:   err,
		}
	}
	if cfg.Relax.Enabled {
		if err := compute.CheckOptimizer(cfg.Relax.Optimizer); err != nil {
			return &config.ValidationError{
				Field: "relax.optimizer",
				Msg:   err.Error(),
				Err:   err,
			}
		}
	}

	// pbc.enabled nil means auto: follow the structure.
	usePBC := st.Mol != nil && st.Mol.IsPeriodic()
	if calc.PBC.Enabled != nil {
		usePBC = *calc.PBC.Enabled
	}
	mode := "molecule"
	if usePBC {
		mode = "pbc"
		if err := compute.CheckKPoints(calc.PBC.KPts); err != nil {
			return &config.ValidationError{
				Field: "calculator.pbc.kpts",
				Msg:   err.Error(),
				Err:   err,
			}
		}
	}

	plan := &compute.Plan{
		Mode:    mode,
		Backend: backend,
		Method:  method,
		XC:      calc.XC,
		Basis:   calc.Basis,
		Charge:  calc.Charge,
		Spin:    calc.Spin,
		SCF: compute.SCFParams{
			ConvTol:  calc.SCF.ConvTol,
			MaxCycle: calc.SCF.MaxCycle,
		},
		FallbackNewton: true,
		ComputeForces:  true,
	}
	if usePBC {
		plan.PBC = compute.PBCParams{
			Enabled:      true,
			Basis:        calc.PBC.Basis,
			Pseudo:       calc.PBC.Pseudo,
			Mesh:         calc.PBC.Mesh,
			KPts:         calc.PBC.KPts,
			UseMultigrid: calc.PBC.UseMultigrid,
		}
	}
	st.Plan = plan

	st.Calculation = &engine.CalculationRecord{
		Mode:    mode,
		Backend: backend,
		Method:  method,
		XC:      plan.XC,
		Basis:   plan.Basis,
		Charge:  plan.Charge,
		Spin:    plan.Spin,
	}

	st.Log.Info(stage, "prepared calculator plan", map[string]any{
		"mode":      mode,
		"backend":   backend,
		"method":    method,
		"xc":        plan.XC,
		"basis":     plan.Basis,
		"conv_tol":  plan.SCF.ConvTol,
		"max_cycle": plan.SCF.MaxCycle,
	})

	if err := st.Store.UpdateManifest(func(manifest map[string]any) {
		manifest["calculation_plan"] = plan
	}); err != nil {
		return fmt.Errorf("cannot record calculation plan: %w", err)
	}
	return nil
}
