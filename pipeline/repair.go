package pipeline

import (
	"context"

	"github.com/annealab/crucible/engine"
)

// Repair policy bounds: max_cycle is first raised to repairMaxCycleFloor,
// then doubled per attempt up to repairMaxCycleCap. conv_tol is only ever
// relaxed, never tightened, with repairConvTolFloor as the loosest value
// the policy itself introduces.
const (
	repairMaxCycleFloor = 50
	repairMaxCycleCap   = 400
	repairConvTolFloor  = 1e-8
)

const retryReasonSCF = "scf_not_converged"

// RepairAndRetry deterministically adjusts the SCF parameters in the
// resolved configuration, appends an attempt record to the retry history,
// and persists the updated retry state into the manifest immediately, so a
// crash mid-loop still leaves retry provenance on disk. With no budget
// remaining it logs and returns the state unchanged.
func RepairAndRetry(_ context.Context, st *engine.State) error {
	stage := string(engine.StageRepairAndRetry)

	if st.Retry.RetriesRemaining <= 0 {
		st.Log.Info(stage, "no retries remaining (skipping)", map[string]any{
			"retries_used": st.Retry.RetriesUsed,
		})
		return nil
	}

	scf := &st.Resolved.Config.Calculator.SCF
	prevMaxCycle := scf.MaxCycle
	prevConvTol := scf.ConvTol

	newMaxCycle := prevMaxCycle * 2
	if prevMaxCycle < repairMaxCycleFloor {
		newMaxCycle = repairMaxCycleFloor
	} else if newMaxCycle > repairMaxCycleCap {
		newMaxCycle = repairMaxCycleCap
	}

	newConvTol := prevConvTol
	if newConvTol < repairConvTolFloor {
		newConvTol = repairConvTolFloor
	}

	changes := map[string]engine.ParamChange{
		"calculator.scf.max_cycle": {Old: prevMaxCycle, New: newMaxCycle},
		"calculator.scf.conv_tol":  {Old: prevConvTol, New: newConvTol},
	}

	scf.MaxCycle = newMaxCycle
	scf.ConvTol = newConvTol

	st.Retry.RetriesUsed++
	st.Retry.RetriesRemaining--
	st.Retry.History = append(st.Retry.History, engine.RetryAttempt{
		Attempt: st.Retry.RetriesUsed,
		Changes: changes,
		Reason:  retryReasonSCF,
	})
	st.Metrics.IncRepairApplied()

	st.Log.Info(stage, "applied retry modifications", map[string]any{
		"attempt":           st.Retry.RetriesUsed,
		"retries_remaining": st.Retry.RetriesRemaining,
		"max_cycle_old":     prevMaxCycle,
		"max_cycle_new":     newMaxCycle,
		"conv_tol_old":      prevConvTol,
		"conv_tol_new":      newConvTol,
	})

	return st.Store.UpdateManifest(func(manifest map[string]any) {
		manifest["retry"] = st.Retry
	})
}
