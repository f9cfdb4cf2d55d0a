package engine

import (
	"context"
	"fmt"
	"time"
)

// Stage names the units of work in the workflow graph.
type Stage string

const (
	StageLoadConfig        Stage = "load_config"
	StageLoadStructure     Stage = "load_structure"
	StageBuildCalculator   Stage = "build_calculator"
	StageRunRelaxation     Stage = "run_relaxation"
	StageRepairAndRetry    Stage = "repair_and_retry"
	StageValidateAndReport Stage = "validate_and_report"

	// StageEnd is the terminal pseudo-stage.
	StageEnd Stage = "end"
)

// Route explains why a transition was taken. The two inbound edges to
// validation are kept distinct so a converged run and an exhausted run
// remain separately observable.
type Route string

const (
	// RouteAdvance is the unconditional edge to the next stage.
	RouteAdvance Route = "advance"
	// RouteConverged routes to validation because SCF converged.
	RouteConverged Route = "converged"
	// RouteRetry routes back through repair because SCF did not converge
	// and retry budget remains.
	RouteRetry Route = "retry"
	// RouteExhausted routes to validation because SCF did not converge
	// and the retry budget is spent.
	RouteExhausted Route = "exhausted"
	// RouteEnd terminates the workflow.
	RouteEnd Route = "end"
)

// Next is the transition table. The only conditional edge reads
// scf_converged from the calculation record and retries_remaining from
// retry state; everything else is a fixed edge.
func Next(stage Stage, st *State) (Stage, Route) {
	switch stage {
	case StageLoadConfig:
		return StageLoadStructure, RouteAdvance
	case StageLoadStructure:
		return StageBuildCalculator, RouteAdvance
	case StageBuildCalculator:
		return StageRunRelaxation, RouteAdvance
	case StageRunRelaxation:
		if st.Converged() {
			return StageValidateAndReport, RouteConverged
		}
		if st.Retry.RetriesRemaining > 0 {
			return StageRepairAndRetry, RouteRetry
		}
		return StageValidateAndReport, RouteExhausted
	case StageRepairAndRetry:
		return StageRunRelaxation, RouteAdvance
	case StageValidateAndReport:
		return StageEnd, RouteEnd
	default:
		return StageEnd, RouteEnd
	}
}

// StageFunc runs one stage against the shared state.
type StageFunc func(ctx context.Context, st *State) error

// maxTransitions bounds the total stage count. The graph's only cycle is
// already bounded by the retry budget; this cap exists so a wiring bug can
// never spin forever.
const maxTransitions = 64

// Engine executes the workflow graph strictly sequentially.
type Engine struct {
	stages map[Stage]StageFunc
}

// New creates an Engine over the given stage implementations. Every stage
// named by the transition table must be present.
func New(stages map[Stage]StageFunc) (*Engine, error) {
	required := []Stage{
		StageLoadConfig,
		StageLoadStructure,
		StageBuildCalculator,
		StageRunRelaxation,
		StageRepairAndRetry,
		StageValidateAndReport,
	}
	for _, s := range required {
		if stages[s] == nil {
			return nil, fmt.Errorf("engine: missing stage %q", s)
		}
	}
	return &Engine{stages: stages}, nil
}

// Run drives the graph from load_config to the terminal stage. Stage
// errors propagate immediately; the run directory keeps whatever
// artifacts were written before the failure.
func (e *Engine) Run(ctx context.Context, st *State) error {
	stage := StageLoadConfig
	st.Metrics.IncRunStarted()

	for i := 0; stage != StageEnd; i++ {
		if i >= maxTransitions {
			return fmt.Errorf("engine: exceeded %d transitions at stage %q", maxTransitions, stage)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("engine: canceled before stage %q: %w", stage, err)
		}

		fn := e.stages[stage]
		if fn == nil {
			return fmt.Errorf("engine: no implementation for stage %q", stage)
		}

		t0 := time.Now()
		// The event log does not exist until load_config opens the run
		// directory; that stage emits its own start event after opening it.
		if st.Log != nil {
			st.Log.StageStart(string(stage), nil)
		}
		st.Metrics.IncStageRun(string(stage))

		if err := fn(ctx, st); err != nil {
			st.Log.Error(string(stage), err.Error(), nil)
			return err
		}

		next, route := Next(stage, st)
		st.Metrics.IncRouteDecided()
		st.Log.StageEnd(string(stage), time.Since(t0), map[string]any{
			"route": string(route),
			"next":  string(next),
		})
		stage = next
	}

	st.Metrics.IncRunCompleted()
	st.Metrics.AbsorbRetriesUsed(st.Retry.RetriesUsed)
	if st.Validation != nil {
		if st.Validation.Passed {
			st.Metrics.IncRunPassed()
		} else {
			st.Metrics.IncRunFailed()
		}
	}
	return nil
}
