package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/annealab/crucible/engine"
	"github.com/annealab/crucible/runstore"
	"github.com/annealab/crucible/validate"
)

// Summary is the machine-readable results/summary.json document.
type Summary struct {
	Status      string                    `json:"status"`
	RunID       string                    `json:"run_id"`
	MaterialID  string                    `json:"material_id"`
	Structure   SummaryStructure          `json:"structure"`
	Relaxation  *engine.RelaxationRecord  `json:"relaxation"`
	Retry       engine.RetryState         `json:"retry"`
	Calculation *engine.CalculationRecord `json:"calculation"`
	Validation  validate.Outcome          `json:"validation"`
}

// SummaryStructure is the structure section of the summary.
type SummaryStructure struct {
	Hash          string `json:"hash"`
	CanonicalPath string `json:"canonical_path"`
}

// ValidateAndReport evaluates the calculation against the configured
// thresholds and overwrites the placeholder summary and report with the
// final verdict. These writes are the run's record of success or failure,
// so unlike logging they propagate fatally when they fail.
func ValidateAndReport(_ context.Context, st *engine.State) error {
	stage := string(engine.StageValidateAndReport)
	cfg := st.Resolved.Config

	in := validate.Input{}
	if st.Calculation != nil {
		in.Energy = st.Calculation.EnergyEV
		in.Forces = st.Calculation.Forces
		in.SCFConverged = st.Calculation.SCFConverged != nil && *st.Calculation.SCFConverged
	}
	outcome := validate.Evaluate(in, cfg.Validate)
	st.Validation = &outcome

	status := "done"
	if in.Energy == nil {
		status = "no_calculation"
	}

	summary := Summary{
		Status:     status,
		RunID:      st.Store.RunID(),
		MaterialID: st.MaterialID,
		Structure: SummaryStructure{
			Hash:          st.Structure.CanonicalHash,
			CanonicalPath: st.Structure.CanonicalPath,
		},
		Relaxation:  st.Relaxation,
		Retry:       st.Retry,
		Calculation: st.Calculation,
		Validation:  outcome,
	}

	if err := runstore.WriteJSON(st.Store.SummaryPath(), summary); err != nil {
		return fmt.Errorf("cannot write summary: %w", err)
	}
	if err := runstore.WriteText(st.Store.ReportPath(), renderReport(summary)); err != nil {
		return fmt.Errorf("cannot write report: %w", err)
	}

	st.Log.Info(stage, "validation verdict recorded", map[string]any{
		"passed":  outcome.Passed,
		"reasons": outcome.Reasons,
		"status":  status,
	})
	return nil
}

// renderReport renders the human-readable Markdown report. Deterministic
// for a given summary: no timestamps, stable value formatting.
func renderReport(s Summary) string {
	var b strings.Builder
	b.WriteString("# crucible report\n\n")
	fmt.Fprintf(&b, "Run: `%s`  \n", s.RunID)
	fmt.Fprintf(&b, "Material: `%s`\n\n", s.MaterialID)
	fmt.Fprintf(&b, "Structure hash: `%s`\n\n", orNone(s.Structure.Hash))

	var energy, maxForce *float64
	if s.Calculation != nil {
		energy = s.Calculation.EnergyEV
	}
	maxForce = s.Validation.MaxForce
	fmt.Fprintf(&b, "Energy (eV): `%s`  \n", floatOrNull(energy))
	fmt.Fprintf(&b, "Max force (eV/A): `%s`\n\n", floatOrNull(maxForce))

	if s.Relaxation != nil {
		fmt.Fprintf(&b, "Relax enabled: `%t`  \n", s.Relaxation.Enabled)
		fmt.Fprintf(&b, "Relax optimizer: `%s`  \n", strOrNull(s.Relaxation.Optimizer))
		fmt.Fprintf(&b, "Relax steps: `%s`\n\n", intOrNull(s.Relaxation.StepsTaken))
	} else {
		b.WriteString("Relax enabled: `false`\n\n")
	}

	fmt.Fprintf(&b, "Retries used: `%d`\n\n", s.Retry.RetriesUsed)
	fmt.Fprintf(&b, "Status: **%s**  \n", s.Status)
	fmt.Fprintf(&b, "Passed: **%t**\n\n", s.Validation.Passed)

	b.WriteString("## Reasons\n\n")
	if len(s.Validation.Reasons) == 0 {
		b.WriteString("- (none)\n")
	} else {
		for _, r := range s.Validation.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func strOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}

func intOrNull(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}

func floatOrNull(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
