package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/annealab/crucible/compute"
	"github.com/annealab/crucible/config"
	"github.com/annealab/crucible/engine"
	"github.com/annealab/crucible/metrics"
	"github.com/annealab/crucible/pipeline"
)

// Exit codes for the run command.
const (
	exitSuccess     = 0
	exitRunError    = 1
	exitConfigError = 2
)

// newComputeBackend builds the calculator and optimizer for a run.
// A variable so tests can substitute an in-process stub instead of
// spawning a worker subprocess.
var newComputeBackend = func(worker string) (compute.Calculator, compute.Optimizer) {
	bridge := compute.NewWorkerBridge(strings.Fields(worker)...)
	return bridge, bridge
}

// RunCommand returns the run command, the only command that executes
// the workflow.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the workflow for a material",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "configs/default.yaml",
				Usage: "Path to default config YAML",
			},
			&cli.StringFlag{
				Name:     "material",
				Required: true,
				Usage:    "Material id (loads <config dir>/materials/<id>.yaml)",
			},
			&cli.StringFlag{
				Name:  "structure",
				Usage: "Override structure path",
			},
			&cli.StringFlag{
				Name:  "runs-dir",
				Usage: "Override runs output directory",
			},
			&cli.StringFlag{
				Name:  "run-name",
				Usage: "Optional run label (included in run dir name)",
			},
			&cli.StringFlag{
				Name:  "worker",
				Value: "crucible-worker",
				Usage: "Compute worker command",
			},
		},
		Action: runAction,
	}
}

// runAction executes the workflow end to end. A completed run exits 0
// even when validation fails; the verdict lives in the artifacts, not
// the exit code. Configuration errors exit 2 so scripted sweeps can
// tell bad inputs from infrastructure trouble.
func runAction(c *cli.Context) error {
	calculator, optimizer := newComputeBackend(c.String("worker"))

	st := &engine.State{
		ConfigPath: c.String("config"),
		MaterialID: c.String("material"),
		Overrides: config.Overrides{
			RunsDir:       c.String("runs-dir"),
			StructurePath: c.String("structure"),
			RunName:       c.String("run-name"),
		},
		Argv:       os.Args[1:],
		Calculator: calculator,
		Optimizer:  optimizer,
		Metrics:    metrics.NewCollector("", "", "", c.String("material")),
	}

	eng, err := engine.New(pipeline.Stages())
	if err != nil {
		return err
	}
	runErr := eng.Run(c.Context, st)
	st.Log.Close()
	if runErr != nil {
		if config.IsFatal(runErr) {
			return cli.Exit(runErr.Error(), exitConfigError)
		}
		return cli.Exit(runErr.Error(), exitRunError)
	}

	printRunOutcome(c.App.Writer, st)
	return nil
}

// printRunOutcome writes the stable key: value lines downstream tooling
// scrapes from stdout.
func printRunOutcome(w io.Writer, st *engine.State) {
	runDir := "<unknown>"
	if st.Store != nil {
		runDir = st.Store.Dir()
	}
	fmt.Fprintf(w, "run_dir: %s\n", runDir)

	passed := "null"
	if st.Validation != nil {
		passed = strconv.FormatBool(st.Validation.Passed)
	}
	fmt.Fprintf(w, "passed: %s\n", passed)

	if st.Calculation != nil && st.Calculation.EnergyEV != nil {
		fmt.Fprintf(w, "energy_eV: %s\n", strconv.FormatFloat(*st.Calculation.EnergyEV, 'g', -1, 64))
	}
	if st.Validation != nil && st.Validation.MaxForce != nil {
		fmt.Fprintf(w, "max_force: %s\n", strconv.FormatFloat(*st.Validation.MaxForce, 'g', -1, 64))
	}
}
