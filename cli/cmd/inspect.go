package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/annealab/crucible/cli/reader"
	"github.com/annealab/crucible/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single run.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single run",
		Subcommands: []*cli.Command{
			inspectRunCommand(),
		},
	}
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Inspect a run by ID",
		ArgsUsage: "<run-id>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id required", 1)
	}
	runID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp, err := reader.New(c.String("runs-dir")).InspectRun(runID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", resp)
	}
	return r.Render(resp)
}
