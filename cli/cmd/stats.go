package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/annealab/crucible/cli/reader"
	"github.com/annealab/crucible/cli/render"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts about a runs directory.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated run statistics",
		Subcommands: []*cli.Command{
			statsRunsCommand(),
		},
	}
}

func statsRunsCommand() *cli.Command {
	return &cli.Command{
		Name:   "runs",
		Usage:  "Show run statistics",
		Flags:  TUIReadOnlyFlags(),
		Action: statsRunsAction,
	}
}

func statsRunsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	stats, err := reader.New(c.String("runs-dir")).StatsRuns()
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_runs", stats)
	}
	return r.Render(stats)
}
