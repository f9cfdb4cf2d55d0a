package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/annealab/crucible/archive"
	"github.com/annealab/crucible/cli/render"
)

// ArchiveCommand returns the archive command. It copies a completed run
// directory to durable storage, preserving the artifact layout under a
// per-run key prefix.
func ArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Archive a run directory to durable storage",
		ArgsUsage: "<run-id>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Storage backend: fs or s3",
				Value: "fs",
			},
			&cli.StringFlag{
				Name:     "storage-path",
				Usage:    "Storage path (fs: directory, s3: bucket/prefix)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "storage-region",
				Usage: "AWS region for the s3 backend",
			},
		),
		Action: archiveAction,
	}
}

func archiveAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id required", 1)
	}
	runID := c.Args().First()

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for the archive command", 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	target, err := buildArchiveTarget(c)
	if err != nil {
		return err
	}

	runDir := filepath.Join(c.String("runs-dir"), runID)
	report, err := archive.Run(c.Context, target, runDir, runID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(report)
}

func buildArchiveTarget(c *cli.Context) (archive.Target, error) {
	backend := c.String("storage-backend")
	path := c.String("storage-path")

	switch backend {
	case "fs":
		return &archive.FSTarget{Root: path}, nil
	case "s3":
		bucket, prefix := archive.ParseS3Path(path)
		return archive.NewS3Target(c.Context, archive.S3Config{
			Bucket: bucket,
			Prefix: prefix,
			Region: c.String("storage-region"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", backend)
	}
}
