package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RunsDir reads run artifacts from a runs directory.
type RunsDir struct {
	dir string
}

// New creates a reader over the given runs directory. The directory does
// not need to exist yet; reads over a missing directory return empty
// results rather than errors.
func New(runsDir string) *RunsDir {
	return &RunsDir{dir: runsDir}
}

// ListRuns returns one item per run directory, newest first. Run ids embed
// a UTC timestamp prefix, so reverse name order is reverse creation order.
func (r *RunsDir) ListRuns(opts ListRunsOptions) ([]ListRunItem, error) {
	ids, err := r.runIDs()
	if err != nil {
		return nil, err
	}

	items := []ListRunItem{}
	for _, id := range ids {
		manifest, summary, err := r.readRun(id)
		if err != nil {
			// A run directory without a readable manifest is not a run.
			continue
		}
		item := ListRunItem{
			RunID:      manifest.RunID,
			MaterialID: manifest.MaterialID,
			CreatedAt:  manifest.CreatedAt,
			Status:     summary.status(),
			Passed:     summary.passed(),
		}
		if opts.Status != "" && item.Status != opts.Status {
			continue
		}
		items = append(items, item)
		if opts.Limit > 0 && len(items) >= opts.Limit {
			break
		}
	}
	return items, nil
}

// InspectRun returns the deep view of a single run by id.
func (r *RunsDir) InspectRun(runID string) (*InspectRunResponse, error) {
	manifest, summary, err := r.readRun(runID)
	if err != nil {
		return nil, fmt.Errorf("run not found: %s: %w", runID, err)
	}

	resp := &InspectRunResponse{
		RunID:      manifest.RunID,
		MaterialID: manifest.MaterialID,
		RunDir:     filepath.Join(r.dir, runID),
		CreatedAt:  manifest.CreatedAt,
		ConfigHash: manifest.ConfigHash,
		GitCommit:  manifest.Git.CommitShort,
		Status:     summary.status(),
		Passed:     summary.passed(),
	}
	if summary.Validation != nil {
		resp.Reasons = summary.Validation.Reasons
		resp.MaxForce = summary.Validation.MaxForce
	}
	if summary.Calculation != nil {
		resp.EnergyEV = summary.Calculation.EnergyEV
		resp.SCFConverged = summary.Calculation.SCFConverged
	}
	if summary.Relaxation != nil {
		resp.RelaxSteps = summary.Relaxation.StepsTaken
	}
	if summary.Retry != nil {
		resp.RetriesUsed = summary.Retry.RetriesUsed
	}
	return resp, nil
}

// StatsRuns aggregates verdicts across every run in the directory.
func (r *RunsDir) StatsRuns() (*RunStats, error) {
	ids, err := r.runIDs()
	if err != nil {
		return nil, err
	}

	stats := &RunStats{}
	for _, id := range ids {
		_, summary, err := r.readRun(id)
		if err != nil {
			continue
		}
		stats.Total++
		if summary.Retry != nil {
			stats.RetriesUsed += summary.Retry.RetriesUsed
		}
		switch summary.status() {
		case "done":
			if p := summary.passed(); p != nil && *p {
				stats.Passed++
			} else {
				stats.Failed++
			}
		case "no_calculation":
			stats.NoCalculation++
		case "initialized":
			stats.Initialized++
		}
	}
	return stats, nil
}

// runIDs lists run directory names, newest first.
func (r *RunsDir) runIDs() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read runs directory %s: %w", r.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// readRun parses a run's manifest and summary. The manifest is required;
// a missing or unreadable summary degrades to an empty one so that runs
// interrupted before the placeholder write still list.
func (r *RunsDir) readRun(runID string) (*manifestDoc, *summaryDoc, error) {
	runDir := filepath.Join(r.dir, runID)

	data, err := os.ReadFile(filepath.Join(runDir, "manifest.json"))
	if err != nil {
		return nil, nil, err
	}
	manifest, err := parseManifest(data)
	if err != nil {
		return nil, nil, err
	}

	summary := &summaryDoc{}
	if data, err := os.ReadFile(filepath.Join(runDir, "results", "summary.json")); err == nil {
		if parsed, perr := parseSummary(data); perr == nil {
			summary = parsed
		}
	}
	return manifest, summary, nil
}
