// Package archive copies a completed run directory to a long-term storage
// target, keyed as <prefix>/<run_id>/<relative artifact path>. Targets are
// write-only from the orchestrator's point of view; nothing here reads
// archived data back.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/annealab/crucible/iox"
)

// Target stores one artifact under a key.
type Target interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
}

// Report summarizes one archival.
type Report struct {
	RunID    string   `json:"run_id"`
	Files    int      `json:"files"`
	Bytes    int64    `json:"bytes"`
	Artifact []string `json:"artifacts"`
}

// Run archives every regular file under runDir to target, keyed by the
// run id plus the path relative to the run directory. Files are uploaded
// in sorted path order so repeated archivals behave identically.
func Run(ctx context.Context, target Target, runDir, runID string) (*Report, error) {
	if runID == "" {
		return nil, fmt.Errorf("archive: empty run id")
	}

	var paths []string
	err := filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: cannot walk %q: %w", runDir, err)
	}
	sort.Strings(paths)

	report := &Report{RunID: runID}
	for _, path := range paths {
		rel, err := filepath.Rel(runDir, path)
		if err != nil {
			return nil, err
		}
		key := runID + "/" + filepath.ToSlash(rel)

		if err := putFile(ctx, target, key, path); err != nil {
			return nil, fmt.Errorf("archive: cannot store %q: %w", key, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		report.Files++
		report.Bytes += info.Size()
		report.Artifact = append(report.Artifact, key)
	}
	return report, nil
}

func putFile(ctx context.Context, target Target, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return target.Put(ctx, key, f, info.Size())
}

// joinKey joins key segments with "/", dropping empty segments.
func joinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
