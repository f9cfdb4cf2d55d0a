package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/annealab/crucible/config"
	"github.com/annealab/crucible/engine"
	"github.com/annealab/crucible/eventlog"
	"github.com/annealab/crucible/hashing"
	"github.com/annealab/crucible/runstore"
)

const configHashLen = 10
const inputHashLen = 16

// LoadConfig resolves the layered configuration, derives the run identity,
// creates the run directory, copies the structure input, and writes the
// initial manifest and placeholder result artifacts. After this stage every
// subsequent failure still leaves an inspectable run directory behind.
func LoadConfig(_ context.Context, st *engine.State) error {
	configPath, err := filepath.Abs(st.ConfigPath)
	if err != nil {
		configPath = st.ConfigPath
	}
	materialsDir := filepath.Join(filepath.Dir(configPath), "materials")

	resolved, err := config.Resolve(config.ResolveInput{
		DefaultPath:  configPath,
		MaterialID:   st.MaterialID,
		MaterialsDir: materialsDir,
		Overrides:    st.Overrides,
	})
	if err != nil {
		return err
	}
	st.Resolved = resolved
	cfg := resolved.Config

	// Structure input content hash, computed from the source before the run
	// directory exists because it feeds the config hash and therefore the
	// run identifier.
	var srcPath, inputHash string
	if cfg.Structure.Path != nil && *cfg.Structure.Path != "" {
		srcPath = config.ResolveMaybeRelative(*cfg.Structure.Path, resolved.ProjectRoot)
		if full, hashErr := hashing.SHA256File(srcPath); hashErr == nil {
			inputHash = full[:inputHashLen]
		}
	}

	configHash, err := hashing.ShortHash(map[string]any{
		"resolved_config":      resolved.Document,
		"structure_input_hash": inputHash,
	}, configHashLen)
	if err != nil {
		return fmt.Errorf("cannot hash resolved config: %w", err)
	}
	st.ConfigHash = configHash

	createdAt := time.Now().UTC()
	gitRev, _ := runstore.GitShortRev(resolved.ProjectRoot)
	st.GitRev = gitRev

	var label string
	if cfg.Run.RunName != nil {
		label = *cfg.Run.RunName
	}
	runID := runstore.BuildRunID(runstore.RunIDParts{
		CreatedAt:  createdAt,
		MaterialID: st.MaterialID,
		ConfigHash: configHash,
		Revision:   gitRev,
		Label:      label,
	})

	runsDir := cfg.Run.RunsDir
	if !filepath.IsAbs(runsDir) {
		runsDir = filepath.Join(resolved.ProjectRoot, runsDir)
	}
	store, err := runstore.Create(runsDir, runID)
	if err != nil {
		return err
	}
	st.Store = store
	st.Log = eventlog.Open(store.LogPath())
	st.Log.StageStart(string(engine.StageLoadConfig), nil)
	st.Log.Info(string(engine.StageLoadConfig), "run directory created", map[string]any{
		"run_id":      store.RunID(),
		"run_dir":     store.Dir(),
		"material_id": st.MaterialID,
		"config_hash": configHash,
	})

	// Copy the structure input into input/. A missing source is recorded
	// and skipped; validation will fail the run later. A copy failure on an
	// existing source is a real I/O problem and propagates.
	st.Structure.Path = cfg.Structure.Path
	if srcPath != "" {
		st.Structure.ResolvedPath = srcPath
		if info, statErr := os.Stat(srcPath); statErr == nil && info.Mode().IsRegular() {
			dest, fullHash, copyErr := store.CopyStructureInput(srcPath)
			if copyErr != nil {
				return copyErr
			}
			st.Structure.CopiedPath = dest
			st.Structure.InputHash = fullHash[:inputHashLen]
			st.Log.Info(string(engine.StageLoadConfig), "copied structure input", map[string]any{
				"structure_src":        srcPath,
				"structure_dest":       dest,
				"structure_input_hash": st.Structure.InputHash,
			})
		} else {
			st.Log.Error(string(engine.StageLoadConfig), "structure path does not exist (skipping copy)", map[string]any{
				"structure_src": srcPath,
			})
		}
	}

	st.Retry = engine.RetryState{
		RetriesRemaining: cfg.Run.Retries,
		History:          []engine.RetryAttempt{},
	}

	if err := runstore.WriteJSON(store.SummaryPath(), map[string]any{
		"status":      "initialized",
		"run_id":      store.RunID(),
		"material_id": st.MaterialID,
	}); err != nil {
		return err
	}
	placeholder := fmt.Sprintf("# crucible report\n\nRun: `%s`\n\nStatus: initialized\n", store.RunID())
	if err := runstore.WriteText(store.ReportPath(), placeholder); err != nil {
		return err
	}

	manifest := map[string]any{
		"run_id":          store.RunID(),
		"created_at_utc":  createdAt.Format(time.RFC3339),
		"material_id":     st.MaterialID,
		"run_dir":         store.Dir(),
		"config_hash":     configHash,
		"config_sources":  resolved.Sources,
		"resolved_config": resolved.Document,
		"structure": map[string]any{
			"path":        cfg.Structure.Path,
			"input_hash":  st.Structure.InputHash,
			"copied_path": st.Structure.CopiedPath,
		},
		"git":   map[string]any{"commit_short": gitRev},
		"env":   runstore.CurrentEnv(),
		"retry": st.Retry,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		manifest["build"] = map[string]any{
			"module":  bi.Main.Path,
			"version": bi.Main.Version,
		}
	}
	return runstore.WriteJSON(store.ManifestPath(), manifest)
}
