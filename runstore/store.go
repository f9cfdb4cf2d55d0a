package runstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/annealab/crucible/hashing"
	"github.com/annealab/crucible/iox"
)

// maxCollisionSuffix bounds the deterministic numeric suffixes tried when two
// runs land in the same second.
const maxCollisionSuffix = 999

// Store is the artifact store for one run directory. It owns the fixed
// layout (input/, results/, manifest.json, logs.jsonl) and all structured
// writes into it.
type Store struct {
	runID  string
	runDir string
}

// Create materializes an isolated run directory under runsDir. If the
// canonical path already exists, deterministic numeric suffixes __01..__999
// are tried in order before failing.
func Create(runsDir, runID string) (*Store, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create runs directory %q: %w", runsDir, err)
	}

	candidate := filepath.Join(runsDir, runID)
	if err := os.Mkdir(candidate, 0o755); err == nil {
		return newStore(runID, candidate)
	} else if !os.IsExist(err) {
		return nil, fmt.Errorf("cannot create run directory %q: %w", candidate, err)
	}

	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate = filepath.Join(runsDir, fmt.Sprintf("%s__%02d", runID, i))
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return newStore(runID, candidate)
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("cannot create run directory %q: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("unable to create unique run directory for run id %q in %q", runID, runsDir)
}

// Open attaches to an existing run directory (read paths only; no layout
// creation). Used by the read-only CLI surfaces and the archiver.
func Open(runDir string) *Store {
	return &Store{runID: filepath.Base(runDir), runDir: runDir}
}

func newStore(runID, runDir string) (*Store, error) {
	s := &Store{runID: runID, runDir: runDir}
	for _, dir := range []string{s.InputDir(), s.ResultsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %q: %w", dir, err)
		}
	}
	return s, nil
}

// RunID returns the run identifier (directory basename, including any
// collision suffix).
func (s *Store) RunID() string { return s.runID }

// Dir returns the run directory root.
func (s *Store) Dir() string { return s.runDir }

// InputDir returns the copied/raw structure input directory.
func (s *Store) InputDir() string { return filepath.Join(s.runDir, "input") }

// ResultsDir returns the results artifact directory.
func (s *Store) ResultsDir() string { return filepath.Join(s.runDir, "results") }

// ManifestPath returns the canonical manifest document path.
func (s *Store) ManifestPath() string { return filepath.Join(s.runDir, "manifest.json") }

// LogPath returns the append-only structured log path.
func (s *Store) LogPath() string { return filepath.Join(s.runDir, "logs.jsonl") }

// SummaryPath returns the machine-readable summary path.
func (s *Store) SummaryPath() string { return filepath.Join(s.ResultsDir(), "summary.json") }

// ReportPath returns the human-readable report path.
func (s *Store) ReportPath() string { return filepath.Join(s.ResultsDir(), "report.md") }

// WriteText atomically writes text to path: the content lands at a temporary
// sibling first and is renamed over the final name, so a crash never leaves
// a half-written artifact visible under the canonical path.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create parent of %q: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("cannot write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cannot rename %q over %q: %w", tmp, path, err)
	}
	return nil
}

// WriteJSON atomically writes v as deterministic JSON (sorted keys, 2-space
// indent, trailing newline). Identical input data always produces
// byte-identical files.
func WriteJSON(path string, v any) error {
	canonical, err := hashing.StableJSON(v)
	if err != nil {
		return fmt.Errorf("cannot encode %q: %w", path, err)
	}
	var pretty json.RawMessage = canonical
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode %q: %w", path, err)
	}
	return WriteText(path, string(out)+"\n")
}

// ReadJSON reads a JSON document into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot decode %q: %w", path, err)
	}
	return nil
}

// UpdateManifest performs a read-modify-write of the manifest document:
// the current manifest is decoded (missing or corrupt manifests start from
// empty), mutate is applied, and the result is rewritten atomically. Later
// stages use this so a crash mid-run still leaves earlier provenance on disk.
func (s *Store) UpdateManifest(mutate func(manifest map[string]any)) error {
	manifest := map[string]any{}
	if data, err := os.ReadFile(s.ManifestPath()); err == nil {
		// A corrupt manifest is replaced rather than failing the run.
		_ = json.Unmarshal(data, &manifest)
	}
	mutate(manifest)
	return WriteJSON(s.ManifestPath(), manifest)
}

// CopyStructureInput copies the structure source file into input/ as
// structure<ext>, returning the destination path and the content hash of the
// copied bytes.
func (s *Store) CopyStructureInput(src string) (dest, contentHash string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", "", fmt.Errorf("cannot open structure input %q: %w", src, err)
	}
	defer iox.DiscardClose(in)

	dest = filepath.Join(s.InputDir(), "structure"+filepath.Ext(src))
	out, err := os.Create(dest)
	if err != nil {
		return "", "", fmt.Errorf("cannot create %q: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", "", fmt.Errorf("cannot copy structure input to %q: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return "", "", fmt.Errorf("cannot close %q: %w", dest, err)
	}

	contentHash, err = hashing.SHA256File(dest)
	if err != nil {
		return "", "", err
	}
	return dest, contentHash, nil
}
