package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/annealab/crucible/engine"
	"github.com/annealab/crucible/runstore"
	"github.com/annealab/crucible/structio"
)

// LoadStructure parses the copied structure input, canonicalizes it at the
// configured precision, and writes input/canonical.xyz. A run with no
// structure source continues with a nil structure; validation fails it at
// the end instead of aborting here.
func LoadStructure(_ context.Context, st *engine.State) error {
	stage := string(engine.StageLoadStructure)

	if st.Structure.CopiedPath == "" {
		st.Log.Info(stage, "no structure input (skipping)", map[string]any{
			"structure_path": st.Structure.Path,
		})
		return nil
	}

	mol, err := structio.ParseXYZFile(st.Structure.CopiedPath)
	if err != nil {
		return fmt.Errorf("cannot parse structure input %q: %w", st.Structure.CopiedPath, err)
	}

	digits := st.Resolved.Config.Run.PrecisionDigits
	st.Mol = structio.Canonicalize(mol, digits)

	raw, err := structio.CanonicalBytes(mol, digits)
	if err != nil {
		return err
	}
	canonicalPath := filepath.Join(st.Store.InputDir(), "canonical.xyz")
	if err := runstore.WriteText(canonicalPath, string(raw)); err != nil {
		return err
	}

	hash, err := structio.Hash(mol, digits)
	if err != nil {
		return err
	}
	st.Structure.CanonicalPath = canonicalPath
	st.Structure.CanonicalHash = hash

	st.Log.Info(stage, "canonicalized structure", map[string]any{
		"atoms":            mol.NumAtoms(),
		"periodic":         mol.IsPeriodic(),
		"precision_digits": digits,
		"structure_hash":   hash,
		"canonical_path":   canonicalPath,
	})

	return st.Store.UpdateManifest(func(manifest map[string]any) {
		structure, _ := manifest["structure"].(map[string]any)
		if structure == nil {
			structure = map[string]any{}
		}
		structure["hash"] = hash
		structure["canonical_path"] = canonicalPath
		manifest["structure"] = structure
	})
}
