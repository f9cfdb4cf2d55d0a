package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Overrides are the explicit CLI-level overrides applied to specific known
// paths after document merging.
type Overrides struct {
	RunsDir       string
	StructurePath string
	RunName       string
}

// Resolved is the outcome of configuration resolution: the typed tree, the
// generic resolved document (defaults applied, used for hashing and the
// manifest), the provenance map, and the inferred project root.
type Resolved struct {
	Config      Root
	Document    map[string]any
	Sources     map[string]any
	ProjectRoot string
}

// ResolveInput names the documents and overrides for one resolution.
type ResolveInput struct {
	DefaultPath  string
	MaterialID   string
	MaterialsDir string
	Overrides    Overrides
}

// InferProjectRoot infers the project root from the base config location:
// <root>/configs/default.yaml resolves to <root>; anything else falls back
// to the working directory.
func InferProjectRoot(configPath string) string {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	parent := filepath.Dir(abs)
	if filepath.Base(parent) == "configs" {
		return filepath.Dir(parent)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Resolve loads and merges the base document, the material overlay (when a
// material id is given), and the explicit overrides, in that fixed order,
// and validates the result. It is a pure function over its inputs plus the
// filesystem reads of the two documents.
func Resolve(in ResolveInput) (*Resolved, error) {
	defaultPath, err := filepath.Abs(in.DefaultPath)
	if err != nil {
		defaultPath = in.DefaultPath
	}
	projectRoot := InferProjectRoot(defaultPath)

	merged, err := LoadDocument(defaultPath)
	if err != nil {
		return nil, err
	}
	sources := map[string]any{"default": defaultPath}

	if in.MaterialID != "" {
		materialPath := filepath.Join(in.MaterialsDir, in.MaterialID+".yaml")
		if _, statErr := os.Stat(materialPath); statErr != nil {
			return nil, &LoadError{
				Path: materialPath,
				Msg: fmt.Sprintf("material config not found for material id %q: expected %s",
					in.MaterialID, materialPath),
				Err: statErr,
			}
		}
		overlay, err := LoadDocument(materialPath)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, overlay)
		sources["material"] = materialPath
	}

	overrideSources := map[string]any{}
	if in.Overrides.RunsDir != "" {
		setNested(merged, []string{"run", "runs_dir"}, in.Overrides.RunsDir)
		overrideSources["run.runs_dir"] = in.Overrides.RunsDir
	}
	if in.Overrides.RunName != "" {
		setNested(merged, []string{"run", "run_name"}, in.Overrides.RunName)
		overrideSources["run.run_name"] = in.Overrides.RunName
	}
	if in.Overrides.StructurePath != "" {
		setNested(merged, []string{"structure", "path"}, in.Overrides.StructurePath)
		overrideSources["structure.path"] = in.Overrides.StructurePath
	}
	if len(overrideSources) > 0 {
		sources["overrides"] = overrideSources
	}

	cfg, err := decodeStrict(merged)
	if err != nil {
		return nil, err
	}
	if err := checkConstraints(&cfg); err != nil {
		return nil, err
	}

	doc, err := documentOf(cfg)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Config:      cfg,
		Document:    doc,
		Sources:     sources,
		ProjectRoot: projectRoot,
	}, nil
}

// documentOf renders the typed tree back into a generic document with all
// defaults applied. This is what gets hashed and recorded in the manifest.
func documentOf(cfg Root) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, &ValidationError{Msg: "cannot encode resolved config", Err: err}
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Msg: "cannot decode resolved config", Err: err}
	}
	return doc, nil
}

// ResolveMaybeRelative resolves a possibly-relative path against the project
// root.
func ResolveMaybeRelative(path, projectRoot string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}
