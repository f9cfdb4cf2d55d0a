package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baseDoc = `
run:
  runs_dir: "runs"
  precision_digits: 8
structure:
  path: null
calculator:
  backend: "pyscf"
  method: "dft"
  xc: "PBE"
  basis: "def2-svp"
  charge: 0
  spin: 0
  scf:
    conv_tol: 1e-8
    max_cycle: 50
relax:
  enabled: true
  optimizer: "BFGS"
  fmax: 0.05
  steps: 200
validate:
  require_scf_converged: true
  max_force: 0.05
output:
  write_trajectory: true
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveMergeAndOverrides(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	materialsDir := filepath.Join(dir, "materials")
	writeFile(t, defaultPath, baseDoc)
	writeFile(t, filepath.Join(materialsDir, "h2.yaml"), `
structure:
  path: "structures/h2.xyz"
calculator:
  xc: "LDA"
relax:
  enabled: false
`)

	resolved, err := Resolve(ResolveInput{
		DefaultPath:  defaultPath,
		MaterialID:   "h2",
		MaterialsDir: materialsDir,
		Overrides: Overrides{
			RunsDir:       "my_runs",
			StructurePath: "override.xyz",
			RunName:       "demo",
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	cfg := resolved.Config
	if cfg.Run.RunsDir != "my_runs" {
		t.Errorf("runs_dir = %q, want my_runs", cfg.Run.RunsDir)
	}
	if cfg.Run.RunName == nil || *cfg.Run.RunName != "demo" {
		t.Errorf("run_name = %v, want demo", cfg.Run.RunName)
	}
	if cfg.Structure.Path == nil || *cfg.Structure.Path != "override.xyz" {
		t.Errorf("structure.path = %v, want override.xyz", cfg.Structure.Path)
	}
	if cfg.Calculator.XC != "LDA" {
		t.Errorf("xc = %q, want LDA (overlay wins)", cfg.Calculator.XC)
	}
	if cfg.Relax.Enabled {
		t.Error("relax.enabled = true, want false (overlay wins)")
	}

	// Provenance records the layer that last set each value.
	if _, ok := resolved.Sources["default"]; !ok {
		t.Error("missing default source")
	}
	if _, ok := resolved.Sources["material"]; !ok {
		t.Error("missing material source")
	}
	overrides, ok := resolved.Sources["overrides"].(map[string]any)
	if !ok {
		t.Fatalf("missing overrides provenance: %v", resolved.Sources)
	}
	if overrides["structure.path"] != "override.xyz" {
		t.Errorf("override provenance = %v", overrides)
	}
}

func TestResolveDefaultsApply(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	writeFile(t, defaultPath, "run:\n  retries: 2\n")

	resolved, err := Resolve(ResolveInput{DefaultPath: defaultPath})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cfg := resolved.Config
	if cfg.Run.Retries != 2 {
		t.Errorf("retries = %d, want 2", cfg.Run.Retries)
	}
	if cfg.Calculator.Backend != "pyscf" || cfg.Calculator.SCF.MaxCycle != 50 {
		t.Errorf("defaults not applied: %+v", cfg.Calculator)
	}
	if cfg.Calculator.PBC.Enabled != nil {
		t.Error("pbc.enabled default should be nil (auto)")
	}
	if doc, ok := resolved.Document["calculator"].(map[string]any); !ok || doc["basis"] != "def2-svp" {
		t.Errorf("resolved document missing defaults: %v", resolved.Document)
	}
}

func TestResolveRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	writeFile(t, defaultPath, "calculator:\n  backnd: pyscf\n")

	_, err := Resolve(ResolveInput{DefaultPath: defaultPath})
	if err == nil {
		t.Fatal("expected validation error for unknown key")
	}
	if !IsValidationError(err) {
		t.Errorf("error kind = %T, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "backnd") {
		t.Errorf("error does not name offending key: %v", err)
	}
}

func TestResolveConstraintViolationNamesField(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	writeFile(t, defaultPath, "run:\n  precision_digits: 99\n")

	_, err := Resolve(ResolveInput{DefaultPath: defaultPath})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidationError(err) {
		t.Errorf("error kind = %T, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "precision_digits") {
		t.Errorf("error does not name field path: %v", err)
	}
}

func TestResolveTypeMismatchIsValidationError(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	writeFile(t, defaultPath, "run:\n  precision_digits: \"eight\"\n")

	_, err := Resolve(ResolveInput{DefaultPath: defaultPath})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidationError(err) {
		t.Errorf("error kind = %T, want ValidationError", err)
	}
}

func TestResolveMissingMaterialIsLoadError(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yaml")
	writeFile(t, defaultPath, baseDoc)

	_, err := Resolve(ResolveInput{
		DefaultPath:  defaultPath,
		MaterialID:   "nope",
		MaterialsDir: filepath.Join(dir, "materials"),
	})
	if err == nil {
		t.Fatal("expected load error for missing material")
	}
	if !IsLoadError(err) {
		t.Errorf("error kind = %T, want LoadError", err)
	}
	if !strings.Contains(err.Error(), "nope.yaml") {
		t.Errorf("error does not name expected path: %v", err)
	}
}

func TestLoadDocumentRejectsNonMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	writeFile(t, path, "- just\n- a\n- list\n")

	_, err := LoadDocument(path)
	if err == nil {
		t.Fatal("expected load error for non-mapping document")
	}
	if !IsLoadError(err) {
		t.Errorf("error kind = %T, want LoadError", err)
	}
}

func TestLoadDocumentEmptyFileIsEmptyMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	writeFile(t, path, "")

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("doc = %v, want empty", doc)
	}
}

func TestInferProjectRoot(t *testing.T) {
	root := InferProjectRoot("/proj/configs/default.yaml")
	if root != "/proj" {
		t.Errorf("InferProjectRoot = %q, want /proj", root)
	}
}
