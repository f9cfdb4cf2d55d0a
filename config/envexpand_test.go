package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CRUCIBLE_TEST_VAR", "hello")
	t.Setenv("CRUCIBLE_EMPTY_VAR", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${CRUCIBLE_TEST_VAR}", "hello"},
		{"unset variable", "${CRUCIBLE_UNSET_VAR}", ""},
		{"unset with default", "${CRUCIBLE_UNSET_VAR:-fallback}", "fallback"},
		{"empty with default", "${CRUCIBLE_EMPTY_VAR:-fallback}", "fallback"},
		{"set ignores default", "${CRUCIBLE_TEST_VAR:-fallback}", "hello"},
		{"embedded", "runs_dir: ${CRUCIBLE_TEST_VAR}/runs", "runs_dir: hello/runs"},
		{"multiple", "${CRUCIBLE_TEST_VAR}-${CRUCIBLE_UNSET_VAR:-x}", "hello-x"},
		{"no pattern", "plain text $VAR", "plain text $VAR"},
		{"invalid name untouched", "${1BAD}", "${1BAD}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadDocument_ExpandsEnv(t *testing.T) {
	t.Setenv("CRUCIBLE_TEST_RUNS", "sweep-runs")

	path := filepath.Join(t.TempDir(), "default.yaml")
	content := "run:\n  runs_dir: ${CRUCIBLE_TEST_RUNS}\n  run_name: ${CRUCIBLE_TEST_LABEL:-baseline}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	run, ok := doc["run"].(map[string]any)
	if !ok {
		t.Fatalf("run section missing: %v", doc)
	}
	if run["runs_dir"] != "sweep-runs" {
		t.Errorf("runs_dir = %v, want sweep-runs", run["runs_dir"])
	}
	if run["run_name"] != "baseline" {
		t.Errorf("run_name = %v, want baseline default", run["run_name"])
	}
}
