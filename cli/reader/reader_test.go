package reader

import (
	"os"
	"path/filepath"
	"testing"
)

// writeRun lays out a minimal run directory with a manifest and summary.
func writeRun(t *testing.T, runsDir, runID, material, status string, passed *bool, retriesUsed int) {
	t.Helper()

	runDir := filepath.Join(runsDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "results"), 0o755); err != nil {
		t.Fatal(err)
	}

	manifest := `{
		"run_id": "` + runID + `",
		"created_at_utc": "2024-01-02T03:04:05Z",
		"material_id": "` + material + `",
		"config_hash": "abc1234567",
		"git": {"commit_short": "deadbee"}
	}`
	if err := os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	summary := `{"status": "` + status + `", "run_id": "` + runID + `", "material_id": "` + material + `"`
	if passed != nil {
		verdict := "false"
		if *passed {
			verdict = "true"
		}
		summary += `, "validation": {"passed": ` + verdict + `, "reasons": [], "max_force": 0.01}`
		summary += `, "calculation": {"energy_eV": -31.5, "scf_converged": ` + verdict + `}`
	}
	if retriesUsed > 0 {
		summary += `, "retry": {"retries_used": 1}`
	}
	summary += `}`
	if err := os.WriteFile(filepath.Join(runDir, "results", "summary.json"), []byte(summary), 0o644); err != nil {
		t.Fatal(err)
	}
}

func boolPtr(v bool) *bool { return &v }

func TestListRuns_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20240101T000000Z_h2_aaaaaaaaaa", "h2", "done", boolPtr(true), 0)
	writeRun(t, dir, "20240102T000000Z_tio2_bbbbbbbbbb", "tio2", "done", boolPtr(false), 1)
	writeRun(t, dir, "20240103T000000Z_h2_cccccccccc", "h2", "initialized", nil, 0)

	items, err := New(dir).ListRuns(ListRunsOptions{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].RunID != "20240103T000000Z_h2_cccccccccc" {
		t.Errorf("first item = %s, want newest run", items[0].RunID)
	}
	if items[0].Passed != nil {
		t.Error("initialized run should have nil passed")
	}
	if items[2].Passed == nil || !*items[2].Passed {
		t.Errorf("oldest run passed = %v, want true", items[2].Passed)
	}
}

func TestListRuns_StatusFilterAndLimit(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20240101T000000Z_a_aaaaaaaaaa", "a", "done", boolPtr(true), 0)
	writeRun(t, dir, "20240102T000000Z_b_bbbbbbbbbb", "b", "initialized", nil, 0)
	writeRun(t, dir, "20240103T000000Z_c_cccccccccc", "c", "done", boolPtr(false), 0)

	items, err := New(dir).ListRuns(ListRunsOptions{Status: "done"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("status filter: got %d items, want 2", len(items))
	}

	items, err = New(dir).ListRuns(ListRunsOptions{Limit: 1})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("limit: got %d items, want 1", len(items))
	}
}

func TestListRuns_MissingDirectory(t *testing.T) {
	items, err := New(filepath.Join(t.TempDir(), "nope")).ListRuns(ListRunsOptions{})
	if err != nil {
		t.Fatalf("ListRuns over missing dir failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestListRuns_SkipsDirectoriesWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20240101T000000Z_a_aaaaaaaaaa", "a", "done", boolPtr(true), 0)
	if err := os.MkdirAll(filepath.Join(dir, "stray"), 0o755); err != nil {
		t.Fatal(err)
	}

	items, err := New(dir).ListRuns(ListRunsOptions{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
}

func TestInspectRun(t *testing.T) {
	dir := t.TempDir()
	runID := "20240102T030405Z_tio2_abc1234567"
	writeRun(t, dir, runID, "tio2", "done", boolPtr(true), 1)

	resp, err := New(dir).InspectRun(runID)
	if err != nil {
		t.Fatalf("InspectRun failed: %v", err)
	}
	if resp.RunID != runID || resp.MaterialID != "tio2" {
		t.Errorf("identity = %s / %s", resp.RunID, resp.MaterialID)
	}
	if resp.ConfigHash != "abc1234567" || resp.GitCommit != "deadbee" {
		t.Errorf("provenance = %s / %s", resp.ConfigHash, resp.GitCommit)
	}
	if resp.Status != "done" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Passed == nil || !*resp.Passed {
		t.Errorf("passed = %v, want true", resp.Passed)
	}
	if resp.EnergyEV == nil || *resp.EnergyEV != -31.5 {
		t.Errorf("energy = %v", resp.EnergyEV)
	}
	if resp.MaxForce == nil || *resp.MaxForce != 0.01 {
		t.Errorf("max_force = %v", resp.MaxForce)
	}
	if resp.RetriesUsed != 1 {
		t.Errorf("retries_used = %d", resp.RetriesUsed)
	}
}

func TestInspectRun_NotFound(t *testing.T) {
	if _, err := New(t.TempDir()).InspectRun("missing"); err == nil {
		t.Error("expected error for unknown run id")
	}
}

func TestStatsRuns(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20240101T000000Z_a_aaaaaaaaaa", "a", "done", boolPtr(true), 1)
	writeRun(t, dir, "20240102T000000Z_b_bbbbbbbbbb", "b", "done", boolPtr(false), 1)
	writeRun(t, dir, "20240103T000000Z_c_cccccccccc", "c", "no_calculation", boolPtr(false), 0)
	writeRun(t, dir, "20240104T000000Z_d_dddddddddd", "d", "initialized", nil, 0)

	stats, err := New(dir).StatsRuns()
	if err != nil {
		t.Fatalf("StatsRuns failed: %v", err)
	}
	want := RunStats{Total: 4, Passed: 1, Failed: 1, NoCalculation: 1, Initialized: 1, RetriesUsed: 2}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestStatsRuns_EmptyDirectory(t *testing.T) {
	stats, err := New(t.TempDir()).StatsRuns()
	if err != nil {
		t.Fatalf("StatsRuns failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
}
