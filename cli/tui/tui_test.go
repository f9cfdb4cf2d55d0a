package tui

import (
	"strings"
	"testing"

	"github.com/annealab/crucible/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_run", true},
		{"stats_runs", true},

		{"list_runs", false},
		{"version", false},
		{"run", false},
		{"archive", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	for _, v := range SupportedTUIViews() {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	err := Run("list_runs", nil)
	if err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func TestRenderInspectStatic(t *testing.T) {
	passed := false
	energy := -31.5
	data := &reader.InspectRunResponse{
		RunID:       "20240102T030405Z_h2_abc1234567",
		MaterialID:  "h2",
		Status:      "done",
		Passed:      &passed,
		EnergyEV:    &energy,
		Reasons:     []string{"max_force_exceeded"},
		RetriesUsed: 2,
	}

	out := RenderInspectStatic("inspect_run", data)
	for _, want := range []string{"Run Details", "h2", "false", "max_force_exceeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("static inspect output missing %q", want)
		}
	}
}

func TestRenderInspectStatic_PendingVerdict(t *testing.T) {
	out := RenderInspectStatic("inspect_run", &reader.InspectRunResponse{
		RunID:  "r1",
		Status: "initialized",
	})
	if !strings.Contains(out, "pending") {
		t.Errorf("nil verdict should render as pending, got: %s", out)
	}
}

func TestRenderInspectStatic_WrongDataType(t *testing.T) {
	out := RenderInspectStatic("inspect_run", "not a response")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data type message, got: %s", out)
	}
}

func TestRenderStatsStatic(t *testing.T) {
	data := &reader.RunStats{Total: 4, Passed: 2, Failed: 1, NoCalculation: 1, RetriesUsed: 3}

	out := RenderStatsStatic("stats_runs", data)
	for _, want := range []string{"Run Statistics", "Total", "Passed", "Failed", "Retries Used"} {
		if !strings.Contains(out, want) {
			t.Errorf("static stats output missing %q", want)
		}
	}
}
