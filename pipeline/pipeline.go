// Package pipeline implements the workflow stages. Each stage is a
// StageFunc over the shared engine.State, reading the fields it depends on
// and writing the fields it owns; only repair_and_retry touches another
// stage's territory, mutating the SCF parameters in place between attempts.
package pipeline

import (
	"github.com/annealab/crucible/engine"
)

// Stages returns the full stage map for engine.New.
func Stages() map[engine.Stage]engine.StageFunc {
	return map[engine.Stage]engine.StageFunc{
		engine.StageLoadConfig:        LoadConfig,
		engine.StageLoadStructure:     LoadStructure,
		engine.StageBuildCalculator:   BuildCalculator,
		engine.StageRunRelaxation:     RunRelaxation,
		engine.StageRepairAndRetry:    RepairAndRetry,
		engine.StageValidateAndReport: ValidateAndReport,
	}
}
