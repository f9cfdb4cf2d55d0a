// Package runstore owns run identity and the on-disk artifact store for a
// single run: the sortable run identifier, the isolated run directory with
// its fixed layout, and atomic writes of manifest and result artifacts.
package runstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Component length caps for run identifier parts.
const (
	maxMaterialLen = 48
	maxHashLen     = 16
	maxRevisionLen = 16
	maxLabelLen    = 48
)

var unsafeRuns = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FormatUTCCompact renders t as a compact second-precision UTC timestamp,
// e.g. 20200102T030405Z. Lexicographic order matches creation order.
func FormatUTCCompact(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// SanitizeComponent makes value safe for use as a path segment: runs of
// characters outside [A-Za-z0-9_.-] collapse to a single "-", leading and
// trailing separators are trimmed, and the result is capped at maxLen.
// An input that sanitizes to nothing falls back to "x" so a run identifier
// never contains an empty segment.
func SanitizeComponent(value string, maxLen int) string {
	v := strings.TrimSpace(value)
	v = unsafeRuns.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-_.")
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	if v == "" {
		return "x"
	}
	return v
}

// RunIDParts are the inputs to BuildRunID. Revision and Label are optional.
type RunIDParts struct {
	CreatedAt  time.Time
	MaterialID string
	ConfigHash string
	Revision   string
	Label      string
}

// BuildRunID derives the run identifier:
//
//	<timestamp>_<material>_<confighash>[_<revision>][_<label>]
//
// Each component is independently sanitized and length-capped; the label is
// lower-cased. Identifiers sort lexicographically by creation time.
func BuildRunID(p RunIDParts) string {
	parts := []string{
		FormatUTCCompact(p.CreatedAt),
		SanitizeComponent(p.MaterialID, maxMaterialLen),
		SanitizeComponent(p.ConfigHash, maxHashLen),
	}
	if p.Revision != "" {
		parts = append(parts, SanitizeComponent(p.Revision, maxRevisionLen))
	}
	if p.Label != "" {
		parts = append(parts, strings.ToLower(SanitizeComponent(p.Label, maxLabelLen)))
	}
	return strings.Join(parts, "_")
}

// String implements fmt.Stringer for diagnostics.
func (p RunIDParts) String() string {
	return fmt.Sprintf("material=%s hash=%s", p.MaterialID, p.ConfigHash)
}
