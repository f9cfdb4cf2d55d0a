package structio

import (
	"bytes"
	"math"

	"github.com/annealab/crucible/hashing"
)

// Canonicalize returns a copy of s with every coordinate rounded to the
// configured number of fractional digits, so that semantically identical
// structures (differing only in float noise below the precision) share one
// canonical encoding and hash.
func Canonicalize(s *Structure, digits int) *Structure {
	out := &Structure{
		Symbols:   append([]string(nil), s.Symbols...),
		Positions: make([][3]float64, len(s.Positions)),
		PBC:       s.PBC,
	}
	for i, p := range s.Positions {
		for j := 0; j < 3; j++ {
			out.Positions[i][j] = roundTo(p[j], digits)
		}
	}
	if s.Cell != nil {
		var cell [3][3]float64
		for i, row := range s.Cell {
			for j, v := range row {
				cell[i][j] = roundTo(v, digits)
			}
		}
		out.Cell = &cell
	}
	return out
}

// CanonicalBytes renders the canonical XYZ encoding of s at the given
// precision. Byte-identical for structurally identical inputs.
func CanonicalBytes(s *Structure, digits int) ([]byte, error) {
	canonical := Canonicalize(s, digits)
	var buf bytes.Buffer
	if err := WriteXYZ(&buf, canonical, "canonical", digits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the canonical structure content hash, truncated to 16 hex
// characters.
func Hash(s *Structure, digits int) (string, error) {
	raw, err := CanonicalBytes(s, digits)
	if err != nil {
		return "", err
	}
	return hashing.SHA256Bytes(raw)[:16], nil
}

func roundTo(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	scale := math.Pow10(digits)
	r := math.Round(v*scale) / scale
	if r == 0 {
		// Normalize negative zero so -0.0 and 0.0 hash identically.
		return 0
	}
	return r
}
