// Package structio reads and writes atomic structures in XYZ form and
// produces the canonical structure encoding used for content hashing.
package structio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/annealab/crucible/iox"
)

// Structure is an atomic configuration: per-atom symbols and Cartesian
// positions in Angstrom, with an optional periodic cell.
type Structure struct {
	Symbols   []string     `json:"symbols"`
	Positions [][3]float64 `json:"positions_A"`
	// Cell holds the three lattice vectors when the structure is periodic.
	Cell *[3][3]float64 `json:"cell_A,omitempty"`
	PBC  [3]bool        `json:"pbc"`
}

// NumAtoms returns the number of atoms.
func (s *Structure) NumAtoms() int { return len(s.Symbols) }

// IsPeriodic reports whether the structure is periodic in all three
// directions with a non-zero cell.
func (s *Structure) IsPeriodic() bool {
	if s.Cell == nil || !s.PBC[0] || !s.PBC[1] || !s.PBC[2] {
		return false
	}
	for _, row := range s.Cell {
		for _, v := range row {
			if v != 0 {
				return true
			}
		}
	}
	return false
}

var latticeRe = regexp.MustCompile(`Lattice="([^"]+)"`)
var pbcRe = regexp.MustCompile(`pbc="([^"]+)"`)

// ParseXYZ reads a structure in XYZ format. The comment line may carry an
// extended-XYZ Lattice="ax ay az bx by bz cx cy cz" entry and an optional
// pbc="T T T" entry; a Lattice without pbc flags implies full periodicity.
func ParseXYZ(r io.Reader) (*Structure, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("xyz: empty input")
	}
	count, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || count < 1 {
		return nil, fmt.Errorf("xyz: invalid atom count %q", strings.TrimSpace(scanner.Text()))
	}

	if !scanner.Scan() {
		return nil, fmt.Errorf("xyz: missing comment line")
	}
	comment := scanner.Text()

	s := &Structure{
		Symbols:   make([]string, 0, count),
		Positions: make([][3]float64, 0, count),
	}

	if m := latticeRe.FindStringSubmatch(comment); m != nil {
		fields := strings.Fields(m[1])
		if len(fields) != 9 {
			return nil, fmt.Errorf("xyz: lattice must have 9 components, got %d", len(fields))
		}
		var cell [3][3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("xyz: invalid lattice component %q: %w", f, err)
			}
			cell[i/3][i%3] = v
		}
		s.Cell = &cell
		s.PBC = [3]bool{true, true, true}
	}
	if m := pbcRe.FindStringSubmatch(comment); m != nil {
		flags := strings.Fields(m[1])
		if len(flags) != 3 {
			return nil, fmt.Errorf("xyz: pbc must have 3 flags, got %d", len(flags))
		}
		for i, f := range flags {
			s.PBC[i] = f == "T" || strings.EqualFold(f, "true")
		}
	}

	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("xyz: expected %d atoms, got %d", count, i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return nil, fmt.Errorf("xyz: atom line %d has %d fields, want at least 4", i+1, len(fields))
		}
		var pos [3]float64
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("xyz: invalid coordinate %q on atom line %d: %w", fields[j+1], i+1, err)
			}
			pos[j] = v
		}
		s.Symbols = append(s.Symbols, fields[0])
		s.Positions = append(s.Positions, pos)
	}

	return s, scanner.Err()
}

// ParseXYZFile reads a structure from a file.
func ParseXYZFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open structure %q: %w", path, err)
	}
	defer iox.DiscardClose(f)
	s, err := ParseXYZ(f)
	if err != nil {
		return nil, fmt.Errorf("cannot parse structure %q: %w", path, err)
	}
	return s, nil
}

// WriteXYZ renders a structure in XYZ form with the given comment and the
// given number of fractional digits. Periodic structures carry Lattice and
// pbc entries on the comment line.
func WriteXYZ(w io.Writer, s *Structure, comment string, digits int) error {
	if _, err := fmt.Fprintf(w, "%d\n", s.NumAtoms()); err != nil {
		return err
	}

	line := comment
	if s.Cell != nil {
		var parts []string
		for _, row := range s.Cell {
			for _, v := range row {
				parts = append(parts, formatCoord(v, digits))
			}
		}
		flags := make([]string, 3)
		for i, p := range s.PBC {
			if p {
				flags[i] = "T"
			} else {
				flags[i] = "F"
			}
		}
		if line != "" {
			line += " "
		}
		line += fmt.Sprintf("Lattice=\"%s\" pbc=\"%s\"", strings.Join(parts, " "), strings.Join(flags, " "))
	}
	if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
		return err
	}

	for i, sym := range s.Symbols {
		p := s.Positions[i]
		_, err := fmt.Fprintf(w, "%s %s %s %s\n", sym,
			formatCoord(p[0], digits), formatCoord(p[1], digits), formatCoord(p[2], digits))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64, digits int) string {
	if digits < 0 {
		digits = 8
	}
	return strconv.FormatFloat(v, 'f', digits, 64)
}
