// Package config resolves layered YAML configuration: a base document, an
// optional per-material overlay, and explicit CLI overrides, deep-merged in
// that fixed order, then validated against a strict schema. The result is an
// immutable typed tree plus a provenance map recording which document or
// override last set each value.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SCF holds the self-consistent-field solver parameters. This is the only
// configuration section mutated after resolution: the repair policy adjusts
// it in place during the retry loop.
type SCF struct {
	ConvTol  float64 `yaml:"conv_tol" json:"conv_tol" validate:"gt=0"`
	MaxCycle int     `yaml:"max_cycle" json:"max_cycle" validate:"gte=1"`
}

// PBC holds the periodic-boundary parameters. Enabled nil means auto: use
// periodic mode iff the structure itself is periodic.
type PBC struct {
	Enabled      *bool   `yaml:"enabled" json:"enabled"`
	Basis        string  `yaml:"basis" json:"basis"`
	Pseudo       *string `yaml:"pseudo" json:"pseudo"`
	Mesh         []int   `yaml:"mesh" json:"mesh" validate:"len=3,dive,gte=1"`
	KPts         []int   `yaml:"kpts" json:"kpts" validate:"len=3,dive,gte=1"`
	UseMultigrid bool    `yaml:"use_multigrid" json:"use_multigrid"`
}

// Calculator holds the electronic-structure solver parameters.
type Calculator struct {
	Backend string `yaml:"backend" json:"backend"`
	Method  string `yaml:"method" json:"method"`
	XC      string `yaml:"xc" json:"xc"`
	Basis   string `yaml:"basis" json:"basis"`
	Charge  int    `yaml:"charge" json:"charge"`
	Spin    int    `yaml:"spin" json:"spin" validate:"gte=0"`
	SCF     SCF    `yaml:"scf" json:"scf"`
	PBC     PBC    `yaml:"pbc" json:"pbc"`
}

// Run holds run-level parameters.
type Run struct {
	RunsDir         string  `yaml:"runs_dir" json:"runs_dir" validate:"required"`
	PrecisionDigits int     `yaml:"precision_digits" json:"precision_digits" validate:"gte=0,lte=16"`
	RunName         *string `yaml:"run_name" json:"run_name"`
	Retries         int     `yaml:"retries" json:"retries" validate:"gte=0,lte=2"`
}

// Structure points at the structure input source.
type Structure struct {
	Path *string `yaml:"path" json:"path"`
}

// Relax holds the geometry-optimization parameters.
type Relax struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Optimizer string  `yaml:"optimizer" json:"optimizer" validate:"required"`
	FMax      float64 `yaml:"fmax" json:"fmax" validate:"gt=0"`
	Steps     int     `yaml:"steps" json:"steps" validate:"gte=0"`
}

// Validate holds the pass/fail thresholds.
type Validate struct {
	RequireSCFConverged bool    `yaml:"require_scf_converged" json:"require_scf_converged"`
	MaxForce            float64 `yaml:"max_force" json:"max_force" validate:"gt=0"`
}

// Output holds artifact output flags.
type Output struct {
	WriteTrajectory bool `yaml:"write_trajectory" json:"write_trajectory"`
}

// Root is the fully-resolved configuration tree. Unknown keys anywhere in
// the tree are rejected at decode time.
type Root struct {
	Run        Run        `yaml:"run" json:"run"`
	Structure  Structure  `yaml:"structure" json:"structure"`
	Calculator Calculator `yaml:"calculator" json:"calculator"`
	Relax      Relax      `yaml:"relax" json:"relax"`
	Validate   Validate   `yaml:"validate" json:"validate"`
	Output     Output     `yaml:"output" json:"output"`
}

// Default returns the configuration tree with every field at its default.
func Default() Root {
	pseudo := "gth-pbe"
	return Root{
		Run: Run{
			RunsDir:         "runs",
			PrecisionDigits: 8,
			Retries:         1,
		},
		Calculator: Calculator{
			Backend: "pyscf",
			Method:  "dft",
			XC:      "PBE",
			Basis:   "def2-svp",
			SCF:     SCF{ConvTol: 1e-8, MaxCycle: 50},
			PBC: PBC{
				Basis:        "gth-szv-molopt-sr",
				Pseudo:       &pseudo,
				Mesh:         []int{25, 25, 25},
				KPts:         []int{1, 1, 1},
				UseMultigrid: true,
			},
		},
		Relax: Relax{
			Enabled:   true,
			Optimizer: "BFGS",
			FMax:      0.05,
			Steps:     200,
		},
		Validate: Validate{
			RequireSCFConverged: true,
			MaxForce:            0.05,
		},
		Output: Output{
			WriteTrajectory: true,
		},
	}
}

// LoadDocument reads a YAML file as a generic mapping, expanding ${VAR}
// and ${VAR:-default} environment references first. An empty file yields
// an empty mapping; a non-mapping top level is a load error.
func LoadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Msg: fmt.Sprintf("failed to read config at %s", path), Err: err}
	}

	var doc any
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &doc); err != nil {
		return nil, &LoadError{Path: path, Msg: fmt.Sprintf("failed to parse YAML config at %s", path), Err: err}
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &LoadError{Path: path, Msg: fmt.Sprintf("config at %s must be a YAML mapping at the top level", path)}
	}
	return m, nil
}

// decodeStrict decodes a merged generic document into a typed tree seeded
// with defaults, rejecting unknown keys.
func decodeStrict(doc map[string]any) (Root, error) {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return Root{}, &ValidationError{Msg: "cannot re-encode merged config", Err: err}
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Root{}, &ValidationError{Msg: err.Error(), Err: err}
	}
	return cfg, nil
}

var schema = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field paths by yaml key, not Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkConstraints enforces the declared numeric and enumeration constraints
// on a decoded tree, reporting the first violation with its field path.
func checkConstraints(cfg *Root) error {
	err := schema.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Root.")
		constraint := fe.Tag()
		if fe.Param() != "" {
			constraint = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return &ValidationError{
			Field: field,
			Msg:   fmt.Sprintf("value %v violates constraint %s", fe.Value(), constraint),
			Err:   err,
		}
	}
	return &ValidationError{Msg: err.Error(), Err: err}
}
