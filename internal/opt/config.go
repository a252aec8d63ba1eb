package opt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// ErrInvalidParameter marks configuration errors detected before any generation runs.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParamError names the offending parameter. It unwraps to ErrInvalidParameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

func paramErrorf(field, format string, args ...any) error {
	return &ParamError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Verbosity selects how much of a run is surfaced to the caller.
type Verbosity string

const (
	VerbosityFinal Verbosity = "final"
	VerbosityFirst Verbosity = "first"
	VerbosityAll   Verbosity = "all"
)

// ParseVerbosity maps "" to VerbosityFinal and rejects unknown values.
func ParseVerbosity(s string) (Verbosity, error) {
	switch Verbosity(s) {
	case "":
		return VerbosityFinal, nil
	case VerbosityFinal, VerbosityFirst, VerbosityAll:
		return Verbosity(s), nil
	}
	return "", paramErrorf("verbosity", "must be one of final, first, all (got %q)", s)
}

// Point is a destination's coordinates and demand as supplied by callers.
type Point struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Demand float64 `json:"demand" yaml:"demand"`
}

// Config holds every recognized run option.
type Config struct {
	PopulationSize  int           `json:"population_size" yaml:"population_size"`
	Generations     int           `json:"generations" yaml:"generations"`
	MutationRate    float64       `json:"mutation_rate" yaml:"mutation_rate"`
	TournamentK     int           `json:"tournament_k" yaml:"tournament_k"`
	EliteSize       int           `json:"elite_size" yaml:"elite_size"`
	ReinitInterval  int           `json:"reinit_interval" yaml:"reinit_interval"`
	ReinitRate      float64       `json:"reinit_rate" yaml:"reinit_rate"`
	NumVehicles     int           `json:"num_vehicles" yaml:"num_vehicles"`
	VehicleCapacity float64       `json:"vehicle_capacity" yaml:"vehicle_capacity"`
	Destinations    map[int]Point `json:"destinations" yaml:"destinations"`
	Verbosity       Verbosity     `json:"verbosity" yaml:"verbosity"`
	// Seed 0 draws a time-based seed; the seed actually used is reported in Final.
	Seed    int64 `json:"seed" yaml:"seed"`
	Workers int   `json:"workers" yaml:"workers"`
}

// DefaultDestinations is the fixed 12-point instance used when callers supply none.
func DefaultDestinations() map[int]Point {
	return map[int]Point{
		1:  {X: 10, Y: 10, Demand: 4},
		2:  {X: 20, Y: 15, Demand: 6},
		3:  {X: 15, Y: 25, Demand: 3},
		4:  {X: 30, Y: 10, Demand: 2},
		5:  {X: 25, Y: 30, Demand: 5},
		6:  {X: 40, Y: 20, Demand: 3},
		7:  {X: 12, Y: 18, Demand: 4},
		8:  {X: 18, Y: 22, Demand: 5},
		9:  {X: 35, Y: 25, Demand: 6},
		10: {X: 22, Y: 12, Demand: 2},
		11: {X: 17, Y: 8, Demand: 3},
		12: {X: 28, Y: 18, Demand: 4},
	}
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:  100,
		Generations:     500,
		MutationRate:    0.15,
		TournamentK:     2,
		EliteSize:       2,
		ReinitInterval:  50,
		ReinitRate:      0.1,
		NumVehicles:     4,
		VehicleCapacity: 15,
		Destinations:    DefaultDestinations(),
		Verbosity:       VerbosityFinal,
		Workers:         1,
	}
}

// Validate checks every numeric domain. It is called once per run, before the first generation.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return paramErrorf("population_size", "must be >= 1 (got %d)", c.PopulationSize)
	}
	if c.Generations < 1 {
		return paramErrorf("generations", "must be >= 1 (got %d)", c.Generations)
	}
	if !inUnit(c.MutationRate) {
		return paramErrorf("mutation_rate", "must be in [0,1] (got %v)", c.MutationRate)
	}
	if c.TournamentK < 1 {
		return paramErrorf("tournament_k", "must be >= 1 (got %d)", c.TournamentK)
	}
	if c.TournamentK > c.PopulationSize {
		return paramErrorf("tournament_k", "must not exceed population_size %d (got %d)", c.PopulationSize, c.TournamentK)
	}
	if c.EliteSize < 0 || c.EliteSize > c.PopulationSize {
		return paramErrorf("elite_size", "must be in [0, population_size] (got %d)", c.EliteSize)
	}
	if c.ReinitInterval < 1 {
		return paramErrorf("reinit_interval", "must be >= 1 (got %d)", c.ReinitInterval)
	}
	if !inUnit(c.ReinitRate) {
		return paramErrorf("reinit_rate", "must be in [0,1] (got %v)", c.ReinitRate)
	}
	if c.NumVehicles < 1 {
		return paramErrorf("num_vehicles", "must be >= 1 (got %d)", c.NumVehicles)
	}
	if math.IsNaN(c.VehicleCapacity) || c.VehicleCapacity < 0 {
		return paramErrorf("vehicle_capacity", "must be >= 0 (got %v)", c.VehicleCapacity)
	}
	if c.Workers < 0 {
		return paramErrorf("workers", "must be >= 0 (got %d)", c.Workers)
	}
	if _, err := ParseVerbosity(string(c.Verbosity)); err != nil {
		return err
	}
	if _, err := NewDestinationSet(c.Destinations); err != nil {
		return err
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// LoadConfigYAML overlays the YAML document at path onto base.
// Keys absent from the file keep base's values; a destinations block replaces the whole set.
func LoadConfigYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("load config %q: %w", path, err)
	}
	return DecodeConfigYAML(data, base)
}

// DecodeConfigYAML is LoadConfigYAML over an in-memory document.
func DecodeConfigYAML(data []byte, base Config) (Config, error) {
	cfg := base
	var overlay struct {
		Destinations map[int]Point `yaml:"destinations"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return base, fmt.Errorf("decode config yaml: %w", err)
	}
	// yaml.v3 merges into existing maps; a file that names destinations defines the full set.
	if overlay.Destinations != nil {
		cfg.Destinations = nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("decode config yaml: %w", err)
	}
	return cfg, nil
}

// DecodeConfigJSON overlays a JSON params object onto base, rejecting unknown keys.
func DecodeConfigJSON(data []byte, base Config) (Config, error) {
	cfg := base
	var overlay struct {
		Destinations map[int]Point `json:"destinations"`
	}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return base, paramErrorf("params", "%v", err)
	}
	if overlay.Destinations != nil {
		cfg.Destinations = nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return base, paramErrorf("params", "%v", err)
	}
	return cfg, nil
}
