package opt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.PopulationSize)
	assert.Equal(t, 500, cfg.Generations)
	assert.Equal(t, 0.15, cfg.MutationRate)
	assert.Equal(t, 2, cfg.TournamentK)
	assert.Equal(t, 2, cfg.EliteSize)
	assert.Equal(t, 50, cfg.ReinitInterval)
	assert.Equal(t, 0.1, cfg.ReinitRate)
	assert.Equal(t, 4, cfg.NumVehicles)
	assert.Equal(t, 15.0, cfg.VehicleCapacity)
	assert.Len(t, cfg.Destinations, 12)
	assert.Equal(t, VerbosityFinal, cfg.Verbosity)
}

func TestParseVerbosity(t *testing.T) {
	v, err := ParseVerbosity("")
	require.NoError(t, err)
	assert.Equal(t, VerbosityFinal, v)
	v, err = ParseVerbosity("all")
	require.NoError(t, err)
	assert.Equal(t, VerbosityAll, v)
	_, err = ParseVerbosity("everything")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ga.yaml")
	doc := `
population_size: 40
mutation_rate: 0.2
destinations:
  7: {x: 1, y: 2, demand: 3}
  8: {x: -4, y: 5, demand: 1.5}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	base := DefaultConfig()
	cfg, err := LoadConfigYAML(path, base)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.PopulationSize)
	assert.Equal(t, 0.2, cfg.MutationRate)
	assert.Equal(t, 500, cfg.Generations, "absent keys keep the base value")
	assert.Equal(t, map[int]Point{7: {X: 1, Y: 2, Demand: 3}, 8: {X: -4, Y: 5, Demand: 1.5}}, cfg.Destinations)
	assert.Len(t, base.Destinations, 12, "base must not be modified")
}

func TestLoadConfigYAMLMissingFile(t *testing.T) {
	_, err := LoadConfigYAML(filepath.Join(t.TempDir(), "nope.yaml"), DefaultConfig())
	assert.Error(t, err)
}

func TestDecodeConfigJSON(t *testing.T) {
	base := DefaultConfig()
	cfg, err := DecodeConfigJSON([]byte(`{"generations": 10, "destinations": {"3": {"x": 1, "y": 1, "demand": 2}}}`), base)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Generations)
	assert.Equal(t, map[int]Point{3: {X: 1, Y: 1, Demand: 2}}, cfg.Destinations)
	assert.Len(t, base.Destinations, 12)

	_, err = DecodeConfigJSON([]byte(`{"population": 10}`), base)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = DecodeConfigJSON([]byte(`{"generations": "ten"}`), base)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
