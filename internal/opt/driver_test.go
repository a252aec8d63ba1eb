package opt

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Destinations = map[int]Point{
		1: {X: 1, Y: 0, Demand: 1},
		2: {X: 0, Y: 1, Demand: 1},
		3: {X: 1, Y: 1, Demand: 1},
		4: {X: 2, Y: 1, Demand: 1},
	}
	cfg.NumVehicles = 1
	cfg.VehicleCapacity = 100
	cfg.Generations = 1
	cfg.PopulationSize = 5
	cfg.EliteSize = 1
	cfg.Seed = 1
	return cfg
}

func TestSolveSingleVehicleScenario(t *testing.T) {
	cfg := smallConfig()
	rep, err := Solve(context.Background(), cfg, nil)
	require.NoError(t, err)

	best := rep.Final.BestSolution
	require.Len(t, best, 1)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, []int(best[0]))
	dests := MustDestinationSet(cfg.Destinations)
	require.NoError(t, CheckCoverage(best, dests))

	assert.False(t, math.IsInf(rep.Final.TotalDistance, 0))
	assert.InDelta(t, RouteCost(best[0], dests), rep.Final.TotalDistance, 1e-12)
	assert.True(t, rep.Final.Feasible)
	require.NotNil(t, rep.Final.BestFitness)
	assert.InDelta(t, rep.Final.TotalDistance, *rep.Final.BestFitness, 1e-12)
	assert.Equal(t, int64(1), rep.Final.Seed)
}

func TestSolveZeroCapacityIsAlwaysInfeasible(t *testing.T) {
	cfg := smallConfig()
	cfg.VehicleCapacity = 0
	cfg.Generations = 5
	var seen int
	rep, err := Solve(context.Background(), cfg, func(p Progress) {
		seen++
		assert.Zero(t, p.FeasibleCount)
		assert.Nil(t, p.BestSoFar)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)
	require.Len(t, rep.History, 5)
	for _, h := range rep.History {
		assert.Nil(t, h.Best, "gen %d", h.Gen)
		assert.Nil(t, h.Avg, "gen %d", h.Gen)
	}
	assert.Nil(t, rep.FirstEpoch.Best)
	assert.Nil(t, rep.FirstEpoch.Avg)

	// the first individual scored is reported and its distance is still finite
	assert.False(t, rep.Final.Feasible)
	assert.Nil(t, rep.Final.BestFitness)
	assert.Greater(t, rep.Final.TotalDistance, 0.0)
	assert.Equal(t, rep.FirstEpoch.Population[0], rep.Final.BestSolution)
}

func TestSolveDeterministicUnderSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 60
	cfg.Seed = 20240501
	cfg.Verbosity = VerbosityAll

	a, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	cfg.Workers = 4
	b, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
}

func TestShapeByVerbosity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 25
	cfg.Seed = 99
	rep, err := Solve(context.Background(), cfg, nil)
	require.NoError(t, err)

	final := rep.Shape(VerbosityFinal)
	first := rep.Shape(VerbosityFirst)
	all := rep.Shape(VerbosityAll)

	assert.Nil(t, final.History)
	assert.Nil(t, final.FirstEpoch)
	assert.Nil(t, first.History)
	require.NotNil(t, first.FirstEpoch)
	require.NotNil(t, all.FirstEpoch)

	assert.Equal(t, final.Final, first.Final)
	assert.Equal(t, final.Final, all.Final)
	assert.Len(t, all.History, cfg.Generations)
	assert.Equal(t, *first.FirstEpoch, *all.FirstEpoch)
	assert.Equal(t, all.History[0].Best, first.FirstEpoch.Best)
	assert.Equal(t, all.History[0].Avg, first.FirstEpoch.Avg)
	for i, h := range all.History {
		assert.Equal(t, i+1, h.Gen)
	}
}

func TestBestSoFarNeverWorsens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 120
	cfg.ReinitInterval = 10
	cfg.ReinitRate = 0.3
	cfg.Seed = 7

	prev := math.Inf(1)
	rep, err := Solve(context.Background(), cfg, func(p Progress) {
		cur := math.Inf(1)
		if p.BestSoFar != nil {
			cur = *p.BestSoFar
		}
		assert.LessOrEqual(t, cur, prev, "generation %d", p.Generation)
		prev = cur
	})
	require.NoError(t, err)
	require.NoError(t, CheckCoverage(rep.Final.BestSolution, MustDestinationSet(cfg.Destinations)))
	for _, ind := range rep.FirstEpoch.Population {
		require.NoError(t, CheckCoverage(ind, MustDestinationSet(cfg.Destinations)))
	}
	if rep.Final.BestFitness != nil {
		assert.Equal(t, prev, *rep.Final.BestFitness)
	}
}

func TestSolveReinjectionCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 20
	cfg.Generations = 10
	cfg.ReinitInterval = 5
	cfg.ReinitRate = 0.1
	cfg.Seed = 3
	rep, err := Solve(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Metrics.Reinjections)
	assert.Equal(t, 4, rep.Metrics.Injected)
	assert.Equal(t, 200, rep.Metrics.Evaluations)
	assert.Equal(t, 10, rep.Metrics.Generations)
}

func TestSolveRejectsInvalidParameters(t *testing.T) {
	cases := map[string]func(*Config){
		"tournament larger than population": func(c *Config) { c.PopulationSize = 3; c.TournamentK = 4; c.EliteSize = 1 },
		"negative capacity":                 func(c *Config) { c.VehicleCapacity = -1 },
		"zero vehicles":                     func(c *Config) { c.NumVehicles = 0 },
		"mutation rate above one":           func(c *Config) { c.MutationRate = 1.5 },
		"reinit rate below zero":            func(c *Config) { c.ReinitRate = -0.1 },
		"zero generations":                  func(c *Config) { c.Generations = 0 },
		"elite larger than population":      func(c *Config) { c.EliteSize = 101 },
		"zero reinit interval":              func(c *Config) { c.ReinitInterval = 0 },
		"unknown verbosity":                 func(c *Config) { c.Verbosity = "loud" },
		"no destinations":                   func(c *Config) { c.Destinations = map[int]Point{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			var called bool
			_, err := Solve(context.Background(), cfg, func(Progress) { called = true })
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
			assert.False(t, called, "no generation may run")
		})
	}
}

func TestSolveHonorsCancellationBetweenGenerations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 50
	cfg.Seed = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := Solve(ctx, cfg, func(p Progress) {
		if p.Generation == 3 {
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "generation 4")
}

func TestPureElitismKeepsPopulation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 6
	cfg.EliteSize = 6
	cfg.Generations = 4
	cfg.ReinitRate = 0
	cfg.Seed = 5
	rep, err := Solve(context.Background(), cfg, nil)
	require.NoError(t, err)
	first := rep.History[0]
	for _, h := range rep.History[1:] {
		assert.Equal(t, first.Best, h.Best)
		if first.Avg == nil {
			assert.Nil(t, h.Avg)
			continue
		}
		require.NotNil(t, h.Avg)
		// same individuals, summed in elite order
		assert.InDelta(t, *first.Avg, *h.Avg, 1e-9)
	}
}
