package opt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitnessSumsRouteCosts(t *testing.T) {
	dests := MustDestinationSet(map[int]Point{
		1: {X: 3, Y: 4, Demand: 2},
		2: {X: 3, Y: 0, Demand: 2},
		3: {X: 0, Y: 5, Demand: 5},
	})
	ind := Individual{{1, 2}, {3}, {}}
	assert.Equal(t, 22.0, Fitness(ind, dests, 5))
}

func TestFitnessOverloadedRouteIsInfeasible(t *testing.T) {
	dests := MustDestinationSet(map[int]Point{
		1: {X: 1, Y: 0, Demand: 6},
		2: {X: 500, Y: 500, Demand: 1},
	})
	// the cheap route is overloaded; the expensive one is fine
	f := Fitness(Individual{{1}, {2}}, dests, 5)
	assert.True(t, math.IsInf(f, 1))
	assert.False(t, IsFeasible(f))

	// demand equal to capacity is allowed
	assert.True(t, IsFeasible(Fitness(Individual{{1}, {2}}, dests, 6)))
}

func TestFitnessDoesNotMutate(t *testing.T) {
	dests := defaultSet(t)
	ind := RandomIndividual(dests.IDs(), 4, rand.New(rand.NewSource(3)))
	before := ind.Clone()
	_ = Fitness(ind, dests, 15)
	assert.Equal(t, before, ind)
}

func TestEvaluateWorkersAgree(t *testing.T) {
	dests := defaultSet(t)
	pop := InitPopulation(97, 4, dests, rand.New(rand.NewSource(11)))
	seq := evaluate(pop, dests, 15, 1)
	par := evaluate(pop, dests, 15, 6)
	assert.Equal(t, seq, par)
}
