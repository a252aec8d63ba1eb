package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSet(t *testing.T) *DestinationSet {
	t.Helper()
	s, err := NewDestinationSet(DefaultDestinations())
	require.NoError(t, err)
	return s
}

func TestInitPopulationCoverage(t *testing.T) {
	dests := defaultSet(t)
	pop := InitPopulation(50, 5, dests, rand.New(rand.NewSource(7)))
	require.Len(t, pop, 50)
	for _, ind := range pop {
		require.Len(t, ind, 5)
		require.NoError(t, CheckCoverage(ind, dests))
		// 12 ids over 5 vehicles: segment bounds 0,2,4,7,9,12
		sizes := []int{len(ind[0]), len(ind[1]), len(ind[2]), len(ind[3]), len(ind[4])}
		assert.Equal(t, []int{2, 2, 3, 2, 3}, sizes)
	}
}

func TestInitPopulationMoreVehiclesThanDestinations(t *testing.T) {
	dests := MustDestinationSet(map[int]Point{1: {X: 1}, 2: {X: 2}})
	pop := InitPopulation(3, 4, dests, rand.New(rand.NewSource(1)))
	for _, ind := range pop {
		require.Len(t, ind, 4)
		require.NoError(t, CheckCoverage(ind, dests))
		for _, r := range ind {
			assert.NotNil(t, r)
		}
	}
}

func TestInitPopulationSeeded(t *testing.T) {
	dests := defaultSet(t)
	a := InitPopulation(10, 4, dests, rand.New(rand.NewSource(42)))
	b := InitPopulation(10, 4, dests, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestCheckCoverageDetectsViolations(t *testing.T) {
	dests := MustDestinationSet(map[int]Point{1: {}, 2: {}, 3: {}})
	assert.NoError(t, CheckCoverage(Individual{{1, 3}, {2}}, dests))
	assert.Error(t, CheckCoverage(Individual{{1, 2}, {2}}, dests), "duplicate")
	assert.Error(t, CheckCoverage(Individual{{1}, {2}}, dests), "missing")
	assert.Error(t, CheckCoverage(Individual{{1, 2, 3, 4}}, dests), "unknown")
}

func TestCloneIsDeep(t *testing.T) {
	ind := Individual{{1, 2}, {3}}
	c := ind.Clone()
	c[0][0] = 99
	assert.Equal(t, 1, ind[0][0])
}
