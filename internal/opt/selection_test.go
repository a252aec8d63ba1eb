package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentFullSampleReturnsGlobalMin(t *testing.T) {
	pop := Population{
		{{1}}, {{2}}, {{3}}, {{4}}, {{5}},
	}
	fits := []float64{9, Infeasible, 2, 7, 3}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		got, err := TournamentSelect(pop, fits, len(pop), rng)
		require.NoError(t, err)
		assert.Equal(t, Individual{{3}}, got)
	}
}

func TestTournamentRejectsOversizedK(t *testing.T) {
	pop := Population{{{1}}, {{2}}}
	_, err := TournamentSelect(pop, []float64{1, 2}, 3, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrInvalidParameter)

	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "tournament_k", pe.Field)

	_, err = TournamentSelect(pop, []float64{1, 2}, 0, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTournamentSamplesWithoutReplacement(t *testing.T) {
	// with k = n-1 the worst individual can never win
	fits := []float64{1, 2, 3, 4}
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 200; i++ {
		w := tournament(fits, 3, rng, nil)
		assert.NotEqual(t, 3, w)
	}
}

func TestTournamentPrefersFeasible(t *testing.T) {
	fits := []float64{Infeasible, 120.5}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, tournament(fits, 2, rng, make([]int, 2)))
	}
}
