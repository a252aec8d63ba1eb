package opt

import "math/rand"

// TournamentSelect samples k distinct individuals without replacement and returns the one
// with the lowest fitness (first sampled wins ties). k outside [1, len(pop)] is an InvalidParameter.
func TournamentSelect(pop Population, fits []float64, k int, rng *rand.Rand) (Individual, error) {
	if len(fits) != len(pop) {
		return nil, paramErrorf("fitnesses", "length %d does not match population size %d", len(fits), len(pop))
	}
	if k < 1 {
		return nil, paramErrorf("tournament_k", "must be >= 1 (got %d)", k)
	}
	if k > len(pop) {
		return nil, paramErrorf("tournament_k", "must not exceed population size %d (got %d)", len(pop), k)
	}
	return pop[tournament(fits, k, rng, nil)], nil
}

// tournament returns the winning index. scratch, when large enough, is reused as the
// index buffer. Callers have already validated k.
func tournament(fits []float64, k int, rng *rand.Rand, scratch []int) int {
	n := len(fits)
	idx := scratch
	if cap(idx) < n {
		idx = make([]int, n)
	}
	idx = idx[:n]
	for i := range idx {
		idx[i] = i
	}
	// partial Fisher-Yates: idx[:k] becomes a uniform k-sample
	best := -1
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		if best < 0 || fits[idx[i]] < fits[best] {
			best = idx[i]
		}
	}
	return best
}
