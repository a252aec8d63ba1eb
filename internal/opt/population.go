package opt

import (
	"fmt"
	"math/rand"
)

// Route is the visiting order of one vehicle.
type Route []int

// Individual assigns every destination to exactly one vehicle route.
type Individual []Route

// Population is one generation of individuals.
type Population []Individual

// Clone deep-copies the individual.
func (ind Individual) Clone() Individual {
	out := make(Individual, len(ind))
	for i, r := range ind {
		out[i] = append(Route{}, r...)
	}
	return out
}

// Clone deep-copies every individual.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, ind := range p {
		out[i] = ind.Clone()
	}
	return out
}

// RandomIndividual shuffles ids and slices the permutation into vehicles near-equal contiguous segments.
func RandomIndividual(ids []int, vehicles int, rng *rand.Rand) Individual {
	perm := append([]int(nil), ids...)
	rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	n := len(perm)
	ind := make(Individual, vehicles)
	for i := 0; i < vehicles; i++ {
		lo := i * n / vehicles
		hi := (i + 1) * n / vehicles
		ind[i] = append(Route{}, perm[lo:hi]...)
	}
	return ind
}

// InitPopulation builds size random individuals over dests.
func InitPopulation(size, vehicles int, dests *DestinationSet, rng *rand.Rand) Population {
	ids := dests.IDs()
	pop := make(Population, size)
	for i := range pop {
		pop[i] = RandomIndividual(ids, vehicles, rng)
	}
	return pop
}

// CheckCoverage reports the first id that is duplicated, missing or unknown.
func CheckCoverage(ind Individual, dests *DestinationSet) error {
	seen := make(map[int]int, dests.Len())
	for ri, r := range ind {
		for _, id := range r {
			if !dests.Has(id) {
				return fmt.Errorf("route %d: unknown destination %d", ri, id)
			}
			seen[id]++
			if seen[id] > 1 {
				return fmt.Errorf("route %d: destination %d assigned more than once", ri, id)
			}
		}
	}
	for _, id := range dests.IDs() {
		if seen[id] == 0 {
			return fmt.Errorf("destination %d is not assigned", id)
		}
	}
	return nil
}
