package opt

import "math/rand"

// Crossover builds a child slot by slot, copying each route from parent1 or parent2 with
// equal probability. The child usually duplicates or drops destinations until Repair runs.
func Crossover(parent1, parent2 Individual, rng *rand.Rand) Individual {
	n := min(len(parent1), len(parent2))
	child := make(Individual, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < 0.5 {
			child[i] = append(Route{}, parent1[i]...)
		} else {
			child[i] = append(Route{}, parent2[i]...)
		}
	}
	return child
}

// Repair restores the one-route-per-destination invariant in place and returns ind.
//
// Every copy of a duplicated id is stripped first. Unassigned ids are then appended, in
// ascending id order, to the lowest-demand route that still fits them; when none fits, the
// lowest-demand route takes the id anyway and fitness reports the overload.
// Ties on demand go to the lowest route index.
func Repair(ind Individual, dests *DestinationSet, capacity float64) Individual {
	count := make(map[int]int, dests.Len())
	for _, r := range ind {
		for _, id := range r {
			count[id]++
		}
	}
	for ri, r := range ind {
		kept := r[:0]
		if kept == nil {
			kept = Route{}
		}
		for _, id := range r {
			if count[id] == 1 && dests.Has(id) {
				kept = append(kept, id)
			}
		}
		ind[ri] = kept
	}
	if len(ind) == 0 {
		return ind
	}

	load := make([]float64, len(ind))
	for ri, r := range ind {
		load[ri] = dests.RouteDemand(r)
	}
	for _, id := range dests.IDs() {
		if count[id] == 1 {
			continue
		}
		d := dests.Demand(id)
		target, lightest := -1, 0
		for ri := range ind {
			if load[ri] < load[lightest] {
				lightest = ri
			}
			if load[ri]+d <= capacity && (target < 0 || load[ri] < load[target]) {
				target = ri
			}
		}
		if target < 0 {
			target = lightest
		}
		ind[target] = append(ind[target], id)
		load[target] += d
	}
	return ind
}

// Mutate runs one trial per route; each trial, with probability rate, swaps a random stop
// between two distinct non-empty routes. It mutates ind in place and returns it.
// Individuals with fewer than two routes are returned unchanged.
func Mutate(ind Individual, rate float64, rng *rand.Rand) Individual {
	v := len(ind)
	if v < 2 {
		return ind
	}
	for t := 0; t < v; t++ {
		if rng.Float64() >= rate {
			continue
		}
		r1 := rng.Intn(v)
		r2 := rng.Intn(v - 1)
		if r2 >= r1 {
			r2++
		}
		if len(ind[r1]) == 0 || len(ind[r2]) == 0 {
			continue
		}
		i1 := rng.Intn(len(ind[r1]))
		i2 := rng.Intn(len(ind[r2]))
		ind[r1][i1], ind[r2][i2] = ind[r2][i2], ind[r1][i1]
	}
	return ind
}
