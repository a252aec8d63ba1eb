package opt

import (
	"math"

	"github.com/sourcegraph/conc/pool"
)

// Infeasible is the fitness of an individual with an overloaded route.
// It compares strictly greater than every feasible cost.
var Infeasible = math.Inf(1)

// IsFeasible reports whether f is a finite cost.
func IsFeasible(f float64) bool { return !math.IsInf(f, 1) }

// Fitness returns the total travel distance of ind, or Infeasible as soon as one route
// carries more than capacity. It does not modify ind.
func Fitness(ind Individual, dests *DestinationSet, capacity float64) float64 {
	total := 0.0
	for _, r := range ind {
		if dests.RouteDemand(r) > capacity {
			return Infeasible
		}
		total += RouteCost(r, dests)
	}
	return total
}

// minChunk keeps goroutine overhead below the cost of the evaluations it runs.
const minChunk = 8

// evaluate scores the whole population. Fitness is pure, so slots are written
// independently and the result does not depend on the worker count.
func evaluate(pop Population, dests *DestinationSet, capacity float64, workers int) []float64 {
	fits := make([]float64, len(pop))
	if workers <= 1 || len(pop) < 2*minChunk {
		for i, ind := range pop {
			fits[i] = Fitness(ind, dests, capacity)
		}
		return fits
	}
	chunk := (len(pop) + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}
	p := pool.New().WithMaxGoroutines(workers)
	for lo := 0; lo < len(pop); lo += chunk {
		hi := min(lo+chunk, len(pop))
		p.Go(func() {
			for i := lo; i < hi; i++ {
				fits[i] = Fitness(pop[i], dests, capacity)
			}
		})
	}
	p.Wait()
	return fits
}
