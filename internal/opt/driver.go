package opt

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Progress is reported to an Observer after every generation.
type Progress struct {
	Generation    int      `json:"generation"`
	Generations   int      `json:"generations"`
	Best          *float64 `json:"best"`
	Avg           *float64 `json:"avg"`
	BestSoFar     *float64 `json:"best_so_far"`
	FeasibleCount int      `json:"feasible_count"`
}

// Observer receives per-generation progress on the solver goroutine. A slow observer
// slows the run; it cannot change the outcome.
type Observer func(Progress)

// Run validates cfg, executes the whole search and shapes the result by cfg.Verbosity.
func Run(ctx context.Context, cfg Config) (RunResult, error) {
	rep, err := Solve(ctx, cfg, nil)
	if err != nil {
		return RunResult{}, err
	}
	v, _ := ParseVerbosity(string(cfg.Verbosity))
	return rep.Shape(v), nil
}

// Solve runs the generational search for exactly cfg.Generations generations.
// ctx is checked between generations only.
func Solve(ctx context.Context, cfg Config, obs Observer) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	dests, err := NewDestinationSet(cfg.Destinations)
	if err != nil {
		return Report{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	started := time.Now()

	var (
		bestInd Individual
		bestFit = Infeasible
		scratch = make([]int, cfg.PopulationSize)
	)
	rep := Report{History: make([]GenerationStats, 0, cfg.Generations)}
	pop := InitPopulation(cfg.PopulationSize, cfg.NumVehicles, dests, rng)
	var fits []float64

	for gen := 1; gen <= cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("opt: canceled before generation %d: %w", gen, err)
		}
		fits = evaluate(pop, dests, cfg.VehicleCapacity, cfg.Workers)
		rep.Metrics.Evaluations += len(fits)

		minFit, avgFit, feasible := summarize(fits)
		if gen == 1 {
			rep.FirstEpoch = FirstEpoch{
				Best:       finiteOrNil(minFit),
				Avg:        finiteOrNil(avgFit),
				Population: pop.Clone(),
			}
		}

		elites := eliteIndices(fits, cfg.EliteSize)
		for i, f := range fits {
			// the first individual ever scored seeds the best even when infeasible
			if bestInd == nil || f < bestFit {
				if bestInd != nil {
					rep.Metrics.Improvements++
				}
				bestFit = f
				bestInd = pop[i].Clone()
			}
		}

		rep.History = append(rep.History, GenerationStats{Gen: gen, Best: finiteOrNil(minFit), Avg: finiteOrNil(avgFit)})
		if obs != nil {
			obs(Progress{
				Generation:    gen,
				Generations:   cfg.Generations,
				Best:          finiteOrNil(minFit),
				Avg:           finiteOrNil(avgFit),
				BestSoFar:     finiteOrNil(bestFit),
				FeasibleCount: feasible,
			})
		}

		next := make(Population, 0, cfg.PopulationSize)
		for _, i := range elites {
			next = append(next, pop[i])
		}
		for len(next) < cfg.PopulationSize {
			p1 := pop[tournament(fits, cfg.TournamentK, rng, scratch)]
			p2 := pop[tournament(fits, cfg.TournamentK, rng, scratch)]
			child := Crossover(p1, p2, rng)
			child = Repair(child, dests, cfg.VehicleCapacity)
			child = Mutate(child, cfg.MutationRate, rng)
			next = append(next, child)
		}

		if gen%cfg.ReinitInterval == 0 {
			n := int(float64(cfg.PopulationSize) * cfg.ReinitRate)
			if n > 0 {
				fresh := InitPopulation(n, cfg.NumVehicles, dests, rng)
				copy(next[len(next)-n:], fresh)
				rep.Metrics.Reinjections++
				rep.Metrics.Injected += n
			}
		}
		pop = next
	}

	_, _, feasible := summarize(fits)
	rep.Metrics.Generations = cfg.Generations
	rep.Metrics.FinalFeasibleRatio = float64(feasible) / float64(len(fits))
	if finiteFits := feasibleOnly(fits); len(finiteFits) > 0 {
		mean, std := stat.MeanStdDev(finiteFits, nil)
		rep.Metrics.FinalMean = finiteOrNil(mean)
		rep.Metrics.FinalStdDev = finiteOrNil(std)
	}
	rep.Metrics.Duration = time.Since(started)

	rep.Final = Final{
		BestSolution:  bestInd,
		TotalDistance: TotalDistance(bestInd, dests),
		BestFitness:   finiteOrNil(bestFit),
		Feasible:      IsFeasible(bestFit),
		Seed:          seed,
	}
	return rep, nil
}

// summarize returns min, mean and the number of finite fitnesses.
// The mean is +Inf whenever any individual is infeasible.
func summarize(fits []float64) (float64, float64, int) {
	minFit := Infeasible
	sum := 0.0
	feasible := 0
	for _, f := range fits {
		if f < minFit {
			minFit = f
		}
		if IsFeasible(f) {
			feasible++
		}
		sum += f
	}
	return minFit, sum / float64(len(fits)), feasible
}

// eliteIndices returns the n lowest-fitness indices, ties in population order.
func eliteIndices(fits []float64, n int) []int {
	idx := make([]int, len(fits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fits[idx[a]] < fits[idx[b]] })
	return idx[:n]
}

func feasibleOnly(fits []float64) []float64 {
	out := make([]float64, 0, len(fits))
	for _, f := range fits {
		if IsFeasible(f) {
			out = append(out, f)
		}
	}
	return out
}
