package opt

import "time"

// GenerationStats is one history entry. Best and Avg are nil when they are not finite.
type GenerationStats struct {
	Gen  int      `json:"gen"`
	Best *float64 `json:"best"`
	Avg  *float64 `json:"avg"`
}

// FirstEpoch snapshots generation 1.
type FirstEpoch struct {
	Best       *float64   `json:"best"`
	Avg        *float64   `json:"avg"`
	Population Population `json:"population"`
}

// Final is the terminal result of a run.
type Final struct {
	BestSolution  Individual `json:"best_solution"`
	TotalDistance float64    `json:"total_distance"`
	BestFitness   *float64   `json:"best_fitness"`
	Feasible      bool       `json:"feasible"`
	Seed          int64      `json:"seed"`
}

// Metrics summarizes the search itself, independent of verbosity.
type Metrics struct {
	Generations        int           `json:"generations"`
	Evaluations        int           `json:"evaluations"`
	Improvements       int           `json:"improvements"`
	Reinjections       int           `json:"reinjections"`
	Injected           int           `json:"injected"`
	FinalFeasibleRatio float64       `json:"final_feasible_ratio"`
	FinalMean          *float64      `json:"final_mean"`
	FinalStdDev        *float64      `json:"final_stddev"`
	Duration           time.Duration `json:"duration_ns"`
}

// Report is the fully computed outcome of a run.
type Report struct {
	History    []GenerationStats
	FirstEpoch FirstEpoch
	Final      Final
	Metrics    Metrics
}

// RunResult is a Report filtered by verbosity.
type RunResult struct {
	History    []GenerationStats `json:"history,omitempty"`
	FirstEpoch *FirstEpoch       `json:"first_epoch,omitempty"`
	Final      Final             `json:"final"`
}

// Shape filters the report; it never alters the computed values.
func (r Report) Shape(v Verbosity) RunResult {
	out := RunResult{Final: r.Final}
	switch v {
	case VerbosityAll:
		out.History = r.History
		fe := r.FirstEpoch
		out.FirstEpoch = &fe
	case VerbosityFirst:
		fe := r.FirstEpoch
		out.FirstEpoch = &fe
	}
	return out
}

func finiteOrNil(f float64) *float64 {
	if !finite(f) {
		return nil
	}
	return &f
}
