package model

import (
    "encoding/json"
    "time"
)

// Run lifecycle states.
const (
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
    RunCanceled  = "canceled"
)

// ExecuteRequest is the body of POST /v1/execute/{algorithm}.
// Params is decoded strictly against opt.Config on top of the tenant defaults.
type ExecuteRequest struct {
    Params    json.RawMessage `json:"params,omitempty"`
    Verbosity string          `json:"verbosity,omitempty"`
    Async     bool            `json:"async,omitempty"`
    // CallbackURL receives a signed POST when the run reaches a terminal state.
    CallbackURL string `json:"callback_url,omitempty"`
}

// RunRecord is a persisted optimizer run. Result holds only the shaped
// output the caller asked for.
type RunRecord struct {
    ID            string          `json:"id"`
    TenantID      string          `json:"tenantId"`
    Algorithm     string          `json:"algorithm"`
    Status        string          `json:"status"`
    CreatedAt     time.Time       `json:"createdAt"`
    FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
    Seed          int64           `json:"seed"`
    Verbosity     string          `json:"verbosity"`
    Config        json.RawMessage `json:"config,omitempty"`
    Result        json.RawMessage `json:"result,omitempty"`
    TotalDistance *float64        `json:"totalDistance,omitempty"`
    Feasible      bool            `json:"feasible"`
    DurationMs    int64           `json:"durationMs"`
    Error         string          `json:"error,omitempty"`
}

// Summary drops the heavy columns for list responses.
func (r RunRecord) Summary() RunSummary {
    return RunSummary{
        ID:            r.ID,
        Algorithm:     r.Algorithm,
        Status:        r.Status,
        CreatedAt:     r.CreatedAt,
        TotalDistance: r.TotalDistance,
        Feasible:      r.Feasible,
        DurationMs:    r.DurationMs,
    }
}

type RunSummary struct {
    ID            string    `json:"id"`
    Algorithm     string    `json:"algorithm"`
    Status        string    `json:"status"`
    CreatedAt     time.Time `json:"createdAt"`
    TotalDistance *float64  `json:"totalDistance,omitempty"`
    Feasible      bool      `json:"feasible"`
    DurationMs    int64     `json:"durationMs"`
}

// ProgressEvent is published on the run's progress topic after each
// generation, and once more when the run ends.
type ProgressEvent struct {
    Type          string   `json:"type"` // generation, completed, failed
    RunID         string   `json:"runId"`
    Generation    int      `json:"generation,omitempty"`
    Generations   int      `json:"generations,omitempty"`
    Best          *float64 `json:"best,omitempty"`
    Avg           *float64 `json:"avg,omitempty"`
    BestSoFar     *float64 `json:"bestSoFar,omitempty"`
    FeasibleCount int      `json:"feasibleCount,omitempty"`
    Error         string   `json:"error,omitempty"`
}
