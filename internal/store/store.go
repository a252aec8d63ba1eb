package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"

    "cvrpga/internal/model"
    "cvrpga/internal/opt"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Runs
    CreateRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error)
    UpdateRun(ctx context.Context, rec model.RunRecord) error
    GetRun(ctx context.Context, tenantID, id string) (model.RunRecord, error)
    ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.RunSummary, string, error)
    DeleteRun(ctx context.Context, tenantID, id string) error

    // Metrics
    SaveRunMetrics(ctx context.Context, tenantID, runID string, m opt.Metrics) error
    GetRunMetrics(ctx context.Context, tenantID, runID string) (opt.Metrics, error)

    // Optimizer config per tenant; a nil document means none was saved.
    GetOptimizerConfig(ctx context.Context, tenantID string) (json.RawMessage, error)
    SaveOptimizerConfig(ctx context.Context, tenantID string, cfg json.RawMessage) error

    // Run outcome callbacks
    EnqueueCallback(ctx context.Context, cb Callback) (string, error)
    // ClaimDueCallbacks returns callbacks due at now and pushes their next attempt
    // to now+lease so concurrent workers do not deliver the same one twice.
    ClaimDueCallbacks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Callback, error)
    MarkCallback(ctx context.Context, id string, success bool, nextAttemptAt time.Time, lastError string, responseCode int) error
    FailCallback(ctx context.Context, id string, lastError string, responseCode int) error
    ListRunCallbacks(ctx context.Context, tenantID, runID string) ([]Callback, error)
}

var (
    ErrNotFound  = errors.New("not found")
    ErrBadCursor = errors.New("malformed cursor")
)

const (
    defaultLimit = 100
    maxLimit     = 500
)

func clampLimit(limit int) int {
    if limit <= 0 || limit > maxLimit { return defaultLimit }
    return limit
}

// Cursors are "<created unix ms>:<run id>"; runs list in (created, id) order.
func encodeCursor(ms int64, id string) string {
    return strconv.FormatInt(ms, 10) + ":" + id
}

func decodeCursor(c string) (int64, string, error) {
    ms, id, ok := strings.Cut(c, ":")
    if !ok || id == "" { return 0, "", fmt.Errorf("store: %w %q", ErrBadCursor, c) }
    n, err := strconv.ParseInt(ms, 10, 64)
    if err != nil { return 0, "", fmt.Errorf("store: %w %q", ErrBadCursor, c) }
    return n, id, nil
}
