package store

import (
    "context"
    "encoding/json"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "cvrpga/internal/model"
    "cvrpga/internal/opt"
)

// Memory is a simple in-memory store used when neither DATABASE_URL nor
// SQLITE_PATH is set.
type Memory struct {
    mu      sync.Mutex
    runs    map[string]model.RunRecord // id -> run
    byTen   map[string][]string        // tenant -> run ids, (created, id) order
    metrics map[string]opt.Metrics     // run id -> metrics
    optCfg  map[string]json.RawMessage // tenant -> config overlay

    callbacks map[string]*Callback
    cbOrder   []string // enqueue order
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]model.RunRecord{},
        byTen: map[string][]string{},
        metrics: map[string]opt.Metrics{},
        optCfg: map[string]json.RawMessage{},
        callbacks: map[string]*Callback{},
    }
}

func (m *Memory) CreateRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if rec.ID == "" { rec.ID = uuid.New().String() }
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now() }
    rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
    m.runs[rec.ID] = rec
    ids := append(m.byTen[rec.TenantID], rec.ID)
    sort.SliceStable(ids, func(i, j int) bool { return m.before(ids[i], ids[j]) })
    m.byTen[rec.TenantID] = ids
    return rec, nil
}

func (m *Memory) before(a, b string) bool {
    ra, rb := m.runs[a], m.runs[b]
    if !ra.CreatedAt.Equal(rb.CreatedAt) { return ra.CreatedAt.Before(rb.CreatedAt) }
    return a < b
}

func (m *Memory) UpdateRun(ctx context.Context, rec model.RunRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.runs[rec.ID]
    if !ok || cur.TenantID != rec.TenantID { return ErrNotFound }
    rec.CreatedAt = cur.CreatedAt
    m.runs[rec.ID] = rec
    return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.RunRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok || r.TenantID != tenantID { return model.RunRecord{}, ErrNotFound }
    return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.RunSummary, string, error) {
    limit = clampLimit(limit)
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.byTen[tenantID]
    start := 0
    if cursor != "" {
        ms, cid, err := decodeCursor(cursor)
        if err != nil { return nil, "", err }
        start = sort.Search(len(ids), func(i int) bool {
            r := m.runs[ids[i]]
            rms := r.CreatedAt.UnixMilli()
            return rms > ms || (rms == ms && r.ID > cid)
        })
    }
    out := []model.RunSummary{}
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.runs[ids[i]].Summary())
    }
    var next string
    if len(out) == limit && start+limit < len(ids) {
        last := out[len(out)-1]
        next = encodeCursor(last.CreatedAt.UnixMilli(), last.ID)
    }
    return out, next, nil
}

func (m *Memory) DeleteRun(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    delete(m.runs, id)
    delete(m.metrics, id)
    ids := m.byTen[tenantID]
    for i, x := range ids {
        if x == id { m.byTen[tenantID] = append(ids[:i:i], ids[i+1:]...); break }
    }
    return nil
}

func (m *Memory) SaveRunMetrics(ctx context.Context, tenantID, runID string, mx opt.Metrics) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    m.metrics[runID] = mx
    return nil
}

func (m *Memory) GetRunMetrics(ctx context.Context, tenantID, runID string) (opt.Metrics, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return opt.Metrics{}, ErrNotFound }
    mx, ok := m.metrics[runID]
    if !ok { return opt.Metrics{}, ErrNotFound }
    return mx, nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (json.RawMessage, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.optCfg[tenantID]; ok { return append(json.RawMessage(nil), cfg...), nil }
    return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg json.RawMessage) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.optCfg[tenantID] = append(json.RawMessage(nil), cfg...)
    return nil
}

// Callbacks
func (m *Memory) EnqueueCallback(ctx context.Context, cb Callback) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cb.ID == "" { cb.ID = uuid.New().String() }
    now := time.Now().UTC().Truncate(time.Millisecond)
    cb.CreatedAt = now
    cb.NextAttemptAt = now
    cb.Status = CallbackPending
    cb.Attempts = 0
    cb.Payload = append(json.RawMessage(nil), cb.Payload...)
    m.callbacks[cb.ID] = &cb
    m.cbOrder = append(m.cbOrder, cb.ID)
    return cb.ID, nil
}

func (m *Memory) ClaimDueCallbacks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Callback, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []Callback{}
    for _, id := range m.cbOrder {
        cb := m.callbacks[id]
        if !due(cb.Status) || cb.NextAttemptAt.After(now) { continue }
        cb.NextAttemptAt = now.Add(lease)
        out = append(out, *cb)
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

func (m *Memory) MarkCallback(ctx context.Context, id string, success bool, nextAttemptAt time.Time, lastError string, responseCode int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cb, ok := m.callbacks[id]
    if !ok { return ErrNotFound }
    cb.Attempts++
    cb.ResponseCode = responseCode
    if success {
        cb.Status = CallbackDelivered
        cb.LastError = ""
        now := time.Now().UTC()
        cb.DeliveredAt = &now
        return nil
    }
    cb.Status = CallbackRetry
    cb.LastError = lastError
    cb.NextAttemptAt = nextAttemptAt
    return nil
}

func (m *Memory) FailCallback(ctx context.Context, id string, lastError string, responseCode int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cb, ok := m.callbacks[id]
    if !ok { return ErrNotFound }
    cb.Attempts++
    cb.Status = CallbackFailed
    cb.LastError = lastError
    cb.ResponseCode = responseCode
    return nil
}

func (m *Memory) ListRunCallbacks(ctx context.Context, tenantID, runID string) ([]Callback, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []Callback{}
    for _, id := range m.cbOrder {
        cb := m.callbacks[id]
        if cb.TenantID == tenantID && cb.RunID == runID { out = append(out, *cb) }
    }
    return out, nil
}
