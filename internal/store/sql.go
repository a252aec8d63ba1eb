package store

import (
    "context"
    "database/sql"
    "embed"
    "encoding/json"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"
    _ "modernc.org/sqlite"

    "cvrpga/internal/model"
    "cvrpga/internal/opt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Dialect selects placeholder syntax; queries are written with $N.
type Dialect int

const (
    DialectPostgres Dialect = iota
    DialectSQLite
)

func (d Dialect) String() string {
    if d == DialectSQLite { return "sqlite" }
    return "postgres"
}

// SQL is the database/sql backed store. JSON documents are kept in TEXT
// columns and timestamps as unix milliseconds so one schema serves both
// Postgres and SQLite.
type SQL struct {
    db      *sql.DB
    dialect Dialect
}

func NewPostgres(dsn string) (*SQL, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        db.Close()
        return nil, err
    }
    s := &SQL{db: db, dialect: DialectPostgres}
    if err := s.Migrate(context.Background()); err != nil {
        db.Close()
        return nil, fmt.Errorf("migrate: %w", err)
    }
    return s, nil
}

// NewSQLite opens (creating if needed) the database file at path.
func NewSQLite(path string) (*SQL, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
        return nil, fmt.Errorf("failed to create database directory: %w", err)
    }
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, fmt.Errorf("failed to open database: %w", err)
    }
    // pragmas are per connection
    db.SetMaxOpenConns(1)
    pragmas := []string{
        "PRAGMA journal_mode = WAL",
        "PRAGMA synchronous = NORMAL",
        "PRAGMA busy_timeout = 5000",
    }
    for _, p := range pragmas {
        if _, err := db.Exec(p); err != nil {
            db.Close()
            return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
        }
    }
    s := &SQL{db: db, dialect: DialectSQLite}
    if err := s.Migrate(context.Background()); err != nil {
        db.Close()
        return nil, fmt.Errorf("migrate: %w", err)
    }
    return s, nil
}

func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (s *SQL) Migrate(ctx context.Context) error {
    entries, err := fs.ReadDir(schemaFS, "schema")
    if err != nil { return err }
    for _, e := range entries {
        b, err := schemaFS.ReadFile("schema/" + e.Name())
        if err != nil { return err }
        for _, stmt := range strings.Split(string(b), ";") {
            stmt = strings.TrimSpace(stmt)
            if stmt == "" { continue }
            if _, err := s.db.ExecContext(ctx, stmt); err != nil {
                return fmt.Errorf("%s: %w", e.Name(), err)
            }
        }
    }
    return nil
}

func (s *SQL) q(query string) string { return rebind(s.dialect, query) }

// rebind rewrites $N placeholders to SQLite's ?N form.
func rebind(d Dialect, query string) string {
    if d != DialectSQLite { return query }
    var b strings.Builder
    b.Grow(len(query))
    for i := 0; i < len(query); i++ {
        c := query[i]
        if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
            b.WriteByte('?')
            continue
        }
        b.WriteByte(c)
    }
    return b.String()
}

func (s *SQL) CreateRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error) {
    if rec.ID == "" { rec.ID = uuid.New().String() }
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now() }
    rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO runs (id, tenant_id, algorithm, status, created_ms, finished_ms, seed, verbosity, config, result, total_distance, feasible, duration_ms, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`),
        rec.ID, rec.TenantID, rec.Algorithm, rec.Status, rec.CreatedAt.UnixMilli(), msOrNil(rec.FinishedAt), rec.Seed, rec.Verbosity,
        textOrNil(rec.Config), textOrNil(rec.Result), floatOrNil(rec.TotalDistance), rec.Feasible, rec.DurationMs, nullIfEmpty(rec.Error))
    if err != nil { return model.RunRecord{}, err }
    return rec, nil
}

func (s *SQL) UpdateRun(ctx context.Context, rec model.RunRecord) error {
    res, err := s.db.ExecContext(ctx, s.q(`UPDATE runs SET status=$1, finished_ms=$2, seed=$3, result=$4, total_distance=$5, feasible=$6, duration_ms=$7, error=$8
        WHERE tenant_id=$9 AND id=$10`),
        rec.Status, msOrNil(rec.FinishedAt), rec.Seed, textOrNil(rec.Result), floatOrNil(rec.TotalDistance), rec.Feasible, rec.DurationMs, nullIfEmpty(rec.Error),
        rec.TenantID, rec.ID)
    if err != nil { return err }
    return mustAffect(res)
}

const runColumns = `id, tenant_id, algorithm, status, created_ms, finished_ms, seed, verbosity, config, result, total_distance, feasible, duration_ms, error`

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(row rowScanner) (model.RunRecord, error) {
    var r model.RunRecord
    var created int64
    var finished sql.NullInt64
    var config, result, errText sql.NullString
    var dist sql.NullFloat64
    if err := row.Scan(&r.ID, &r.TenantID, &r.Algorithm, &r.Status, &created, &finished, &r.Seed, &r.Verbosity, &config, &result, &dist, &r.Feasible, &r.DurationMs, &errText); err != nil {
        return r, err
    }
    r.CreatedAt = time.UnixMilli(created).UTC()
    if finished.Valid { t := time.UnixMilli(finished.Int64).UTC(); r.FinishedAt = &t }
    if config.Valid { r.Config = json.RawMessage(config.String) }
    if result.Valid { r.Result = json.RawMessage(result.String) }
    if dist.Valid { d := dist.Float64; r.TotalDistance = &d }
    r.Error = errText.String
    return r, nil
}

func (s *SQL) GetRun(ctx context.Context, tenantID, id string) (model.RunRecord, error) {
    row := s.db.QueryRowContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 AND id=$2`), tenantID, id)
    r, err := scanRun(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.RunRecord{}, ErrNotFound }
        return model.RunRecord{}, err
    }
    return r, nil
}

func (s *SQL) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.RunSummary, string, error) {
    limit = clampLimit(limit)
    var rows *sql.Rows
    var err error
    if cursor != "" {
        ms, id, cerr := decodeCursor(cursor)
        if cerr != nil { return nil, "", cerr }
        rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 AND (created_ms > $2 OR (created_ms = $2 AND id > $3)) ORDER BY created_ms, id LIMIT $4`), tenantID, ms, id, limit+1)
    } else {
        rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 ORDER BY created_ms, id LIMIT $2`), tenantID, limit+1)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.RunSummary{}
    more := false
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        if len(out) == limit { more = true; break }
        out = append(out, r.Summary())
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    var next string
    if more {
        last := out[len(out)-1]
        next = encodeCursor(last.CreatedAt.UnixMilli(), last.ID)
    }
    return out, next, nil
}

func (s *SQL) DeleteRun(ctx context.Context, tenantID, id string) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    res, err := tx.ExecContext(ctx, s.q(`DELETE FROM runs WHERE tenant_id=$1 AND id=$2`), tenantID, id)
    if err != nil { return err }
    if err := mustAffect(res); err != nil { return err }
    if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM run_metrics WHERE tenant_id=$1 AND run_id=$2`), tenantID, id); err != nil { return err }
    return tx.Commit()
}

func (s *SQL) SaveRunMetrics(ctx context.Context, tenantID, runID string, m opt.Metrics) error {
    b, err := json.Marshal(m)
    if err != nil { return err }
    _, err = s.db.ExecContext(ctx, s.q(`INSERT INTO run_metrics (tenant_id, run_id, metrics) VALUES ($1,$2,$3)
        ON CONFLICT (tenant_id, run_id) DO UPDATE SET metrics=excluded.metrics`), tenantID, runID, string(b))
    return err
}

func (s *SQL) GetRunMetrics(ctx context.Context, tenantID, runID string) (opt.Metrics, error) {
    var js string
    err := s.db.QueryRowContext(ctx, s.q(`SELECT metrics FROM run_metrics WHERE tenant_id=$1 AND run_id=$2`), tenantID, runID).Scan(&js)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return opt.Metrics{}, ErrNotFound }
        return opt.Metrics{}, err
    }
    var m opt.Metrics
    if err := json.Unmarshal([]byte(js), &m); err != nil { return opt.Metrics{}, err }
    return m, nil
}

func (s *SQL) GetOptimizerConfig(ctx context.Context, tenantID string) (json.RawMessage, error) {
    var js string
    err := s.db.QueryRowContext(ctx, s.q(`SELECT config FROM optimizer_config WHERE tenant_id=$1`), tenantID).Scan(&js)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    return json.RawMessage(js), nil
}

func (s *SQL) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg json.RawMessage) error {
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO optimizer_config (tenant_id, config, updated_ms) VALUES ($1,$2,$3)
        ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, updated_ms=excluded.updated_ms`), tenantID, string(cfg), time.Now().UnixMilli())
    return err
}

const callbackColumns = `id, tenant_id, run_id, event_type, url, payload, status, attempts, next_attempt_ms, last_error, response_code, delivered_ms, created_ms`

func scanCallback(row rowScanner) (Callback, error) {
    var cb Callback
    var payload string
    var next, created int64
    var lastErr sql.NullString
    var delivered sql.NullInt64
    if err := row.Scan(&cb.ID, &cb.TenantID, &cb.RunID, &cb.EventType, &cb.URL, &payload, &cb.Status, &cb.Attempts, &next, &lastErr, &cb.ResponseCode, &delivered, &created); err != nil {
        return cb, err
    }
    cb.Payload = json.RawMessage(payload)
    cb.NextAttemptAt = time.UnixMilli(next).UTC()
    cb.CreatedAt = time.UnixMilli(created).UTC()
    cb.LastError = lastErr.String
    if delivered.Valid { t := time.UnixMilli(delivered.Int64).UTC(); cb.DeliveredAt = &t }
    return cb, nil
}

func (s *SQL) EnqueueCallback(ctx context.Context, cb Callback) (string, error) {
    if cb.ID == "" { cb.ID = uuid.New().String() }
    now := time.Now().UnixMilli()
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO run_callbacks (id, tenant_id, run_id, event_type, url, payload, status, attempts, next_attempt_ms, response_code, created_ms)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,$7,0,$7)`), cb.ID, cb.TenantID, cb.RunID, cb.EventType, cb.URL, string(cb.Payload), now)
    if err != nil { return "", err }
    return cb.ID, nil
}

func (s *SQL) ClaimDueCallbacks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Callback, error) {
    if limit <= 0 { limit = 50 }
    // the outer due check is re-evaluated under the row lock, so a row claimed
    // by another worker in between is skipped
    rows, err := s.db.QueryContext(ctx, s.q(`UPDATE run_callbacks SET next_attempt_ms=$1
        WHERE status IN ('pending','retry') AND next_attempt_ms <= $2 AND id IN (
            SELECT id FROM run_callbacks WHERE status IN ('pending','retry') AND next_attempt_ms <= $2
            ORDER BY next_attempt_ms, created_ms LIMIT $3)
        RETURNING `+callbackColumns), now.Add(lease).UnixMilli(), now.UnixMilli(), limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []Callback{}
    for rows.Next() {
        cb, err := scanCallback(rows)
        if err != nil { return nil, err }
        out = append(out, cb)
    }
    return out, rows.Err()
}

func (s *SQL) MarkCallback(ctx context.Context, id string, success bool, nextAttemptAt time.Time, lastError string, responseCode int) error {
    var res sql.Result
    var err error
    if success {
        res, err = s.db.ExecContext(ctx, s.q(`UPDATE run_callbacks SET attempts=attempts+1, status='delivered', last_error=NULL, response_code=$2, delivered_ms=$3 WHERE id=$1`),
            id, responseCode, time.Now().UnixMilli())
    } else {
        res, err = s.db.ExecContext(ctx, s.q(`UPDATE run_callbacks SET attempts=attempts+1, status='retry', last_error=$2, response_code=$3, next_attempt_ms=$4 WHERE id=$1`),
            id, nullIfEmpty(lastError), responseCode, nextAttemptAt.UnixMilli())
    }
    if err != nil { return err }
    return mustAffect(res)
}

func (s *SQL) FailCallback(ctx context.Context, id string, lastError string, responseCode int) error {
    res, err := s.db.ExecContext(ctx, s.q(`UPDATE run_callbacks SET attempts=attempts+1, status='failed', last_error=$2, response_code=$3 WHERE id=$1`),
        id, nullIfEmpty(lastError), responseCode)
    if err != nil { return err }
    return mustAffect(res)
}

func (s *SQL) ListRunCallbacks(ctx context.Context, tenantID, runID string) ([]Callback, error) {
    rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+callbackColumns+` FROM run_callbacks WHERE tenant_id=$1 AND run_id=$2 ORDER BY created_ms, id`), tenantID, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []Callback{}
    for rows.Next() {
        cb, err := scanCallback(rows)
        if err != nil { return nil, err }
        out = append(out, cb)
    }
    return out, rows.Err()
}

func mustAffect(res sql.Result) error {
    n, err := res.RowsAffected()
    if err != nil { return err }
    if n == 0 { return ErrNotFound }
    return nil
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
func textOrNil(b json.RawMessage) any { if len(b) == 0 { return nil }; return string(b) }
func floatOrNil(f *float64) any { if f == nil { return nil }; return *f }
func msOrNil(t *time.Time) any { if t == nil { return nil }; return t.UnixMilli() }
