package api

import (
    "context"
    "errors"
    "fmt"
    "log"
    "os"
    "runtime"
    "strconv"
    "strings"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "cvrpga/internal/auth"
    "cvrpga/internal/opt"
    "cvrpga/internal/store"
)

type Server struct {
    Store      store.Store
    Broker     EventBroker
    Auth       *auth.Verifier // nil trusts X-Tenant-Id/X-Role headers
    Limiter    *rate.Limiter // nil disables execute rate limiting
    Defaults   opt.Config    // process-wide defaults before tenant overlay
    RunTimeout time.Duration // upper bound for async runs

    mu      sync.Mutex
    active  map[string]context.CancelFunc // runId -> cancel, sync and async runs
    closing bool                          // set by Shutdown; no new runs start
    wg      sync.WaitGroup
}

// errShuttingDown rejects runs that would start after Shutdown.
var errShuttingDown = errors.New("server shutting down")

// NewServer creates a Server from the environment. Storage is Postgres when
// DATABASE_URL is set, SQLite when SQLITE_PATH is set, memory otherwise.
func NewServer() (*Server, error) {
    verifier, err := auth.NewVerifierFromEnv()
    if err != nil { return nil, err }

    var s store.Store
    if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
        sp, err := store.NewPostgres(dsn)
        if err != nil { return nil, fmt.Errorf("postgres: %w", err) }
        s = sp
    } else if path := strings.TrimSpace(os.Getenv("SQLITE_PATH")); path != "" {
        sq, err := store.NewSQLite(path)
        if err != nil { return nil, fmt.Errorf("sqlite: %w", err) }
        s = sq
    } else {
        s = store.NewMemory()
    }

    // Broker selection
    var broker EventBroker
    if url := os.Getenv("REDIS_URL"); url != "" {
        rb, err := NewRedisBroker(url)
        if err != nil {
            log.Printf("redis broker unavailable, using in-memory: %v", err)
            broker = NewBroker()
        } else {
            broker = rb
        }
    } else {
        broker = NewBroker()
    }

    defaults := opt.DefaultConfig()
    if path := os.Getenv("GA_DEFAULTS_FILE"); path != "" {
        cfg, err := opt.LoadConfigYAML(path, defaults)
        if err != nil { return nil, err }
        if err := cfg.Validate(); err != nil { return nil, fmt.Errorf("%s: %w", path, err) }
        defaults = cfg
    }
    defaults.Workers = getEnvInt("GA_WORKERS", runtime.GOMAXPROCS(0))

    srv := &Server{
        Store: s,
        Broker: broker,
        Auth: verifier,
        Defaults: defaults,
        RunTimeout: getEnvDuration("RUN_TIMEOUT", 10*time.Minute),
        active: map[string]context.CancelFunc{},
    }
    if rps := getEnvFloat("RATE_RPS", 0); rps > 0 {
        srv.Limiter = rate.NewLimiter(rate.Limit(rps), getEnvInt("RATE_BURST", int(rps)+1))
    }
    return srv, nil
}

// Shutdown cancels every in-flight run, sync or async, and waits for them to
// record their outcome. Runs requested afterwards are refused.
func (s *Server) Shutdown(ctx context.Context) error {
    s.mu.Lock()
    s.closing = true
    for _, cancel := range s.active { cancel() }
    s.mu.Unlock()
    done := make(chan struct{})
    go func() { s.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// beginRun registers runID so DELETE and Shutdown can cancel it. The returned
// func must be called once the run has recorded its outcome. A zero timeout
// leaves the parent deadline alone.
func (s *Server) beginRun(parent context.Context, runID string, timeout time.Duration) (context.Context, func(), error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.closing { return nil, nil, errShuttingDown }
    var ctx context.Context
    var cancel context.CancelFunc
    if timeout > 0 {
        ctx, cancel = context.WithTimeout(parent, timeout)
    } else {
        ctx, cancel = context.WithCancel(parent)
    }
    s.active[runID] = cancel
    s.wg.Add(1)
    end := func() {
        cancel()
        s.mu.Lock()
        delete(s.active, runID)
        s.mu.Unlock()
        s.wg.Done()
    }
    return ctx, end, nil
}

// cancelRun reports whether runID was running on this instance.
func (s *Server) cancelRun(runID string) bool {
    s.mu.Lock()
    cancel, ok := s.active[runID]
    s.mu.Unlock()
    if ok { cancel() }
    return ok
}

func getEnvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        if n, err := strconv.Atoi(v); err == nil { return n }
        log.Printf("ignoring invalid %s=%q", key, v)
    }
    return def
}

func getEnvFloat(key string, def float64) float64 {
    if v := os.Getenv(key); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil { return f }
        log.Printf("ignoring invalid %s=%q", key, v)
    }
    return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
    if v := os.Getenv(key); v != "" {
        if d, err := time.ParseDuration(v); err == nil && d > 0 { return d }
        log.Printf("ignoring invalid %s=%q", key, v)
    }
    return def
}
