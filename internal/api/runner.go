package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    "cvrpga/internal/metrics"
    "cvrpga/internal/model"
    "cvrpga/internal/opt"
    "cvrpga/internal/store"
    "cvrpga/internal/webhooks"
)

// resolveConfig layers the tenant's saved config and then the request params
// over the process defaults.
func (s *Server) resolveConfig(ctx context.Context, tenant string, params json.RawMessage) (opt.Config, error) {
    cfg, err := s.tenantConfig(ctx, tenant)
    if err != nil { return opt.Config{}, err }
    if len(params) > 0 && string(params) != "null" {
        cfg, err = opt.DecodeConfigJSON(params, cfg)
        if err != nil { return opt.Config{}, err }
    }
    return cfg, nil
}

func (s *Server) tenantConfig(ctx context.Context, tenant string) (opt.Config, error) {
    raw, err := s.Store.GetOptimizerConfig(ctx, tenant)
    if err != nil { return opt.Config{}, fmt.Errorf("load tenant config: %w", err) }
    if len(raw) == 0 { return s.Defaults, nil }
    cfg, err := opt.DecodeConfigJSON(raw, s.Defaults)
    if err != nil { return opt.Config{}, fmt.Errorf("stored tenant config: %v", err) }
    return cfg, nil
}

// newRun validates cfg, fixes its seed and persists a running record.
func (s *Server) newRun(ctx context.Context, tenant string, cfg opt.Config) (model.RunRecord, opt.Config, error) {
    if err := cfg.Validate(); err != nil { return model.RunRecord{}, cfg, err }
    if cfg.Seed == 0 { cfg.Seed = time.Now().UnixNano() }
    cfg.Verbosity, _ = opt.ParseVerbosity(string(cfg.Verbosity))
    cfgJSON, err := json.Marshal(cfg)
    if err != nil { return model.RunRecord{}, cfg, err }
    rec, err := s.Store.CreateRun(ctx, model.RunRecord{
        TenantID:  tenant,
        Algorithm: "genetic",
        Status:    model.RunRunning,
        Seed:      cfg.Seed,
        Verbosity: string(cfg.Verbosity),
        Config:    cfgJSON,
    })
    return rec, cfg, err
}

// execute evolves cfg for rec, streams progress and records the outcome.
// A non-empty callback gets the outcome queued for delivery.
func (s *Server) execute(ctx context.Context, rec model.RunRecord, cfg opt.Config, callback string) (model.RunRecord, opt.RunResult, error) {
    metrics.GAActiveRuns.Inc()
    defer metrics.GAActiveRuns.Dec()
    start := time.Now()

    rep, err := opt.Solve(ctx, cfg, func(p opt.Progress) {
        s.Broker.Publish(rec.ID, model.ProgressEvent{
            Type: "generation",
            RunID: rec.ID,
            Generation: p.Generation,
            Generations: p.Generations,
            Best: p.Best,
            Avg: p.Avg,
            BestSoFar: p.BestSoFar,
            FeasibleCount: p.FeasibleCount,
        })
    })
    dur := time.Since(start)
    fin := time.Now()
    rec.FinishedAt = &fin
    rec.DurationMs = dur.Milliseconds()
    metrics.GARunDuration.Observe(dur.Seconds())

    // the request context may be gone; bookkeeping gets its own
    bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
    defer cancel()

    if err != nil {
        rec.Status = model.RunFailed
        if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) { rec.Status = model.RunCanceled }
        rec.Error = err.Error()
        metrics.GARuns.WithLabelValues(rec.Status).Inc()
        if uerr := s.Store.UpdateRun(bg, rec); uerr != nil && !errors.Is(uerr, store.ErrNotFound) {
            log.Printf("run_id=%s tenant=%s update failed: %v", rec.ID, rec.TenantID, uerr)
        }
        s.Broker.Publish(rec.ID, model.ProgressEvent{Type: rec.Status, RunID: rec.ID, Error: rec.Error})
        s.enqueueCallback(bg, rec, callback)
        log.Printf("run_id=%s tenant=%s status=%s dur=%dms err=%v", rec.ID, rec.TenantID, rec.Status, rec.DurationMs, err)
        return rec, opt.RunResult{}, err
    }

    result := rep.Shape(cfg.Verbosity)
    body, err := json.Marshal(result)
    if err != nil { return rec, result, err }
    rec.Status = model.RunCompleted
    rec.Result = body
    rec.Seed = rep.Final.Seed
    dist := rep.Final.TotalDistance
    rec.TotalDistance = &dist
    rec.Feasible = rep.Final.Feasible

    metrics.GARuns.WithLabelValues(model.RunCompleted).Inc()
    metrics.GAGenerations.Add(float64(rep.Metrics.Generations))
    metrics.GAEvaluations.Add(float64(rep.Metrics.Evaluations))
    if rec.Feasible { metrics.GALastBestDistance.Set(dist) }

    if err := s.Store.UpdateRun(bg, rec); err != nil && !errors.Is(err, store.ErrNotFound) {
        log.Printf("run_id=%s tenant=%s update failed: %v", rec.ID, rec.TenantID, err)
    }
    // keep metrics reachable even when the store rejects them
    opt.RecordMetrics(rec.TenantID, rec.ID, rep.Metrics)
    if err := s.Store.SaveRunMetrics(bg, rec.TenantID, rec.ID, rep.Metrics); err != nil && !errors.Is(err, store.ErrNotFound) {
        log.Printf("run_id=%s tenant=%s save metrics failed: %v", rec.ID, rec.TenantID, err)
    }
    s.Broker.Publish(rec.ID, model.ProgressEvent{Type: model.RunCompleted, RunID: rec.ID, Generation: rep.Metrics.Generations, Generations: cfg.Generations, BestSoFar: rep.Final.BestFitness})
    s.enqueueCallback(bg, rec, callback)
    log.Printf("run_id=%s tenant=%s status=completed generations=%d evaluations=%d feasible=%t distance=%.3f dur=%dms",
        rec.ID, rec.TenantID, rep.Metrics.Generations, rep.Metrics.Evaluations, rec.Feasible, dist, rec.DurationMs)
    return rec, result, nil
}

func (s *Server) enqueueCallback(ctx context.Context, rec model.RunRecord, url string) {
    if url == "" { return }
    if _, err := webhooks.EnqueueRunOutcome(ctx, s.Store, rec, url); err != nil {
        log.Printf("run_id=%s tenant=%s enqueue callback failed: %v", rec.ID, rec.TenantID, err)
    }
}

// abortRun records a run that was created but never started.
func (s *Server) abortRun(ctx context.Context, rec model.RunRecord, cause error) {
    fin := time.Now()
    rec.Status = model.RunCanceled
    rec.Error = cause.Error()
    rec.FinishedAt = &fin
    if err := s.Store.UpdateRun(ctx, rec); err != nil && !errors.Is(err, store.ErrNotFound) {
        log.Printf("run_id=%s tenant=%s update failed: %v", rec.ID, rec.TenantID, err)
    }
    metrics.GARuns.WithLabelValues(model.RunCanceled).Inc()
}

// executeSync runs on the request context; DELETE and Shutdown cancel it.
func (s *Server) executeSync(ctx context.Context, rec model.RunRecord, cfg opt.Config, callback string) (model.RunRecord, opt.RunResult, error) {
    runCtx, end, err := s.beginRun(ctx, rec.ID, 0)
    if err != nil {
        s.abortRun(context.WithoutCancel(ctx), rec, err)
        return rec, opt.RunResult{}, err
    }
    defer end()
    return s.execute(runCtx, rec, cfg, callback)
}

// executeAsync runs in the background under RunTimeout; DELETE and Shutdown cancel it.
func (s *Server) executeAsync(rec model.RunRecord, cfg opt.Config, callback string) error {
    ctx, end, err := s.beginRun(context.Background(), rec.ID, s.RunTimeout)
    if err != nil {
        s.abortRun(context.Background(), rec, err)
        return err
    }
    go func() {
        defer end()
        _, _, _ = s.execute(ctx, rec, cfg, callback)
    }()
    return nil
}
