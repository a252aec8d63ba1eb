package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "cvrpga/internal/model"
    "cvrpga/internal/opt"
    "cvrpga/internal/store"
)

// ExecuteHandler handles POST /v1/execute/{algorithm}
func (s *Server) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
    algo := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/execute/"), "/")
    if err := validateAlgorithm(algo); err != nil {
        writeProblem(w, http.StatusNotFound, "Unknown algorithm", err.Error(), r.URL.Path)
        return
    }
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if s.Limiter != nil && !s.Limiter.Allow() {
        w.Header().Set("Retry-After", "1")
        writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many optimizer runs", r.URL.Path)
        return
    }
    var req model.ExecuteRequest
    if err := decodeJSON(w, r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateExecuteRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid execute request", err.Error(), r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    cfg, err := s.resolveConfig(r.Context(), p.Tenant, req.Params)
    if err != nil {
        writeRunError(w, r, err)
        return
    }
    if req.Verbosity != "" { cfg.Verbosity = opt.Verbosity(strings.ToLower(req.Verbosity)) }

    rec, cfg, err := s.newRun(r.Context(), p.Tenant, cfg)
    if err != nil {
        writeRunError(w, r, err)
        return
    }
    if req.Async {
        if err := s.executeAsync(rec, cfg, req.CallbackURL); err != nil {
            writeRunError(w, r, err)
            return
        }
        w.Header().Set("Location", "/v1/runs/"+rec.ID)
        writeJSON(w, http.StatusAccepted, map[string]any{"run_id": rec.ID, "status": model.RunRunning})
        return
    }
    rec, result, err := s.executeSync(r.Context(), rec, cfg, req.CallbackURL)
    if err != nil {
        writeRunError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, struct {
        RunID string `json:"run_id"`
        opt.RunResult
    }{rec.ID, result})
}

func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
    switch {
    case errors.Is(err, opt.ErrInvalidParameter):
        writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
    case errors.Is(err, errShuttingDown), errors.Is(err, context.Canceled):
        writeProblem(w, http.StatusServiceUnavailable, "Run canceled", err.Error(), r.URL.Path)
    case errors.Is(err, context.DeadlineExceeded):
        writeProblem(w, http.StatusServiceUnavailable, "Run timed out", err.Error(), r.URL.Path)
    default:
        writeProblem(w, http.StatusInternalServerError, "Run failed", err.Error(), r.URL.Path)
    }
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, cursor, limit)
    if err != nil {
        if errors.Is(err, store.ErrBadCursor) { writeProblem(w, 400, "Invalid cursor", err.Error(), r.URL.Path); return }
        writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET/DELETE /v1/runs/{id}, GET /v1/runs/{id}/metrics,
// GET /v1/runs/{id}/callbacks and GET /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/runs/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    p := s.getPrincipal(r)
    if len(parts) == 3 && parts[1] == "events" && parts[2] == "stream" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        s.streamRun(w, r, p.Tenant, id)
        return
    }
    if len(parts) == 2 && parts[1] == "metrics" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        if _, err := s.Store.GetRun(r.Context(), p.Tenant, id); err != nil {
            writeStoreError(w, r, "Run not found", err)
            return
        }
        // Prefer stored metrics; fall back to this instance's memory
        m, err := s.Store.GetRunMetrics(r.Context(), p.Tenant, id)
        if err != nil {
            mm, ok := opt.GetMetrics(p.Tenant, id)
            if !ok {
                writeStoreError(w, r, "Metrics not available", err)
                return
            }
            m = mm
        }
        writeJSON(w, http.StatusOK, m)
        return
    }
    if len(parts) == 2 && parts[1] == "callbacks" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        if _, err := s.Store.GetRun(r.Context(), p.Tenant, id); err != nil {
            writeStoreError(w, r, "Run not found", err)
            return
        }
        items, err := s.Store.ListRunCallbacks(r.Context(), p.Tenant, id)
        if err != nil { writeProblem(w, 500, "List callbacks failed", err.Error(), path); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
        return
    }
    if len(parts) > 1 {
        writeProblem(w, http.StatusNotFound, "Not Found", "", path)
        return
    }

    switch r.Method {
    case http.MethodGet:
        rec, err := s.Store.GetRun(r.Context(), p.Tenant, id)
        if err != nil { writeStoreError(w, r, "Run not found", err); return }
        writeJSON(w, http.StatusOK, rec)
    case http.MethodDelete:
        rec, err := s.Store.GetRun(r.Context(), p.Tenant, id)
        if err != nil { writeStoreError(w, r, "Run not found", err); return }
        if rec.Status == model.RunRunning { s.cancelRun(id) }
        if err := s.Store.DeleteRun(r.Context(), p.Tenant, id); err != nil { writeStoreError(w, r, "Delete run failed", err); return }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func writeStoreError(w http.ResponseWriter, r *http.Request, title string, err error) {
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusNotFound, title, err.Error(), r.URL.Path)
        return
    }
    writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}

// streamRun serves run progress as Server-Sent Events until the run ends or
// the client goes away.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, tenant, id string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    // subscribe before reading status so a run finishing in between is not missed
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    rec, err := s.Store.GetRun(r.Context(), tenant, id)
    if err != nil { writeStoreError(w, r, "Run not found", err); return }

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.WriteHeader(http.StatusOK)
    writeSSE := func(evt model.ProgressEvent) {
        b, _ := json.Marshal(evt)
        fmt.Fprintf(w, "event: %s\n", evt.Type)
        fmt.Fprintf(w, "data: %s\n\n", string(b))
        flusher.Flush()
    }
    if rec.Status != model.RunRunning {
        writeSSE(model.ProgressEvent{Type: rec.Status, RunID: id, Error: rec.Error})
        return
    }
    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    ticker := time.NewTicker(15 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            writeSSE(evt)
            if isTerminal(evt.Type) { return }
        case <-ticker.C:
            heartbeat()
        }
    }
}

// OptimizerConfigHandler returns the optimizer defaults as seen by the caller's tenant
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    cfg, err := s.tenantConfig(r.Context(), p.Tenant)
    if err != nil { writeProblem(w, 500, "Load config failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"defaults": cfg, "algorithms": []string{"genetic"}})
}

// Admin get/set optimizer tenant config
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/optimizer/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
        if err != nil { writeProblem(w, 500, "Load config failed", err.Error(), r.URL.Path); return }
        if cfg == nil { cfg = json.RawMessage(`{}`) }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config json.RawMessage `json:"config"` }
        if err := decodeJSON(w, r, &body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if len(body.Config) == 0 || string(body.Config) == "null" { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        cfg, err := opt.DecodeConfigJSON(body.Config, s.Defaults)
        if err == nil { err = cfg.Validate() }
        if err != nil { writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB and broker connectivity when they are remote
    type pinger interface{ Ping(ctx context.Context) error }
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    for _, dep := range []any{s.Store, s.Broker} {
        if pg, ok := dep.(pinger); ok {
            if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
        }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
