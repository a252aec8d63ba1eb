package api

import (
    "net/http"

    "cvrpga/internal/metrics"
)

// Routes registers every endpoint on a fresh mux behind RequireAuth.
func (s *Server) Routes() http.Handler {
    mux := http.NewServeMux()

    // Optimization
    mux.HandleFunc("/v1/execute/", s.ExecuteHandler)
    mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
    mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)

    // Runs
    mux.HandleFunc("/v1/runs", s.RunsIndexHandler)
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /metrics, /events/stream

    // GraphQL WebSocket subscriptions endpoint
    mux.HandleFunc("/graphql/ws", s.GraphQLWSHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)

    // Ops
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    mux.HandleFunc("/debug/info", s.DebugJSON)
    return s.RequireAuth(mux)
}
