package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"

    "cvrpga/internal/api"
    "cvrpga/internal/metrics"
    "cvrpga/internal/webhooks"
)

func main() {
    // .env is optional; real environment wins
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        log.Printf("ignoring .env: %v", err)
    }
    metrics.RegisterDefault()

    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    srv := &http.Server{
        Addr:              addr,
        Handler:           api.LoggingMiddleware(srvDeps.Routes()),
        ReadHeaderTimeout: 5 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    // Deliver run outcome callbacks
    webhooks.NewWorker(srvDeps.Store).Start(ctx)

    go func() {
        log.Printf("API listening on %s", addr)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server error: %v", err)
        }
    }()
    <-ctx.Done()

    log.Printf("shutting down")
    sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    // cancel runs first so sync handlers return and the HTTP drain can finish
    if err := srvDeps.Shutdown(sctx); err != nil {
        log.Printf("run shutdown: %v", err)
    }
    if err := srv.Shutdown(sctx); err != nil {
        log.Printf("http shutdown: %v", err)
    }
}
