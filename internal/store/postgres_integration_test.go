//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "github.com/google/uuid"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(t.Context()); err != nil { t.Fatalf("Migrate: %v", err) }
    if _, _, err := p.ListRuns(t.Context(), "t_integration", "", 1); err != nil { t.Fatalf("ListRuns: %v", err) }
    exerciseStore(t, p, "t_"+uuid.NewString()[:8]+"_")
}
