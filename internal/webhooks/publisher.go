// Package webhooks notifies callers of run outcomes with signed HTTP callbacks.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cvrpga/internal/model"
	"cvrpga/internal/store"
)

// Queue is the part of the store the publisher and worker need.
type Queue interface {
	EnqueueCallback(ctx context.Context, cb store.Callback) (string, error)
	ClaimDueCallbacks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]store.Callback, error)
	MarkCallback(ctx context.Context, id string, success bool, nextAttemptAt time.Time, lastError string, responseCode int) error
	FailCallback(ctx context.Context, id string, lastError string, responseCode int) error
}

// EventType maps a terminal run status to its callback event type.
func EventType(status string) string { return "run." + status }

// EnqueueRunOutcome queues one callback describing rec's terminal state.
func EnqueueRunOutcome(ctx context.Context, q Queue, rec model.RunRecord, url string) (string, error) {
	evt := EventType(rec.Status)
	body, err := json.Marshal(map[string]any{
		"type":     evt,
		"runId":    rec.ID,
		"tenantId": rec.TenantID,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"data":     rec.Summary(),
		"error":    rec.Error,
	})
	if err != nil {
		return "", fmt.Errorf("encode callback: %w", err)
	}
	return q.EnqueueCallback(ctx, store.Callback{
		TenantID:  rec.TenantID,
		RunID:     rec.ID,
		EventType: evt,
		URL:       url,
		Payload:   body,
	})
}
