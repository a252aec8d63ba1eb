package store

import (
    "encoding/json"
    "time"
)

// Callback delivery states.
const (
    CallbackPending   = "pending"
    CallbackRetry     = "retry"
    CallbackDelivered = "delivered"
    CallbackFailed    = "failed"
)

// Callback is one queued notification of a run outcome to a caller-supplied URL.
type Callback struct {
    ID            string          `json:"id"`
    TenantID      string          `json:"tenantId"`
    RunID         string          `json:"runId"`
    EventType     string          `json:"eventType"`
    URL           string          `json:"url"`
    Payload       json.RawMessage `json:"payload"`
    Status        string          `json:"status"`
    Attempts      int             `json:"attempts"`
    NextAttemptAt time.Time       `json:"nextAttemptAt"`
    LastError     string          `json:"lastError,omitempty"`
    ResponseCode  int             `json:"responseCode,omitempty"`
    DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
    CreatedAt     time.Time       `json:"createdAt"`
}

func due(status string) bool { return status == CallbackPending || status == CallbackRetry }
