package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"

	"cvrpga/internal/metrics"
	"cvrpga/internal/store"
)

type Worker struct {
	Queue       Queue
	HTTP        *http.Client
	Secret      string // signs every callback when set
	MaxAttempts int
	Interval    time.Duration
	Lease       time.Duration
	Batch       int
	Concurrency int
}

// NewWorker reads CALLBACK_SECRET and CALLBACK_MAX_ATTEMPTS.
func NewWorker(q Queue) *Worker {
	attempts := 8
	if v := os.Getenv("CALLBACK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			attempts = n
		}
	}
	return &Worker{
		Queue:       q,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Secret:      os.Getenv("CALLBACK_SECRET"),
		MaxAttempts: attempts,
		Interval:    time.Second,
		Lease:       time.Minute,
		Batch:       50,
		Concurrency: 4,
	}
}

// Start polls for due callbacks until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.processOnce(ctx)
			}
		}
	}()
}

// processOnce delivers one batch and returns how many callbacks it attempted.
func (w *Worker) processOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	items, err := w.Queue.ClaimDueCallbacks(ctx, time.Now(), w.Lease, w.Batch)
	if err != nil {
		log.Printf("callbacks: claim failed: %v", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}
	p := pool.New().WithMaxGoroutines(max(1, w.Concurrency))
	for _, it := range items {
		p.Go(func() { w.deliver(ctx, it) })
	}
	p.Wait()
	return len(items)
}

func (w *Worker) deliver(ctx context.Context, it store.Callback) {
	code, err := w.post(ctx, it)
	success := err == nil
	result := "delivered"
	switch {
	case success:
		err = w.Queue.MarkCallback(ctx, it.ID, true, time.Time{}, "", code)
	case it.Attempts+1 >= w.MaxAttempts:
		result = "failed"
		err = w.Queue.FailCallback(ctx, it.ID, err.Error(), code)
	default:
		result = "retry"
		err = w.Queue.MarkCallback(ctx, it.ID, false, time.Now().Add(nextBackoff(it.Attempts)), err.Error(), code)
	}
	metrics.CallbackDeliveries.WithLabelValues(result).Inc()
	if err != nil {
		log.Printf("callbacks: id=%s run_id=%s record %s: %v", it.ID, it.RunID, result, err)
	}
	if result != "delivered" {
		log.Printf("callbacks: id=%s run_id=%s url=%s attempt=%d result=%s code=%d", it.ID, it.RunID, it.URL, it.Attempts+1, result, code)
	}
}

// post returns the response code and a non-nil error unless the receiver answered 2xx.
func (w *Worker) post(ctx context.Context, it store.Callback) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	req.Header.Set("X-Delivery-Id", it.ID)
	if w.Secret != "" {
		ts := time.Now().Unix()
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", Sign(w.Secret, ts, it.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
