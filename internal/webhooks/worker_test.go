package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"cvrpga/internal/model"
	"cvrpga/internal/store"
)

func newRecord(status string) model.RunRecord {
	d := 12.5
	return model.RunRecord{ID: "run-1", TenantID: "t1", Algorithm: "genetic", Status: status, TotalDistance: &d, Feasible: true, CreatedAt: time.Now()}
}

func newTestWorker(q Queue, c *http.Client, maxAttempts int) *Worker {
	return &Worker{Queue: q, HTTP: c, Secret: "secret", MaxAttempts: maxAttempts, Lease: time.Minute, Batch: 10, Concurrency: 2}
}

func TestWorkerDeliversSignedCallback(t *testing.T) {
	var mu sync.Mutex
	var gotSig, gotTS, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(204)
	}))
	defer srv.Close()

	ctx := context.Background()
	m := store.NewMemory()
	if _, err := EnqueueRunOutcome(ctx, m, newRecord(model.RunCompleted), srv.URL); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w := newTestWorker(m, srv.Client(), 3)
	if n := w.processOnce(ctx); n != 1 {
		t.Fatalf("processed %d, want 1", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotType != "run.completed" {
		t.Fatalf("event type %q", gotType)
	}
	ts, err := strconv.ParseInt(gotTS, 10, 64)
	if err != nil || !Verify("secret", ts, gotBody, gotSig) {
		t.Fatalf("signature did not verify: ts=%q sig=%q", gotTS, gotSig)
	}
	cbs, _ := m.ListRunCallbacks(ctx, "t1", "run-1")
	if len(cbs) != 1 || cbs[0].Status != store.CallbackDelivered || cbs[0].ResponseCode != 204 {
		t.Fatalf("unexpected state %+v", cbs)
	}
	if n := w.processOnce(ctx); n != 0 {
		t.Fatalf("delivered callback attempted again")
	}
}

func TestWorkerRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()

	ctx := context.Background()
	m := store.NewMemory()
	_, _ = EnqueueRunOutcome(ctx, m, newRecord(model.RunFailed), srv.URL)
	w := newTestWorker(m, srv.Client(), 2)

	w.processOnce(ctx)
	cbs, _ := m.ListRunCallbacks(ctx, "t1", "run-1")
	if cbs[0].Status != store.CallbackRetry || cbs[0].Attempts != 1 || cbs[0].ResponseCode != 500 {
		t.Fatalf("after first attempt: %+v", cbs[0])
	}
	if !cbs[0].NextAttemptAt.After(time.Now()) {
		t.Fatalf("retry must be scheduled in the future")
	}

	// the retry is not due yet
	if n := w.processOnce(ctx); n != 0 {
		t.Fatalf("retry attempted before its backoff")
	}
	claimed, _ := m.ClaimDueCallbacks(ctx, time.Now().Add(time.Hour), 0, 10)
	if len(claimed) != 1 {
		t.Fatalf("expected the retry to be due later, got %d", len(claimed))
	}
	w.deliver(ctx, claimed[0])
	cbs, _ = m.ListRunCallbacks(ctx, "t1", "run-1")
	if cbs[0].Status != store.CallbackFailed || cbs[0].Attempts != 2 {
		t.Fatalf("after last attempt: %+v", cbs[0])
	}
}

func TestSignVerify(t *testing.T) {
	body := []byte(`{"runId":"r1"}`)
	sig := Sign("k", 1700000000, body)
	if !Verify("k", 1700000000, body, sig) {
		t.Fatal("valid signature rejected")
	}
	if Verify("k", 1700000001, body, sig) || Verify("other", 1700000000, body, sig) || Verify("k", 1700000000, body, "sha256=zz") {
		t.Fatal("invalid signature accepted")
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("unexpected backoff progression")
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff must cap at 2^10 seconds, got %v", nextBackoff(50))
	}
}
