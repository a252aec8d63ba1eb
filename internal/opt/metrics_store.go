package opt

import "sync"

// maxRecorded bounds the in-process metrics fallback; the oldest entries go first.
const maxRecorded = 1024

type key struct {
	Tenant string
	RunID  string
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
	order []key
)

// RecordMetrics keeps m for the API's fallback when the run store has no metrics row.
func RecordMetrics(tenant, runID string, m Metrics) {
	mu.Lock()
	defer mu.Unlock()
	k := key{Tenant: tenant, RunID: runID}
	if _, ok := store[k]; !ok {
		order = append(order, k)
	}
	store[k] = m
	for len(order) > maxRecorded {
		delete(store, order[0])
		order = order[1:]
	}
}

func GetMetrics(tenant, runID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[key{Tenant: tenant, RunID: runID}]
	return m, ok
}
