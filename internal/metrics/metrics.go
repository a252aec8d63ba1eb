package metrics

import (
    "net/http"
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // GARuns counts finished optimizer runs by outcome (completed, failed, canceled)
    GARuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "ga_runs_total", Help: "Genetic optimizer runs by final status."},
        []string{"status"},
    )
    // GARunDuration tracks wall time of a run in seconds
    GARunDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "ga_run_duration_seconds", Help: "Genetic optimizer run duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
    )
    GAGenerations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "ga_generations_total", Help: "Generations evolved across all runs."},
    )
    GAEvaluations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "ga_fitness_evaluations_total", Help: "Fitness evaluations across all runs."},
    )
    // GAActiveRuns is the number of runs currently evolving
    GAActiveRuns = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "ga_active_runs", Help: "Runs currently in progress."},
    )
    // GALastBestDistance is the total distance of the most recent feasible best solution
    GALastBestDistance = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "ga_last_best_distance", Help: "Total distance of the last feasible best solution."},
    )

    // CallbackDeliveries counts run outcome callback attempts by result (delivered, retry, failed)
    CallbackDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "callback_deliveries_total", Help: "Run outcome callback delivery attempts by result."},
        []string{"result"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(GARuns)
        Registry.MustRegister(GARunDuration)
        Registry.MustRegister(GAGenerations)
        Registry.MustRegister(GAEvaluations)
        Registry.MustRegister(GAActiveRuns)
        Registry.MustRegister(GALastBestDistance)
        Registry.MustRegister(CallbackDeliveries)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
    RegisterDefault()
    return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
