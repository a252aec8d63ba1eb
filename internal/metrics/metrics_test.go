package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesGACollectors(t *testing.T) {
	RegisterDefault()
	RegisterDefault() // idempotent

	before := testutil.ToFloat64(GARuns.WithLabelValues("completed"))
	GARuns.WithLabelValues("completed").Inc()
	GAGenerations.Add(10)
	assert.Equal(t, before+1, testutil.ToFloat64(GARuns.WithLabelValues("completed")))

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)
	for _, name := range []string{"ga_runs_total", "ga_generations_total", "go_goroutines"} {
		assert.True(t, strings.Contains(text, name), "missing %s", name)
	}
}
