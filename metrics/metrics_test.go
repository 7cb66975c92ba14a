package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/state"
)

var _ state.MutationObserver = (*Metrics)(nil)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveModelCall("gpt-4o-mini", nil)
	m.ObserveModelCall("gpt-4o-mini", errors.New("boom"))
	m.ObserveToolCall("add_item", nil)
	m.ObserveStoreMutation("add", "duplicate")
	m.ObserveRun("shopper", 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("gpt-4o-mini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("gpt-4o-mini", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("add_item", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreMutationsTotal.WithLabelValues("add", "duplicate")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStoreMutation("remove", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `agno_store_mutations_total{op="remove",outcome="ok"} 1`))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveModelCall("x", nil)
		m.ObserveToolCall("x", nil)
		m.ObserveStoreMutation("add", "ok")
		m.ObserveRun("x", time.Second)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_HTTPRequests(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodPost, "/v1/runs/{name}", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/runs/{name}", "200")))

	var none *Metrics
	none.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Nil(t, none.Registry())
}
