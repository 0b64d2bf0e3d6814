package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-test"))
	r.Get("/api/v1/pricing/products/{handle}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, h := range []string{"ring", "necklace"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/pricing/products/"+h, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	counter := httpRequestsTotal.WithLabelValues("metrics-test", http.MethodGet, "/api/v1/pricing/products/{handle}", "200")
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestPrometheusMetrics_StatusCodeCapture(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-status"))
	r.Post("/api/v1/checkout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))

	counter := httpRequestsTotal.WithLabelValues("metrics-status", http.MethodPost, "/api/v1/checkout", "409")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestPrometheusMetrics_DurationObserved(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-duration"))
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	}

	m := histogramFor(t, httpRequestDuration, "metrics-duration")
	require.NotNil(t, m)
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-inflight"))
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight.WithLabelValues("metrics-inflight"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsInFlight.WithLabelValues("metrics-inflight")))
}

func TestMetricsResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.Flush()
	assert.True(t, rec.Flushed)
}

func TestMetricsResponseWriter_HijackUnsupported(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	assert.Error(t, err)
}

// histogramFor returns the series of c labelled with service, or nil.
func histogramFor(t *testing.T, c prometheus.Collector, service string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		for _, lp := range d.GetLabel() {
			if lp.GetName() == "service" && lp.GetValue() == service {
				return d
			}
		}
	}
	return nil
}
