package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.ObserveScan("oneshot", 2*time.Second, 3, true)
	m.ObserveScan("oneshot", time.Second, 0, false)
	m.ProviderError("kalshi")
	m.MonitorTick("skipped")
	m.SetActive(4)
	m.RegistryRefreshed(12, true)
	m.AlertSent("telegram")
	m.AlertSuppressed("arbitrage")
	m.AlertFailed("kafka")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Scans.WithLabelValues("oneshot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Scans.WithLabelValues("oneshot", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Opportunities))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("kalshi")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ActiveOpportunities))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RegistrySize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSuppressed.WithLabelValues("arbitrage")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan("oneshot", time.Second, 1, true)
		m.ProviderError("kalshi")
		m.SetActive(1)
		m.AlertSent("log")
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AlertSent("log")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crossarb_alerts_sent_total{channel="log"} 1`)
}
