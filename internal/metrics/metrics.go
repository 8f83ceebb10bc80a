// Package metrics exposes Prometheus instrumentation for scans, the monitor
// loop and alert delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ScanDuration  *prometheus.HistogramVec
	Scans         *prometheus.CounterVec
	Opportunities prometheus.Counter

	ProviderErrors *prometheus.CounterVec

	MonitorTicks        *prometheus.CounterVec
	ActiveOpportunities prometheus.Gauge
	RegistrySize        prometheus.Gauge
	RegistryRefreshes   *prometheus.CounterVec

	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	AlertFailures    *prometheus.CounterVec
}

// New creates the metric set on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crossarb_scan_duration_seconds",
				Help:    "Duration of arbitrage scans in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"kind"},
		),

		Scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_scans_total",
				Help: "Total number of scans by kind and result",
			},
			[]string{"kind", "result"},
		),

		Opportunities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crossarb_opportunities_total",
				Help: "Total opportunities returned by scans",
			},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_provider_errors_total",
				Help: "Market data fetch failures by platform",
			},
			[]string{"platform"},
		),

		MonitorTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_monitor_ticks_total",
				Help: "Monitor ticks by outcome (ran, skipped, failed)",
			},
			[]string{"outcome"},
		),

		ActiveOpportunities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crossarb_active_opportunities",
				Help: "Opportunities currently tracked as active",
			},
		),

		RegistrySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crossarb_registry_pairs",
				Help: "Matched pairs in the registry",
			},
		),

		RegistryRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_registry_refreshes_total",
				Help: "Registry refreshes by result",
			},
			[]string{"result"},
		),

		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_alerts_sent_total",
				Help: "Alerts delivered by channel",
			},
			[]string{"channel"},
		),

		AlertsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_alerts_suppressed_total",
				Help: "Alerts suppressed by the deduplicator, by source",
			},
			[]string{"source"},
		),

		AlertFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossarb_alert_failures_total",
				Help: "Alert delivery failures by channel",
			},
			[]string{"channel"},
		),
	}

	m.registry.MustRegister(
		m.ScanDuration,
		m.Scans,
		m.Opportunities,
		m.ProviderErrors,
		m.MonitorTicks,
		m.ActiveOpportunities,
		m.RegistrySize,
		m.RegistryRefreshes,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.AlertFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveScan(kind string, d time.Duration, opportunities int, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ScanDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.Scans.WithLabelValues(kind, result).Inc()
	m.Opportunities.Add(float64(opportunities))
}

func (m *Metrics) ProviderError(platform string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(platform).Inc()
}

func (m *Metrics) MonitorTick(outcome string) {
	if m == nil {
		return
	}
	m.MonitorTicks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.ActiveOpportunities.Set(float64(n))
}

func (m *Metrics) RegistryRefreshed(size int, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.RegistrySize.Set(float64(size))
		m.RegistryRefreshes.WithLabelValues("ok").Inc()
		return
	}
	m.RegistryRefreshes.WithLabelValues("failed").Inc()
}

func (m *Metrics) AlertSent(channel string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(channel).Inc()
}

func (m *Metrics) AlertSuppressed(source string) {
	if m == nil {
		return
	}
	m.AlertsSuppressed.WithLabelValues(source).Inc()
}

func (m *Metrics) AlertFailed(channel string) {
	if m == nil {
		return
	}
	m.AlertFailures.WithLabelValues(channel).Inc()
}
