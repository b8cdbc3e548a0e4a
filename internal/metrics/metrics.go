package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secureclaw_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint"},
	)

	PrivacyScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_privacy_scans_total",
			Help: "Privacy scans by resulting risk level",
		},
		[]string{"risk_level"},
	)

	PIIDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_pii_detections_total",
			Help: "Scans containing each PII category",
		},
		[]string{"category"},
	)

	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_route_decisions_total",
			Help: "Dispatch plans by route and source",
		},
		[]string{"route", "source"},
	)

	BlendedScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secureclaw_router_blended_score",
			Help:    "Blended pre-inference score of router decisions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	GateVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_gate_verdicts_total",
			Help: "Post-inference gate verdicts by reason",
		},
		[]string{"reason", "escalate"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secureclaw_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secureclaw_websocket_connections",
			Help: "Number of connected WebSocket clients",
		},
	)

	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secureclaw_config_reloads_total",
			Help: "Configuration reload attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, endpoint string, status int, d time.Duration) {
	RequestCount.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordScan records a scan's risk level and each distinct category found.
func RecordScan(riskLevel string, categories []string) {
	PrivacyScans.WithLabelValues(riskLevel).Inc()
	for _, c := range categories {
		PIIDetections.WithLabelValues(c).Inc()
	}
}

// RecordRoute records a dispatch plan. blended is only observed when the
// router was consulted.
func RecordRoute(route, source string, blended float64, consulted bool) {
	RouteDecisions.WithLabelValues(route, source).Inc()
	if consulted {
		BlendedScore.Observe(blended)
	}
}

// RecordGate records a gate verdict.
func RecordGate(reason string, escalate bool) {
	GateVerdicts.WithLabelValues(reason, strconv.FormatBool(escalate)).Inc()
}
