package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "territory_run", Name: "captures_total", Help: "Successful territory captures by method"},
		[]string{"method"},
	)
	CaptureRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "territory_run", Name: "capture_rejections_total", Help: "Rejected capture operations by reason"},
		[]string{"reason"},
	)
	PointsAppended = promauto.NewCounter(prometheus.CounterOpts{Namespace: "territory_run", Name: "path_points_appended_total", Help: "GPS samples accepted onto open paths"})
	EnergyDebits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "territory_run", Name: "energy_debits_total", Help: "Successful energy debits"})
	OpenPaths      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "territory_run", Name: "open_paths", Help: "Capture paths currently open"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "territory_run", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "territory_run",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
