// Package metrics provides Prometheus instrumentation for the sentinel services.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RiskEventsTotal counts scored access events by reason.
	RiskEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "events_total",
			Help:      "Total access events recorded by the risk scorer, by reason.",
		},
		[]string{"reason"},
	)

	// TrapHitsTotal counts trap-classified events.
	TrapHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "trap_hits_total",
		Help:      "Total trap hits across all partners.",
	})

	// DeceptionActivationsTotal counts partners switched into deception mode.
	DeceptionActivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deception",
		Name:      "activations_total",
		Help:      "Total partners armed into deception mode.",
	})

	// RestrictionsTotal counts new partner/user restrictions.
	RestrictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "restriction",
		Name:      "added_total",
		Help:      "Total partner/user pairs newly restricted.",
	})

	// HoneytokenValidationsTotal counts honeytoken presentations by result.
	HoneytokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "honeytoken",
			Name:      "validations_total",
			Help:      "Total honeytoken presentations by result (match, mismatch).",
		},
		[]string{"result"},
	)

	// HoneytokensIssuedTotal counts synthetic honeytoken records handed out.
	HoneytokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "honeytoken",
		Name:      "issued_total",
		Help:      "Total synthetic honeytoken records issued.",
	})

	// AccessRequestsTotal counts access protocol outcomes.
	AccessRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "requests_total",
			Help:      "Total access protocol outcomes (pending, approved, denied, granted, rejected).",
		},
		[]string{"outcome"},
	)

	// UnauthorizedAlertsTotal counts unauthorized_access file alerts.
	UnauthorizedAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "unauthorized_alerts_total",
		Help:      "Total unauthorized_access alerts raised to file owners.",
	})

	// PartnerDataRequestsTotal counts partner data requests by how they were served.
	PartnerDataRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "partner",
			Name:      "data_requests_total",
			Help:      "Total partner data requests (served, deceived).",
		},
		[]string{"outcome"},
	)

	// AuditWritesTotal counts audit mirror writes by result.
	AuditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Total audit mirror writes by result (ok, error, dropped).",
		},
		[]string{"result"},
	)

	// WebhookDeliveriesTotal counts webhook delivery attempts by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// TrackedPartners tracks partners with a risk profile.
	TrackedPartners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "tracked_partners",
		Help:      "Number of partners with a risk profile.",
	})

	// DBOpenConnections tracks open audit database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use audit database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RiskEventsTotal,
		TrapHitsTotal,
		DeceptionActivationsTotal,
		RestrictionsTotal,
		HoneytokenValidationsTotal,
		HoneytokensIssuedTotal,
		AccessRequestsTotal,
		UnauthorizedAlertsTotal,
		PartnerDataRequestsTotal,
		AuditWritesTotal,
		WebhookDeliveriesTotal,
		ActiveWebSocketClients,
		TrackedPartners,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern keeps label cardinality bounded
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
