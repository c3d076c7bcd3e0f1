package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger's prometheus collectors
type Metrics struct {
	pointsCredited      *prometheus.CounterVec
	pointsVerified      prometheus.Counter
	eventsCompleted     prometheus.Counter
	submissionsReviewed *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		pointsCredited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_points_credited_total",
			Help: "Points credited to volunteer ledgers, by source",
		}, []string{"source"}),
		pointsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_points_verified_total",
			Help: "Points moved from pending to verified",
		}),
		eventsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_events_completed_total",
			Help: "Events marked completed",
		}),
		submissionsReviewed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_submissions_reviewed_total",
			Help: "Work submissions reviewed, by decision",
		}, []string{"decision"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) credited(source string, points int) {
	if points > 0 {
		m.pointsCredited.WithLabelValues(source).Add(float64(points))
	}
}

func (m *Metrics) verified(points int) {
	m.pointsVerified.Add(float64(points))
}

func (m *Metrics) eventCompleted() {
	m.eventsCompleted.Inc()
}

func (m *Metrics) reviewed(decision string) {
	m.submissionsReviewed.WithLabelValues(decision).Inc()
}

// middleware observes request latency by route template, not raw path
func (m *Metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status, _ = errorResponse(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func metricsHandler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
