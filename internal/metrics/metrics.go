// Package metrics exposes Prometheus instrumentation for ingestion and aggregation.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion
	BeaconsReceivedTotal  *prometheus.CounterVec
	BeaconsProcessedTotal *prometheus.CounterVec
	BeaconQueuePending    prometheus.Gauge

	// Aggregation
	AggregationsTotal      *prometheus.CounterVec
	AggregationDuration    prometheus.Histogram
	StoreQueryDuration     *prometheus.HistogramVec
	StoreQueryFailures     *prometheus.CounterVec
	PaginationCapHitsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all collectors once.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "leadlens_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "route"},
			),
			BeaconsReceivedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_beacons_received_total",
					Help: "Beacons accepted by the ingestion API",
				},
				[]string{"kind"},
			),
			BeaconsProcessedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_beacons_processed_total",
					Help: "Beacons turned into records, by outcome",
				},
				[]string{"kind", "outcome"},
			),
			BeaconQueuePending: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "leadlens_beacon_queue_pending",
					Help: "Beacons waiting for the processor",
				},
			),
			AggregationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_aggregations_total",
					Help: "Dashboard summaries computed, by outcome",
				},
				[]string{"outcome"},
			),
			AggregationDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "leadlens_aggregation_duration_seconds",
					Help:    "Time to compute one dashboard summary",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
				},
			),
			StoreQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "leadlens_store_query_duration_seconds",
					Help:    "Analytics store sub-query latency",
					Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"query"},
			),
			StoreQueryFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_store_query_failures_total",
					Help: "Analytics store sub-queries that failed and degraded to empty",
				},
				[]string{"query"},
			),
			PaginationCapHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leadlens_pagination_cap_hits_total",
					Help: "Paginated fetches stopped by the max page cap",
				},
				[]string{"query"},
			),
		}
	})
	return instance
}

// Get returns the metrics singleton, initializing it on first use.
func Get() *Metrics {
	return Initialize()
}

// RecordStoreQuery observes one store sub-query.
func RecordStoreQuery(query string, duration time.Duration, err error) {
	m := Get()
	m.StoreQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
	if err != nil {
		m.StoreQueryFailures.WithLabelValues(query).Inc()
	}
}

// RecordAggregation observes one Aggregate call.
func RecordAggregation(duration time.Duration, err error) {
	m := Get()
	outcome := "ok"
	if err != nil {
		outcome = "unavailable"
	}
	m.AggregationsTotal.WithLabelValues(outcome).Inc()
	m.AggregationDuration.Observe(duration.Seconds())
}

// RecordPaginationCap counts a paginated fetch cut short by the page cap.
func RecordPaginationCap(query string) {
	Get().PaginationCapHitsTotal.WithLabelValues(query).Inc()
}

// RecordBeaconReceived counts an accepted beacon.
func RecordBeaconReceived(kind string) {
	Get().BeaconsReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordBeaconProcessed counts a beacon leaving the queue.
func RecordBeaconProcessed(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	Get().BeaconsProcessedTotal.WithLabelValues(kind, outcome).Inc()
}

// SetBeaconQueuePending reports the current queue depth.
func SetBeaconQueuePending(n int64) {
	Get().BeaconQueuePending.Set(float64(n))
}

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	m := Get()
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	Initialize()
	return adaptor.HTTPHandler(promhttp.Handler())
}
