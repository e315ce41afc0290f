package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlens/internal/metrics"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestInitializeIsSingleton(t *testing.T) {
	assert.Same(t, metrics.Initialize(), metrics.Get())
}

func TestRecorders(t *testing.T) {
	m := metrics.Get()

	before := value(t, m.StoreQueryFailures.WithLabelValues("sessions_test"))
	metrics.RecordStoreQuery("sessions_test", time.Millisecond, nil)
	metrics.RecordStoreQuery("sessions_test", time.Millisecond, errors.New("down"))
	assert.Equal(t, before+1, value(t, m.StoreQueryFailures.WithLabelValues("sessions_test")))

	ok := value(t, m.AggregationsTotal.WithLabelValues("ok"))
	metrics.RecordAggregation(time.Second, nil)
	assert.Equal(t, ok+1, value(t, m.AggregationsTotal.WithLabelValues("ok")))

	failed := value(t, m.BeaconsProcessedTotal.WithLabelValues("lead", "failed"))
	metrics.RecordBeaconProcessed("lead", errors.New("bad payload"))
	assert.Equal(t, failed+1, value(t, m.BeaconsProcessedTotal.WithLabelValues("lead", "failed")))

	metrics.SetBeaconQueuePending(7)
	assert.Equal(t, 7.0, value(t, m.BeaconQueuePending))
}

func TestMiddlewareAndHandler(t *testing.T) {
	app := fiber.New()
	app.Use(metrics.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/gone", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusGone, "gone") })
	app.Get("/metrics", metrics.Handler())

	m := metrics.Get()
	pings := value(t, m.HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200"))
	gones := value(t, m.HTTPRequestsTotal.WithLabelValues("GET", "/gone", "410"))

	for _, path := range []string{"/ping", "/gone"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, pings+1, value(t, m.HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200")))
	assert.Equal(t, gones+1, value(t, m.HTTPRequestsTotal.WithLabelValues("GET", "/gone", "410")))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `leadlens_http_requests_total{method="GET",route="/ping",status="200"}`)
}
