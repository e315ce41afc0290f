package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlens/internal/analytics"
	"leadlens/internal/config"
	"leadlens/internal/models"
	"leadlens/internal/testsupport"
)

type summaryResponse struct {
	Summary *analytics.Summary `json:"summary"`
	Error   string             `json:"error"`
	Retry   bool               `json:"retry"`
}

func seed(t *testing.T) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	now := time.Now().UTC()
	start := now.Add(-2 * time.Hour)
	testsupport.Insert(t, db,
		&models.Session{
			ID: "s1", StartedAt: start, LastActivityAt: start.Add(3 * time.Minute),
			ReferrerHost: "www.google.com", UTMSource: "google", UTMMedium: "cpc",
			UTMCampaign: "spring", GCLID: "g1", Device: "desktop", Country: "US", LandingPath: "/",
		},
		&models.Session{ID: "old", StartedAt: now.AddDate(0, 0, -20), LastActivityAt: now.AddDate(0, 0, -20)},
		&models.PageView{SessionID: "s1", Path: "/", StartedAt: start},
		&models.PageView{SessionID: "s1", Path: "/pricing", StartedAt: start.Add(time.Minute)},
		&models.Lead{ID: "lead-1", Email: "a@example.com", SessionID: "s1", CreatedAt: start.Add(2 * time.Minute)},
	)
}

func TestAnalyticsSummaryAction(t *testing.T) {
	seed(t)
	app := testsupport.CreateMinimalTestApp(t, testsupport.SetupTestDB(t))

	t.Run("default window", func(t *testing.T) {
		resp := testsupport.DoJSON(t, app, "GET", "/admin/api/analytics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body summaryResponse
		testsupport.DecodeJSON(t, resp, &body)
		require.NotNil(t, body.Summary)
		assert.Equal(t, 30, body.Summary.WindowDays)
		assert.Equal(t, int64(2), body.Summary.Totals.Sessions)
		assert.Len(t, body.Summary.DailyStats, 31)
	})

	t.Run("narrow window", func(t *testing.T) {
		resp := testsupport.DoJSON(t, app, "GET", "/admin/api/analytics?days=7", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body summaryResponse
		testsupport.DecodeJSON(t, resp, &body)
		require.NotNil(t, body.Summary)
		assert.Equal(t, 7, body.Summary.WindowDays)
		assert.Equal(t, int64(1), body.Summary.Totals.Sessions)
		assert.Equal(t, int64(2), body.Summary.Totals.PageViews)
		assert.Equal(t, int64(1), body.Summary.Totals.Leads)
		assert.Equal(t, []analytics.MetricCountResult{{Name: "Google Ads", Count: 1}}, body.Summary.Channels)
		require.Len(t, body.Summary.CampaignPerformance, 1)
		assert.Equal(t, "spring", body.Summary.CampaignPerformance[0].Campaign)
		assert.Equal(t, int64(1), body.Summary.CampaignPerformance[0].Leads)
	})

	t.Run("zero days means the default window", func(t *testing.T) {
		resp := testsupport.DoJSON(t, app, "GET", "/admin/api/analytics?days=0", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body summaryResponse
		testsupport.DecodeJSON(t, resp, &body)
		require.NotNil(t, body.Summary)
		assert.Equal(t, 30, body.Summary.WindowDays)
	})

	t.Run("rejects bad days", func(t *testing.T) {
		for _, q := range []string{"abc", "-1", "366", "1000"} {
			resp := testsupport.DoJSON(t, app, "GET", "/admin/api/analytics?days="+q, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)

			var body map[string]string
			testsupport.DecodeJSON(t, resp, &body)
			assert.Equal(t, "days must be an integer between 0 and 365 (0 = default window)", body["error"], q)
		}
	})
}

func TestAnalyticsSummaryActionUnavailable(t *testing.T) {
	cfg := config.GetConfig()
	driver, dsn := cfg.StoreDriver, cfg.StoreDSN
	cfg.StoreDriver, cfg.StoreDSN = config.StoreDriverPostgres, ""
	t.Cleanup(func() { cfg.StoreDriver, cfg.StoreDSN = driver, dsn })

	app := testsupport.CreateMinimalTestApp(t, testsupport.SetupTestDB(t))

	resp := testsupport.DoJSON(t, app, "GET", "/admin/api/analytics?days=7", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body summaryResponse
	testsupport.DecodeJSON(t, resp, &body)
	assert.Nil(t, body.Summary)
	assert.True(t, body.Retry)
	assert.NotEmpty(t, body.Error)

	resp = testsupport.DoJSON(t, app, "POST", "/admin/api/leads/lead-1/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health map[string]any
	testsupport.DecodeJSON(t, testsupport.DoJSON(t, app, "GET", "/_health", nil), &health)
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "error", health["store_status"])
}

func TestLeadArchiveActions(t *testing.T) {
	seed(t)
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	archived := func() bool {
		var lead models.Lead
		require.NoError(t, db.First(&lead, "id = ?", "lead-1").Error)
		return lead.Archived
	}

	resp := testsupport.DoJSON(t, app, "POST", "/admin/api/leads/lead-1/archive", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	testsupport.DecodeJSON(t, resp, &body)
	assert.Equal(t, "lead-1", body["id"])
	assert.Equal(t, true, body["archived"])
	assert.True(t, archived())

	// Archived leads still appear in the summary, flagged.
	var summary summaryResponse
	testsupport.DecodeJSON(t, testsupport.DoJSON(t, app, "GET", "/admin/api/analytics?days=7", nil), &summary)
	require.NotNil(t, summary.Summary)
	require.Len(t, summary.Summary.RecentLeads, 1)
	assert.True(t, summary.Summary.RecentLeads[0].Archived)

	resp = testsupport.DoJSON(t, app, "POST", "/admin/api/leads/lead-1/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, archived())

	resp = testsupport.DoJSON(t, app, "POST", "/admin/api/leads/missing/archive", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthIndexAction(t *testing.T) {
	app := testsupport.CreateMinimalTestApp(t, testsupport.SetupTestDB(t))

	resp := testsupport.DoJSON(t, app, "GET", "/_health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	testsupport.DecodeJSON(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["db_status"])
	assert.Equal(t, "ok", health["store_status"])
	assert.NotEmpty(t, health["timestamp"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := testsupport.CreateMinimalTestApp(t, testsupport.SetupTestDB(t))

	// Generate at least one observation for the request counters.
	testsupport.DoJSON(t, app, "GET", "/_health", nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), 30000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "leadlens_http_requests_total")
}
