package tracking_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadlens/internal/channels"
	"leadlens/internal/models"
	"leadlens/internal/testsupport"
	"leadlens/internal/tracking"
)

const (
	chromeDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	googlebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestCollectBeacon(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.BeaconKind
		payload string
		wantErr bool
	}{
		{"session", models.BeaconSession, `{"id":"s1","landingUrl":"https://acme-training.com/"}`, false},
		{"page view", models.BeaconPageView, `{"sessionId":"s1","path":"/pricing","durationMs":1200}`, false},
		{"form", models.BeaconForm, `{"formType":"contact","email":"a@example.com"}`, false},
		{"lead", models.BeaconLead, `{"email":"a@example.com"}`, false},
		{"lead with client id", models.BeaconLead, `{"id":"0b6f3c1e-2a4d-4c8e-9f10-5d7a8b9c0e12","email":"a@example.com"}`, false},
		{"session without id", models.BeaconSession, `{"landingUrl":"https://acme-training.com/"}`, true},
		{"page view without path", models.BeaconPageView, `{"sessionId":"s1"}`, true},
		{"scroll depth out of range", models.BeaconPageView, `{"sessionId":"s1","path":"/","scrollDepth":140}`, true},
		{"negative duration", models.BeaconPageView, `{"sessionId":"s1","path":"/","durationMs":-5}`, true},
		{"form without type", models.BeaconForm, `{"email":"a@example.com"}`, true},
		{"lead with bad email", models.BeaconLead, `{"email":"nope"}`, true},
		{"lead with malformed id", models.BeaconLead, `{"id":"lead-1","email":"a@example.com"}`, true},
		{"unknown kind", models.BeaconKind("click"), `{}`, true},
		{"malformed json", models.BeaconLead, `{"email":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbManager, logger := testsupport.SetupTestDBManager(t)
			db := dbManager.GetConnection()
			testsupport.CleanAllTables(db)

			err := tracking.CollectBeacon(dbManager, logger, &tracking.CollectBeaconInput{
				Kind:      tt.kind,
				Payload:   []byte(tt.payload),
				IPAddress: "203.0.113.7",
			})

			var queued int64
			require.NoError(t, db.Model(&models.IngestedBeacon{}).Count(&queued).Error)

			if tt.wantErr {
				assert.ErrorIs(t, err, tracking.ErrInvalidBeacon)
				assert.Zero(t, queued)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(1), queued)

			var beacon models.IngestedBeacon
			require.NoError(t, db.First(&beacon).Error)
			assert.Equal(t, tt.kind, beacon.Kind)
			assert.Equal(t, tracking.UnknownUserAgent, beacon.UserAgent)
			assert.Equal(t, 0, beacon.Processed)
			assert.JSONEq(t, tt.payload, string(beacon.Payload))
		})
	}
}

func TestKindOf(t *testing.T) {
	kind, err := tracking.KindOf([]byte(`{"kind":"PageView","sessionId":"s1","path":"/"}`))
	require.NoError(t, err)
	assert.Equal(t, models.BeaconPageView, kind)

	_, err = tracking.KindOf([]byte(`{"sessionId":"s1"}`))
	assert.ErrorIs(t, err, tracking.ErrInvalidBeacon)

	_, err = tracking.KindOf([]byte(`not json`))
	assert.ErrorIs(t, err, tracking.ErrInvalidBeacon)
}

func TestProcessPendingBeacons(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	start := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

	// Queue children before their session; processing still lands the session first.
	testsupport.QueueBeacon(t, dbManager, models.BeaconPageView, tracking.PageViewPayload{
		SessionID: "s1", Path: "/", StartedAt: start, DurationMs: ptr(int64(15000)),
	}, safariIPhone, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconSession, tracking.SessionPayload{
		ID:         "s1",
		StartedAt:  start,
		Referrer:   "https://www.google.com/",
		LandingURL: "https://acme-training.com/?utm_source=Google&utm_medium=CPC&utm_campaign=Spring-Leadership&gclid=abc",
		Country:    "de",
	}, safariIPhone, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconPageView, tracking.PageViewPayload{
		SessionID: "s1", Path: "/pricing", StartedAt: start.Add(20 * time.Second), ScrollDepth: ptr(60),
	}, safariIPhone, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconForm, tracking.FormPayload{
		SessionID: "s1", SubmittedAt: start.Add(2 * time.Minute), FormType: "reservation",
		Name: " Ada ", Email: "Ada@Example.com", InquiryType: "in-house",
	}, safariIPhone, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, tracking.LeadPayload{
		SessionID: "s1", Email: "ada@example.com", Source: "exit-intent",
	}, safariIPhone, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconSession, tracking.SessionPayload{
		ID: "crawler", StartedAt: start,
	}, googlebot, "66.249.66.1")

	result := testsupport.ProcessAllTestBeacons(t, dbManager)
	assert.Equal(t, 6, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Sessions)
	assert.Equal(t, 2, result.PageViews)
	assert.Equal(t, 1, result.Forms)
	assert.Equal(t, 1, result.Leads)

	t.Run("session is normalized and classified", func(t *testing.T) {
		var s models.Session
		require.NoError(t, db.First(&s, "id = ?", "s1").Error)

		assert.Equal(t, "www.google.com", s.ReferrerHost)
		assert.Equal(t, "/", s.LandingPath)
		assert.Equal(t, channels.UTM{Source: "google", Medium: "cpc", Campaign: "spring-leadership"}, s.UTM())
		assert.Equal(t, "abc", s.GCLID)
		assert.Equal(t, channels.GoogleAds, s.Channel)
		assert.Equal(t, "DE", s.Country)
		assert.Equal(t, "mobile", s.Device)
		assert.Equal(t, "safari", s.Browser)
		assert.Equal(t, "iOS", s.OS)
		assert.False(t, s.IsBot)
		// Moved forward by the page view and the form submission.
		assert.True(t, s.LastActivityAt.Equal(start.Add(2*time.Minute)), "last activity %s", s.LastActivityAt)
	})

	t.Run("bots are stored flagged", func(t *testing.T) {
		var s models.Session
		require.NoError(t, db.First(&s, "id = ?", "crawler").Error)
		assert.True(t, s.IsBot)
		assert.Empty(t, s.Device)
	})

	t.Run("page views keep nullable measurements", func(t *testing.T) {
		var pvs []models.PageView
		require.NoError(t, db.Order("started_at").Find(&pvs).Error)
		require.Len(t, pvs, 2)
		require.NotNil(t, pvs[0].DurationMs)
		assert.Equal(t, int64(15000), *pvs[0].DurationMs)
		assert.Nil(t, pvs[0].ScrollDepth)
		assert.Nil(t, pvs[1].DurationMs)
		require.NotNil(t, pvs[1].ScrollDepth)
		assert.Equal(t, 60, *pvs[1].ScrollDepth)
	})

	t.Run("form carries the session snapshot", func(t *testing.T) {
		var form models.FormSubmission
		require.NoError(t, db.First(&form).Error)
		assert.Equal(t, "Ada", form.Name)
		assert.Equal(t, "ada@example.com", form.Email)
		assert.Equal(t, channels.GoogleAds, form.Channel)
		assert.Equal(t, "spring-leadership", form.UTMCampaign)
		assert.Equal(t, "https://www.google.com/", form.Referrer)
		assert.Equal(t, "mobile", form.Device)
		assert.Equal(t, "DE", form.Country)
		require.NotNil(t, form.PagesBeforeSubmit)
		assert.Equal(t, 2, *form.PagesBeforeSubmit)
		require.NotNil(t, form.TimeToSubmitMs)
		assert.Equal(t, int64(120000), *form.TimeToSubmitMs)
	})

	t.Run("lead inherits the session channel", func(t *testing.T) {
		var lead models.Lead
		require.NoError(t, db.First(&lead).Error)
		assert.Len(t, lead.ID, 36)
		assert.Equal(t, channels.GoogleAds, lead.Channel)
		assert.Equal(t, "s1", lead.SessionID)
		assert.False(t, lead.Archived)
	})

	t.Run("queue is drained", func(t *testing.T) {
		var pending int64
		require.NoError(t, db.Model(&models.IngestedBeacon{}).Where("processed = 0").Count(&pending).Error)
		assert.Zero(t, pending)

		again := testsupport.ProcessAllTestBeacons(t, dbManager)
		assert.Zero(t, again.Processed)
	})
}

func TestProcessSessionUpsert(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	start := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	testsupport.QueueBeacon(t, dbManager, models.BeaconSession, tracking.SessionPayload{
		ID: "s1", StartedAt: start, Referrer: "https://www.linkedin.com/feed/",
	}, chromeDesktop, "203.0.113.7")
	testsupport.ProcessAllTestBeacons(t, dbManager)

	// A later beacon for the same id refreshes activity but keeps attribution.
	testsupport.QueueBeacon(t, dbManager, models.BeaconSession, tracking.SessionPayload{
		ID: "s1", StartedAt: start, LastActivityAt: start.Add(5 * time.Minute),
		Referrer: "https://chat.openai.com/", LandingPath: "/courses",
	}, chromeDesktop, "203.0.113.7")
	testsupport.ProcessAllTestBeacons(t, dbManager)

	var sessions []models.Session
	require.NoError(t, db.Find(&sessions).Error)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, "www.linkedin.com", s.ReferrerHost)
	assert.Equal(t, "/courses", s.LandingPath)
	assert.True(t, s.LastActivityAt.Equal(start.Add(5*time.Minute)))
	assert.Equal(t, "desktop", s.Device)
	assert.Equal(t, "chrome", s.Browser)
	assert.Equal(t, "Windows", s.OS)
}

func TestProcessSelfReferral(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	testsupport.QueueBeacon(t, dbManager, models.BeaconSession, tracking.SessionPayload{
		ID: "s1", Referrer: "https://acme-training.com/blog", LandingURL: "https://www.acme-training.com/pricing",
	}, chromeDesktop, "203.0.113.7")
	testsupport.ProcessAllTestBeacons(t, dbManager)

	var s models.Session
	require.NoError(t, db.First(&s).Error)
	assert.Empty(t, s.Referrer)
	assert.Empty(t, s.ReferrerHost)
	assert.Equal(t, "/pricing", s.LandingPath)
	assert.Equal(t, channels.Direct, s.Channel)
}

func TestProcessOrphanRecords(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	testsupport.QueueBeacon(t, dbManager, models.BeaconForm, tracking.FormPayload{
		SessionID: "gone", FormType: "contact", Email: "b@example.com",
	}, chromeDesktop, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, tracking.LeadPayload{
		Email: "c@example.com", Channel: "Email",
	}, chromeDesktop, "203.0.113.7")

	result := testsupport.ProcessAllTestBeacons(t, dbManager)
	assert.Equal(t, 2, result.Processed)

	var form models.FormSubmission
	require.NoError(t, db.First(&form).Error)
	assert.Equal(t, channels.Unknown, form.Channel)
	assert.Nil(t, form.PagesBeforeSubmit)

	var lead models.Lead
	require.NoError(t, db.First(&lead).Error)
	assert.Equal(t, "Email", lead.Channel)
}

func TestProcessMarksBrokenBeacons(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	// Bypass CollectBeacon validation to simulate a row written by an older client.
	payload, err := json.Marshal(map[string]any{"sessionId": "s1"})
	require.NoError(t, err)
	testsupport.Insert(t, db, &models.IngestedBeacon{
		Kind: models.BeaconPageView, Payload: payload, CreatedAt: time.Now().UTC(),
	})

	result := testsupport.ProcessAllTestBeacons(t, dbManager)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Failed)

	var beacon models.IngestedBeacon
	require.NoError(t, db.First(&beacon).Error)
	assert.Equal(t, 1, beacon.Processed)
	assert.NotEmpty(t, beacon.Error)
}

// openRecordsDB opens a second in-memory database holding only records,
// standing in for an external analytics store.
func openRecordsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:records_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.Records()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestProcessIntoSeparateRecordsDB(t *testing.T) {
	dbManager, log := testsupport.SetupTestDBManager(t)
	queue := dbManager.GetConnection()
	testsupport.CleanAllTables(queue)

	testsupport.QueueBeacon(t, dbManager, models.BeaconPageView, tracking.PageViewPayload{
		SessionID: "s1", Path: "/pricing",
	}, chromeDesktop, "203.0.113.7")

	t.Run("unreachable records keep beacons queued", func(t *testing.T) {
		down := openRecordsDB(t)
		sqlDB, err := down.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		result, err := tracking.ProcessPendingBeacons(dbManager, down, log, 50)
		assert.ErrorIs(t, err, tracking.ErrRecordsUnavailable)
		assert.Zero(t, result.Processed)
		assert.Zero(t, result.Failed)

		var beacon models.IngestedBeacon
		require.NoError(t, queue.First(&beacon).Error)
		assert.Equal(t, 0, beacon.Processed)
		assert.Empty(t, beacon.Error)
	})

	t.Run("queued beacons land once the store is back", func(t *testing.T) {
		records := openRecordsDB(t)

		result, err := tracking.ProcessPendingBeacons(dbManager, records, log, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		var views int64
		require.NoError(t, records.Model(&models.PageView{}).Count(&views).Error)
		assert.Equal(t, int64(1), views)

		var pending int64
		require.NoError(t, queue.Model(&models.IngestedBeacon{}).Where("processed = 0").Count(&pending).Error)
		assert.Zero(t, pending)
	})
}

func TestProcessLeadsAreIdempotent(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	capturedAt := time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC)
	retried := tracking.LeadPayload{Email: "Ada@Example.com ", SessionID: "s1", CreatedAt: capturedAt}
	withID := tracking.LeadPayload{ID: "0B6F3C1E-2A4D-4C8E-9F10-5D7A8B9C0E12", Email: "grace@example.com"}

	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, retried, chromeDesktop, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, retried, chromeDesktop, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, withID, chromeDesktop, "203.0.113.7")
	testsupport.QueueBeacon(t, dbManager, models.BeaconLead, withID, chromeDesktop, "203.0.113.7")

	result := testsupport.ProcessAllTestBeacons(t, dbManager)
	assert.Equal(t, 4, result.Processed)
	assert.Zero(t, result.Failed)

	var leads []models.Lead
	require.NoError(t, db.Order("email ASC").Find(&leads).Error)
	require.Len(t, leads, 2)
	assert.Equal(t, "ada@example.com", leads[0].Email)
	assert.Len(t, leads[0].ID, 36)
	assert.Equal(t, "0b6f3c1e-2a4d-4c8e-9f10-5d7a8b9c0e12", leads[1].ID)

	// Replaying an already processed batch stores nothing new.
	require.NoError(t, db.Model(&models.IngestedBeacon{}).Where("1 = 1").Update("processed", 0).Error)
	testsupport.ProcessAllTestBeacons(t, dbManager)

	var count int64
	require.NoError(t, db.Model(&models.Lead{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestNormalizeOperatingSystem(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"Unknown":   "",
		"Mac":       "MacOS",
		"iOS":       "iOS",
		"iPadOS":    "iPadOS",
		"GNU/Linux": "Linux",
		"Ubuntu":    "Linux",
		"Android":   "Android",
		"Windows":   "Windows",
		"Chrome OS": "Chrome OS",
		"haiku":     "Haiku",
		"FREEBSD":   "Freebsd",
	}
	for in, want := range tests {
		assert.Equal(t, want, tracking.NormalizeOperatingSystem(in), in)
	}
}

func TestIsSelfReferral(t *testing.T) {
	assert.True(t, tracking.IsSelfReferral("www.acme.com", "acme.com"))
	assert.True(t, tracking.IsSelfReferral("ACME.com", "acme.com"))
	assert.False(t, tracking.IsSelfReferral("blog.acme.com", "acme.com"))
	assert.False(t, tracking.IsSelfReferral("", "acme.com"))
}

func ptr[T any](v T) *T { return &v }
