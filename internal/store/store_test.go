package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlens/internal/analytics"
	"leadlens/internal/config"
	"leadlens/internal/models"
	"leadlens/internal/store"
	"leadlens/internal/testsupport"
)

func TestStoreReads(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	s := store.New(db, testsupport.GetLogger())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	since := now.Add(-24 * time.Hour)

	testsupport.Insert(t, db,
		&models.Session{ID: "b", StartedAt: now.Add(-time.Hour), LastActivityAt: now},
		&models.Session{ID: "a", StartedAt: now.Add(-time.Hour), LastActivityAt: now},
		&models.Session{ID: "c", StartedAt: now.Add(-2 * time.Hour), LastActivityAt: now},
		&models.Session{ID: "old", StartedAt: now.Add(-48 * time.Hour), LastActivityAt: now},
		&models.Session{ID: "bot", StartedAt: now.Add(-time.Hour), LastActivityAt: now, IsBot: true},
		&models.PageView{SessionID: "a", Path: "/", StartedAt: now.Add(-time.Hour)},
		&models.PageView{SessionID: "a", Path: "/old", StartedAt: now.Add(-72 * time.Hour)},
		&models.FormSubmission{SessionID: "a", FormType: "contact", SubmittedAt: now.Add(-time.Minute)},
		&models.Lead{ID: "lead-1", Email: "x@example.com", CreatedAt: now.Add(-time.Minute)},
		&models.Lead{ID: "lead-old", Email: "y@example.com", CreatedAt: now.Add(-72 * time.Hour)},
	)

	t.Run("now answers from a live connection", func(t *testing.T) {
		clock, err := s.Now(ctx)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), clock, 5*time.Second)
	})

	t.Run("sessions are windowed, split by bot flag and ordered", func(t *testing.T) {
		rows, err := s.Sessions(ctx, since, false, 0, 10)
		require.NoError(t, err)
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		assert.Equal(t, []string{"c", "a", "b"}, ids)

		bots, err := s.Sessions(ctx, since, true, 0, 10)
		require.NoError(t, err)
		require.Len(t, bots, 1)
		assert.Equal(t, "bot", bots[0].ID)
	})

	t.Run("sessions page with offset and limit", func(t *testing.T) {
		first, err := s.Sessions(ctx, since, false, 0, 2)
		require.NoError(t, err)
		second, err := s.Sessions(ctx, since, false, 2, 2)
		require.NoError(t, err)
		assert.Len(t, first, 2)
		require.Len(t, second, 1)
		assert.Equal(t, "b", second[0].ID)
	})

	t.Run("counts", func(t *testing.T) {
		bots, err := s.CountBotSessions(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(1), bots)

		leads, err := s.CountLeads(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(1), leads)
	})

	t.Run("windowed record lists", func(t *testing.T) {
		pvs, err := s.PageViews(ctx, since, 0, 10)
		require.NoError(t, err)
		require.Len(t, pvs, 1)
		assert.Equal(t, "/", pvs[0].Path)

		forms, err := s.FormSubmissions(ctx, since, 0, 10)
		require.NoError(t, err)
		assert.Len(t, forms, 1)

		leads, err := s.Leads(ctx, since, 0, 10)
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, "lead-1", leads[0].ID)
	})
}

func TestSetLeadArchived(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	s := store.New(db, testsupport.GetLogger())
	ctx := context.Background()

	testsupport.Insert(t, db, &models.Lead{ID: "lead-1", Email: "x@example.com", CreatedAt: time.Now().UTC()})

	archived := func() bool {
		var lead models.Lead
		require.NoError(t, db.First(&lead, "id = ?", "lead-1").Error)
		return lead.Archived
	}

	require.NoError(t, s.SetLeadArchived(ctx, "lead-1", true))
	assert.True(t, archived())

	// Archiving twice is not an error.
	require.NoError(t, s.SetLeadArchived(ctx, "lead-1", true))
	assert.True(t, archived())

	require.NoError(t, s.SetLeadArchived(ctx, "lead-1", false))
	assert.False(t, archived())

	err := s.SetLeadArchived(ctx, "missing", true)
	assert.ErrorIs(t, err, store.ErrLeadNotFound)
}

func TestOpen(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	t.Run("sqlite driver reads the application database", func(t *testing.T) {
		cfg := &config.Config{StoreDriver: config.StoreDriverSQLite}
		s := store.Open(cfg, db, testsupport.GetLogger())
		_, err := s.Now(ctx)
		assert.NoError(t, err)
	})

	t.Run("postgres without DSN is not configured", func(t *testing.T) {
		cfg := &config.Config{StoreDriver: config.StoreDriverPostgres}
		s := store.Open(cfg, db, testsupport.GetLogger())

		_, err := s.Now(ctx)
		assert.ErrorIs(t, err, analytics.ErrStoreNotConfigured)

		_, err = s.Sessions(ctx, time.Now(), false, 0, 10)
		assert.ErrorIs(t, err, analytics.ErrStoreNotConfigured)

		assert.ErrorIs(t, s.SetLeadArchived(ctx, "x", true), analytics.ErrStoreNotConfigured)
	})

	t.Run("nil connection is not configured", func(t *testing.T) {
		_, err := store.New(nil, nil).CountLeads(ctx, time.Now())
		assert.ErrorIs(t, err, analytics.ErrStoreNotConfigured)
	})
}

func TestAggregateFromStore(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	s := store.New(db, testsupport.GetLogger())
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		start := now.Add(-time.Duration(i+1) * time.Hour)
		testsupport.Insert(t, db,
			&models.Session{
				ID: fmt.Sprintf("s%d", i), StartedAt: start, LastActivityAt: start.Add(time.Minute),
				ReferrerHost: "www.linkedin.com", UTMSource: "LinkedIn", UTMMedium: "paid_social",
				UTMCampaign: "q3-leadership", Device: "desktop", Country: "GB",
			},
			&models.PageView{SessionID: fmt.Sprintf("s%d", i), Path: "/", StartedAt: start},
		)
	}

	agg := analytics.NewAggregator(s, testsupport.GetLogger(), analytics.WithPageSize(2))
	summary, err := agg.Aggregate(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Totals.Sessions)
	assert.Equal(t, int64(5), summary.Totals.PageViews)
	assert.Equal(t, int64(5), summary.Totals.PaidTrafficSessions)
	assert.Equal(t, 100.0, summary.Totals.BounceRate)
	assert.Equal(t, []analytics.MetricCountResult{{Name: "LinkedIn Ads", Count: 5}}, summary.Channels)
	assert.Equal(t, []analytics.MetricCountResult{{Name: "United Kingdom", Count: 5}}, summary.Countries)
}
