package analytics

import (
	"context"
	"time"

	"leadlens/internal/models"
)

// Store is the read boundary to the raw records plus the single write the
// dashboard performs. All reads are lower-bounded by since and paged with
// offset/limit in a stable order.
type Store interface {
	// Now returns the store's clock; windows are measured back from it.
	Now(ctx context.Context) (time.Time, error)
	Sessions(ctx context.Context, since time.Time, bot bool, offset, limit int) ([]models.Session, error)
	CountBotSessions(ctx context.Context, since time.Time) (int64, error)
	PageViews(ctx context.Context, since time.Time, offset, limit int) ([]models.PageView, error)
	FormSubmissions(ctx context.Context, since time.Time, offset, limit int) ([]models.FormSubmission, error)
	Leads(ctx context.Context, since time.Time, offset, limit int) ([]models.Lead, error)
	CountLeads(ctx context.Context, since time.Time) (int64, error)
	SetLeadArchived(ctx context.Context, id string, archived bool) error
}

// Defaults for an Aggregator without options.
const (
	DefaultWindowDays     = 30
	DefaultPageSize       = 1000
	DefaultMaxPages       = 200
	DefaultRecentListSize = 20
)

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithPageSize sets the number of rows requested per page.
func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithMaxPages bounds the number of pages fetched per record type.
func WithMaxPages(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxPages = n
		}
	}
}

// WithRecentListSize sets the length of the recent submissions and leads lists.
func WithRecentListSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.recentListSize = n
		}
	}
}

// WithDefaultWindow sets the window used when Aggregate receives a non-positive value.
func WithDefaultWindow(days int) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.defaultWindow = days
		}
	}
}
