package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leadlens/internal/metrics"
	"leadlens/internal/models"
	"leadlens/internal/pkg/async"
)

// Aggregator computes dashboard summaries from a Store. It holds no state
// between calls; each Aggregate is an independent read-only pass.
type Aggregator struct {
	store          Store
	logger         *slog.Logger
	pageSize       int
	maxPages       int
	recentListSize int
	defaultWindow  int
}

// NewAggregator creates an aggregator reading from store. A nil store is
// accepted; Aggregate then reports ErrUnavailable.
func NewAggregator(store Store, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		store:          store,
		logger:         logger,
		pageSize:       DefaultPageSize,
		maxPages:       DefaultMaxPages,
		recentListSize: DefaultRecentListSize,
		defaultWindow:  DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// dataset is the raw material of one aggregation pass.
type dataset struct {
	now         time.Time
	since       time.Time
	sessions    []models.Session
	pageViews   []models.PageView
	forms       []models.FormSubmission
	leads       []models.Lead
	leadCount   int64
	botSessions int64
}

// Aggregate builds the summary for the last windowDays days of the store's
// clock. It returns ErrUnavailable when the store is missing, misconfigured
// or cannot list sessions; any other failing sub-query leaves its part of
// the summary empty.
func (a *Aggregator) Aggregate(ctx context.Context, windowDays int) (*Summary, error) {
	start := time.Now()
	summary, err := a.aggregate(ctx, windowDays)
	metrics.RecordAggregation(time.Since(start), err)
	return summary, err
}

func (a *Aggregator) aggregate(ctx context.Context, windowDays int) (*Summary, error) {
	if windowDays <= 0 {
		windowDays = a.defaultWindow
	}

	if a.store == nil {
		a.logger.Warn("Analytics store is not configured")
		return nil, ErrUnavailable
	}

	now, err := a.store.Now(ctx)
	if err != nil {
		if errors.Is(err, ErrStoreNotConfigured) {
			a.logger.Warn("Analytics store is not configured", slog.Any("error", err))
		} else {
			a.logger.Error("Failed to read analytics store clock", slog.Any("error", err))
		}
		return nil, ErrUnavailable
	}
	now = now.UTC()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	data, err := a.fetch(ctx, now, since)
	if err != nil {
		return nil, err
	}

	return a.build(windowDays, data), nil
}

// fetch runs the independent store queries concurrently. Only a session
// failure aborts the pass.
func (a *Aggregator) fetch(ctx context.Context, now, since time.Time) (*dataset, error) {
	tasks := []async.Task{
		{
			Name: "sessions",
			Execute: func(ctx context.Context) (interface{}, error) {
				return paginate(ctx, a, "sessions", func(offset, limit int) ([]models.Session, error) {
					return a.store.Sessions(ctx, since, false, offset, limit)
				})
			},
		},
		{
			Name: "pageViews",
			Execute: func(ctx context.Context) (interface{}, error) {
				return paginate(ctx, a, "pageViews", func(offset, limit int) ([]models.PageView, error) {
					return a.store.PageViews(ctx, since, offset, limit)
				})
			},
		},
		{
			Name: "formSubmissions",
			Execute: func(ctx context.Context) (interface{}, error) {
				return paginate(ctx, a, "formSubmissions", func(offset, limit int) ([]models.FormSubmission, error) {
					return a.store.FormSubmissions(ctx, since, offset, limit)
				})
			},
		},
		{
			Name: "leads",
			Execute: func(ctx context.Context) (interface{}, error) {
				return paginate(ctx, a, "leads", func(offset, limit int) ([]models.Lead, error) {
					return a.store.Leads(ctx, since, offset, limit)
				})
			},
		},
		{
			Name: "leadCount",
			Execute: func(ctx context.Context) (interface{}, error) {
				return timed("leadCount", func() (int64, error) { return a.store.CountLeads(ctx, since) })
			},
		},
		{
			Name: "botSessions",
			Execute: func(ctx context.Context) (interface{}, error) {
				return timed("botSessions", func() (int64, error) { return a.store.CountBotSessions(ctx, since) })
			},
		},
	}

	pool := async.NewPool(len(tasks))
	results := pool.Execute(ctx, tasks)

	sessions, err := resultOf[[]models.Session](results, "sessions")
	if err != nil {
		a.logger.Error("Failed to fetch sessions", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &dataset{
		now:         now,
		since:       since,
		sessions:    sessions,
		pageViews:   orEmpty(a, results, "pageViews", []models.PageView{}),
		forms:       orEmpty(a, results, "formSubmissions", []models.FormSubmission{}),
		leads:       orEmpty(a, results, "leads", []models.Lead{}),
		leadCount:   a.countOrZero(results, "leadCount"),
		botSessions: a.countOrZero(results, "botSessions"),
	}, nil
}

// paginate fetches pages sequentially until a short page or the page cap.
func paginate[T any](ctx context.Context, a *Aggregator, name string, fetch func(offset, limit int) ([]T, error)) ([]T, error) {
	all := make([]T, 0)
	for page := 0; page < a.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		offset := page * a.pageSize
		batch, err := timed(name, func() ([]T, error) { return fetch(offset, a.pageSize) })
		if err != nil {
			return nil, fmt.Errorf("fetching %s page %d: %w", name, page, err)
		}
		all = append(all, batch...)

		a.logger.Debug("Fetched page",
			slog.String("query", name),
			slog.Int("page", page),
			slog.Int("rows", len(batch)))

		if len(batch) < a.pageSize {
			return all, nil
		}
	}

	a.logger.Warn("Pagination cap reached, results truncated",
		slog.String("query", name),
		slog.Int("max_pages", a.maxPages),
		slog.Int("page_size", a.pageSize))
	metrics.RecordPaginationCap(name)
	return all, nil
}

func timed[T any](query string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.RecordStoreQuery(query, time.Since(start), err)
	return v, err
}

func resultOf[T any](results map[string]async.Result, name string) (T, error) {
	var zero T
	result, ok := results[name]
	if !ok {
		return zero, fmt.Errorf("no result for %s", name)
	}
	if result.Err != nil {
		return zero, result.Err
	}
	v, ok := result.Data.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T for %s", result.Data, name)
	}
	return v, nil
}

// orEmpty returns the named slice, or empty when the sub-query failed.
func orEmpty[T any](a *Aggregator, results map[string]async.Result, name string, empty []T) []T {
	v, err := resultOf[[]T](results, name)
	if err != nil {
		a.logger.Error("Sub-query failed, section left empty",
			slog.String("query", name),
			slog.Any("error", err))
		return empty
	}
	if v == nil {
		return empty
	}
	return v
}

func (a *Aggregator) countOrZero(results map[string]async.Result, name string) int64 {
	v, err := resultOf[int64](results, name)
	if err != nil {
		a.logger.Error("Count query failed, reporting zero",
			slog.String("query", name),
			slog.Any("error", err))
		return 0
	}
	return v
}
