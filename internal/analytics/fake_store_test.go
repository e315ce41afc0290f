package analytics_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadlens/internal/models"
)

// fakeStore is an in-memory analytics.Store with injectable failures.
type fakeStore struct {
	mu sync.Mutex

	now       time.Time
	nowErr    error
	sessions  []models.Session
	pageViews []models.PageView
	forms     []models.FormSubmission
	leads     []models.Lead

	errs  map[string]error
	calls map[string]int
}

func newFakeStore(now time.Time) *fakeStore {
	return &fakeStore{
		now:   now,
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeStore) called(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.errs[name]
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return append([]T{}, rows[offset:end]...)
}

func (f *fakeStore) Now(ctx context.Context) (time.Time, error) {
	if f.nowErr != nil {
		return time.Time{}, f.nowErr
	}
	return f.now, nil
}

func (f *fakeStore) Sessions(ctx context.Context, since time.Time, bot bool, offset, limit int) ([]models.Session, error) {
	if err := f.called("sessions"); err != nil {
		return nil, err
	}
	var rows []models.Session
	for _, s := range f.sessions {
		if !s.StartedAt.Before(since) && s.IsBot == bot {
			rows = append(rows, s)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].StartedAt.Equal(rows[j].StartedAt) {
			return rows[i].StartedAt.Before(rows[j].StartedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return page(rows, offset, limit), nil
}

func (f *fakeStore) CountBotSessions(ctx context.Context, since time.Time) (int64, error) {
	if err := f.called("botSessions"); err != nil {
		return 0, err
	}
	var n int64
	for _, s := range f.sessions {
		if s.IsBot && !s.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PageViews(ctx context.Context, since time.Time, offset, limit int) ([]models.PageView, error) {
	if err := f.called("pageViews"); err != nil {
		return nil, err
	}
	var rows []models.PageView
	for _, pv := range f.pageViews {
		if !pv.StartedAt.Before(since) {
			rows = append(rows, pv)
		}
	}
	return page(rows, offset, limit), nil
}

func (f *fakeStore) FormSubmissions(ctx context.Context, since time.Time, offset, limit int) ([]models.FormSubmission, error) {
	if err := f.called("formSubmissions"); err != nil {
		return nil, err
	}
	var rows []models.FormSubmission
	for _, fs := range f.forms {
		if !fs.SubmittedAt.Before(since) {
			rows = append(rows, fs)
		}
	}
	return page(rows, offset, limit), nil
}

func (f *fakeStore) Leads(ctx context.Context, since time.Time, offset, limit int) ([]models.Lead, error) {
	if err := f.called("leads"); err != nil {
		return nil, err
	}
	var rows []models.Lead
	for _, l := range f.leads {
		if !l.CreatedAt.Before(since) {
			rows = append(rows, l)
		}
	}
	return page(rows, offset, limit), nil
}

func (f *fakeStore) CountLeads(ctx context.Context, since time.Time) (int64, error) {
	if err := f.called("leadCount"); err != nil {
		return 0, err
	}
	var n int64
	for _, l := range f.leads {
		if !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetLeadArchived(ctx context.Context, id string, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.leads {
		if f.leads[i].ID == id {
			f.leads[i].Archived = archived
		}
	}
	return nil
}

func ms(v int64) *int64 { return &v }

func pct(v int) *int { return &v }
