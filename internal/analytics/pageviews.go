package analytics

import (
	"sort"
	"time"

	"leadlens/internal/models"
)

type pageViewKey struct {
	sessionID string
	path      string
	startedAt int64
}

// dedupePageViews drops page views whose session is not in keep and merges
// duplicates of (session, path, started_at). The merged row carries the
// greatest known duration and scroll depth; a null loses to any number.
// Output is ordered by session, start time and path.
func dedupePageViews(pageViews []models.PageView, keep map[string]struct{}) []models.PageView {
	merged := make(map[pageViewKey]models.PageView, len(pageViews))
	for _, pv := range pageViews {
		if _, ok := keep[pv.SessionID]; !ok {
			continue
		}

		key := pageViewKey{sessionID: pv.SessionID, path: pv.Path, startedAt: pv.StartedAt.UnixNano()}
		existing, ok := merged[key]
		if !ok {
			merged[key] = pv
			continue
		}
		existing.DurationMs = maxInt64Ptr(existing.DurationMs, pv.DurationMs)
		existing.ScrollDepth = maxIntPtr(existing.ScrollDepth, pv.ScrollDepth)
		merged[key] = existing
	}

	out := make([]models.PageView, 0, len(merged))
	for _, pv := range merged {
		out = append(out, pv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func maxInt64Ptr(a, b *int64) *int64 {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

func maxIntPtr(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

// sessionPages groups deduplicated page views by session, preserving order.
func sessionPages(pageViews []models.PageView) map[string][]models.PageView {
	bySession := make(map[string][]models.PageView)
	for _, pv := range pageViews {
		bySession[pv.SessionID] = append(bySession[pv.SessionID], pv)
	}
	return bySession
}

// timeBuckets are the fixed page-time ranges, upper bound exclusive.
var timeBuckets = []struct {
	name  string
	upper time.Duration
}{
	{"0-10s", 10 * time.Second},
	{"10-30s", 30 * time.Second},
	{"30-60s", 60 * time.Second},
	{"1-3m", 3 * time.Minute},
	{"3-10m", 10 * time.Minute},
	{"10m+", 0},
}

func timeBucket(durationMs int64) string {
	d := time.Duration(durationMs) * time.Millisecond
	for _, b := range timeBuckets {
		if b.upper == 0 || d < b.upper {
			return b.name
		}
	}
	return timeBuckets[len(timeBuckets)-1].name
}

var scrollBuckets = []struct {
	name  string
	upper int
}{
	{"0-25%", 25},
	{"25-50%", 50},
	{"50-75%", 75},
	{"75-100%", 0},
}

func scrollBucket(depth int) string {
	for _, b := range scrollBuckets {
		if b.upper == 0 || depth < b.upper {
			return b.name
		}
	}
	return scrollBuckets[len(scrollBuckets)-1].name
}

// timeDistribution buckets known, non-negative page durations. Empty buckets
// are omitted; the rest keep their fixed order.
func timeDistribution(pageViews []models.PageView) []MetricCountResult {
	counts := make(map[string]int64)
	for _, pv := range pageViews {
		if pv.DurationMs == nil || *pv.DurationMs < 0 {
			continue
		}
		counts[timeBucket(*pv.DurationMs)]++
	}

	out := make([]MetricCountResult, 0, len(timeBuckets))
	for _, b := range timeBuckets {
		if n := counts[b.name]; n > 0 {
			out = append(out, MetricCountResult{Name: b.name, Count: n})
		}
	}
	return out
}

// scrollDistribution buckets known scroll depths clamped to 0..100.
func scrollDistribution(pageViews []models.PageView) []MetricCountResult {
	counts := make(map[string]int64)
	for _, pv := range pageViews {
		if pv.ScrollDepth == nil {
			continue
		}
		depth := *pv.ScrollDepth
		if depth < 0 {
			depth = 0
		}
		if depth > 100 {
			depth = 100
		}
		counts[scrollBucket(depth)]++
	}

	out := make([]MetricCountResult, 0, len(scrollBuckets))
	for _, b := range scrollBuckets {
		if n := counts[b.name]; n > 0 {
			out = append(out, MetricCountResult{Name: b.name, Count: n})
		}
	}
	return out
}
