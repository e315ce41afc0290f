package analytics

import (
	"time"

	"leadlens/internal/models"
)

const dateLayout = "2006-01-02"

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dailyStats returns one entry per UTC day from since to now inclusive, or
// nothing when there are no sessions.
func dailyStats(since, now time.Time, sessions []models.Session, pageViews []models.PageView) []DailyStat {
	if len(sessions) == 0 {
		return []DailyStat{}
	}

	first := truncateDay(since)
	last := truncateDay(now)

	index := make(map[string]int)
	out := make([]DailyStat, 0, int(last.Sub(first).Hours()/24)+1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		index[key] = len(out)
		out = append(out, DailyStat{Date: key})
	}

	for _, s := range sessions {
		if i, ok := index[s.StartedAt.UTC().Format(dateLayout)]; ok {
			out[i].Sessions++
		}
	}
	for _, pv := range pageViews {
		if i, ok := index[pv.StartedAt.UTC().Format(dateLayout)]; ok {
			out[i].PageViews++
		}
	}
	return out
}

// hourlyStats counts sessions by UTC start hour, always 24 entries when
// there are sessions.
func hourlyStats(sessions []models.Session) []HourlyStat {
	if len(sessions) == 0 {
		return []HourlyStat{}
	}

	out := make([]HourlyStat, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, s := range sessions {
		out[s.StartedAt.UTC().Hour()].Sessions++
	}
	return out
}
