package analytics

import (
	"math"
	"sort"
)

// Caps for the top-N lists of the summary.
const (
	limitReferrers   = 20
	limitDevices     = 10
	limitCountries   = 20
	limitPages       = 30
	limitBrowsers    = 10
	limitOS          = 10
	limitUTM         = 20
	limitAds         = 20
	limitLanding     = 20
	limitExit        = 20
	limitAIReferrers = 10
	limitFlows       = 20
	limitCampaigns   = 20
	noLimit          = 0
)

// counter groups occurrences by name. Empty names are never counted.
type counter map[string]int64

func (c counter) add(name string) {
	if name == "" {
		return
	}
	c[name]++
}

// top returns the counts sorted by count desc then name asc, capped at
// limit (0 = all).
func (c counter) top(limit int) []MetricCountResult {
	out := make([]MetricCountResult, 0, len(c))
	for name, count := range c {
		out = append(out, MetricCountResult{Name: name, Count: count})
	}
	sortMetricResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortMetricResults(results []MetricCountResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})
}

// round rounds v to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// percent returns 100*part/whole rounded to 2 decimals, 0 when whole is 0.
func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round(100*float64(part)/float64(whole), 2)
}

// ratio returns part/whole rounded to decimals, 0 when whole is 0.
func ratio(part, whole int64, decimals int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)/float64(whole), decimals)
}

// mean returns the rounded mean of sum over n, 0 when n is 0.
func mean(sum, n int64) int64 {
	if n == 0 {
		return 0
	}
	return int64(math.Round(float64(sum) / float64(n)))
}
