// Package analytics rolls raw sessions, page views, form submissions and
// leads up into the dashboard summary.
//
// The package is organized into focused modules:
//   - analytics.go: summary types and sentinel errors
//   - store.go: the read/write boundary to the backing store
//   - aggregator.go: fetch phase and summary assembly
//   - pageviews.go: page-view filtering and deduplication
//   - breakdowns.go: group-and-count helpers and top-N lists
//   - timeseries.go: daily and hourly series
//   - campaigns.go: campaign performance and ad identifiers
//   - countries.go: ISO code to country name
package analytics

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when no summary can be produced because the
	// store is missing, misconfigured or could not list sessions.
	ErrUnavailable = errors.New("analytics: store unavailable")

	// ErrStoreNotConfigured is reported by stores that lack credentials.
	ErrStoreNotConfigured = errors.New("analytics: store not configured")
)

// MetricCountResult represents a generic key-count pair for query results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Totals are the headline numbers of a summary.
type Totals struct {
	Sessions                 int64   `json:"sessions"`
	PageViews                int64   `json:"pageViews"`
	FormSubmissions          int64   `json:"formSubmissions"`
	Leads                    int64   `json:"leads"`
	AvgSessionTimeMs         int64   `json:"avgSessionTimeMs"`
	AvgSessionDurationMs     int64   `json:"avgSessionDurationMs"`
	AvgPageTimeMs            int64   `json:"avgPageTimeMs"`
	BounceRate               float64 `json:"bounceRate"`
	BotSessions              int64   `json:"botSessions"`
	EngagedSessions          int64   `json:"engagedSessions"`
	PagesPerSession          float64 `json:"pagesPerSession"`
	PaidTrafficSessions      int64   `json:"paidTrafficSessions"`
	PageViewDurationCoverage float64 `json:"pageViewDurationCoverage"`
}

// DailyStat is one UTC day of traffic.
type DailyStat struct {
	Date      string `json:"date"`
	Sessions  int64  `json:"sessions"`
	PageViews int64  `json:"pageViews"`
}

// HourlyStat counts sessions started in one UTC hour of the day.
type HourlyStat struct {
	Hour     int   `json:"hour"`
	Sessions int64 `json:"sessions"`
}

// CampaignPerformance is the funnel of one UTM campaign.
type CampaignPerformance struct {
	Campaign     string  `json:"campaign"`
	Sessions     int64   `json:"sessions"`
	FormSubs     int64   `json:"formSubs"`
	Leads        int64   `json:"leads"`
	FormConvRate float64 `json:"formConvRate"`
	LeadConvRate float64 `json:"leadConvRate"`
}

// RecentSubmission is a form submission as listed on the dashboard.
type RecentSubmission struct {
	ID          uint      `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
	FormType    string    `json:"formType"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	InquiryType string    `json:"inquiryType"`
	Channel     string    `json:"channel"`
	UTMCampaign string    `json:"utmCampaign"`
	Device      string    `json:"device"`
	Country     string    `json:"country"`
}

// RecentLead is a lead as listed on the dashboard.
type RecentLead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"createdAt"`
	Archived  bool      `json:"archived"`
}

// Summary is the dashboard payload. Field names are a contract with the
// dashboard; every slice is non-nil.
type Summary struct {
	WindowDays  int       `json:"windowDays"`
	GeneratedAt time.Time `json:"generatedAt"`
	Totals      Totals    `json:"totals"`

	Channels         []MetricCountResult `json:"channels"`
	Referrers        []MetricCountResult `json:"referrers"`
	Devices          []MetricCountResult `json:"devices"`
	Countries        []MetricCountResult `json:"countries"`
	Pages            []MetricCountResult `json:"pages"`
	Browsers         []MetricCountResult `json:"browsers"`
	OperatingSystems []MetricCountResult `json:"operatingSystems"`
	UTMCampaigns     []MetricCountResult `json:"utmCampaigns"`
	UTMSources       []MetricCountResult `json:"utmSources"`
	UTMMediums       []MetricCountResult `json:"utmMediums"`
	UTMContents      []MetricCountResult `json:"utmContents"`
	UTMTerms         []MetricCountResult `json:"utmTerms"`
	Ads              []MetricCountResult `json:"ads"`
	LandingPages     []MetricCountResult `json:"landingPages"`
	ExitPages        []MetricCountResult `json:"exitPages"`
	AIReferrers      []MetricCountResult `json:"aiReferrers"`

	DailyStats  []DailyStat  `json:"dailyStats"`
	HourlyStats []HourlyStat `json:"hourlyStats"`

	TimeDistribution   []MetricCountResult `json:"timeDistribution"`
	ScrollDistribution []MetricCountResult `json:"scrollDistribution"`
	EntryExitFlows     []MetricCountResult `json:"entryExitFlows"`

	RecentSubmissions   []RecentSubmission    `json:"recentSubmissions"`
	RecentLeads         []RecentLead          `json:"recentLeads"`
	CampaignPerformance []CampaignPerformance `json:"campaignPerformance"`
	LeadsPerChannel     []MetricCountResult   `json:"leadsPerChannel"`
}

// emptySummary returns a summary whose slices are all empty, never nil.
func emptySummary(windowDays int, now time.Time) *Summary {
	return &Summary{
		WindowDays:          windowDays,
		GeneratedAt:         now,
		Channels:            []MetricCountResult{},
		Referrers:           []MetricCountResult{},
		Devices:             []MetricCountResult{},
		Countries:           []MetricCountResult{},
		Pages:               []MetricCountResult{},
		Browsers:            []MetricCountResult{},
		OperatingSystems:    []MetricCountResult{},
		UTMCampaigns:        []MetricCountResult{},
		UTMSources:          []MetricCountResult{},
		UTMMediums:          []MetricCountResult{},
		UTMContents:         []MetricCountResult{},
		UTMTerms:            []MetricCountResult{},
		Ads:                 []MetricCountResult{},
		LandingPages:        []MetricCountResult{},
		ExitPages:           []MetricCountResult{},
		AIReferrers:         []MetricCountResult{},
		DailyStats:          []DailyStat{},
		HourlyStats:         []HourlyStat{},
		TimeDistribution:    []MetricCountResult{},
		ScrollDistribution:  []MetricCountResult{},
		EntryExitFlows:      []MetricCountResult{},
		RecentSubmissions:   []RecentSubmission{},
		RecentLeads:         []RecentLead{},
		CampaignPerformance: []CampaignPerformance{},
		LeadsPerChannel:     []MetricCountResult{},
	}
}
