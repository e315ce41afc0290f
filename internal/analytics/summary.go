package analytics

import (
	"sort"

	"leadlens/internal/channels"
	"leadlens/internal/models"
	"leadlens/internal/pkg/referrers"
)

// engagedThresholdMs is the session length above which a single-page visit
// still counts as engaged.
const engagedThresholdMs = 10_000

// classifiedSession is a session with normalized attribution and its
// recomputed channel.
type classifiedSession struct {
	models.Session
	host    string
	utm     channels.UTM
	ids     channels.ClickIDs
	channel string
	paid    bool
}

func classify(s models.Session) classifiedSession {
	host := channels.ReferrerHost(s.ReferrerHost)
	if host == "" {
		host = channels.ReferrerHost(s.Referrer)
	}

	utm := channels.NormalizeUTM(s.UTM())
	ids := channels.NormalizeClickIDs(s.ClickIDs())
	channel := channels.Classify(host, utm, ids)

	return classifiedSession{
		Session: s,
		host:    host,
		utm:     utm,
		ids:     ids,
		channel: channel,
		paid:    channels.IsPaid(channel, utm, ids),
	}
}

// uniqueSessions drops bot rows and repeated ids, then orders by start time
// and id so every later step sees the same sequence.
func uniqueSessions(sessions []models.Session) []models.Session {
	seen := make(map[string]struct{}, len(sessions))
	out := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.IsBot || s.ID == "" {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (a *Aggregator) build(windowDays int, data *dataset) *Summary {
	summary := emptySummary(windowDays, data.now)

	sessions := uniqueSessions(data.sessions)
	keep := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		keep[s.ID] = struct{}{}
	}

	pageViews := dedupePageViews(data.pageViews, keep)
	pagesBySession := sessionPages(pageViews)

	classified := make([]classifiedSession, len(sessions))
	for i, s := range sessions {
		classified[i] = classify(s)
	}

	var (
		channelCounts  = counter{}
		referrerCounts = counter{}
		deviceCounts   = counter{}
		countryCounts  = counter{}
		browserCounts  = counter{}
		osCounts       = counter{}
		sourceCounts   = counter{}
		mediumCounts   = counter{}
		campaignCounts = counter{}
		contentCounts  = counter{}
		termCounts     = counter{}
		adCounts       = counter{}
		landingCounts  = counter{}
		exitCounts     = counter{}
		aiCounts       = counter{}
		flowCounts     = counter{}

		paid, engaged          int64
		withPages, singlePage  int64
		durationSum            int64
		timedSessions, timeSum int64
	)

	for _, s := range classified {
		channelCounts.add(s.channel)
		if s.host != "" {
			referrerCounts.add(referrers.FriendlyName(s.host))
		}
		deviceCounts.add(deviceName(s.Device))
		countryCounts.add(countryName(s.Country))
		browserCounts.add(browserName(s.Browser))
		osCounts.add(osName(s.OS))

		sourceCounts.add(s.utm.Source)
		mediumCounts.add(s.utm.Medium)
		campaignCounts.add(s.utm.Campaign)
		contentCounts.add(s.utm.Content)
		termCounts.add(s.utm.Term)

		if s.paid {
			paid++
			for _, key := range adIdentifiers(s.utm, s.ids) {
				adCounts.add(key)
			}
		}

		if channels.IsAIChannel(s.channel) {
			aiCounts.add(channels.AIName(s.host))
		}

		elapsed := s.LastActivityAt.Sub(s.StartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		durationSum += elapsed

		pages := pagesBySession[s.ID]
		if len(pages) > 1 || elapsed > engagedThresholdMs {
			engaged++
		}

		landing := s.LandingPath
		if landing == "" && len(pages) > 0 {
			landing = pages[0].Path
		}
		landingCounts.add(landing)

		if len(pages) == 0 {
			continue
		}
		withPages++
		if len(pages) == 1 {
			singlePage++
		}

		exit := pages[len(pages)-1].Path
		exitCounts.add(exit)
		flowCounts.add(landing + " → " + exit)

		var sessionTime int64
		for _, pv := range pages {
			if pv.DurationMs != nil && *pv.DurationMs > 0 {
				sessionTime += *pv.DurationMs
			}
		}
		if sessionTime > 0 {
			timedSessions++
			timeSum += sessionTime
		}
	}

	pageCounts := counter{}
	var knownDurations, positiveDurations, positiveSum int64
	for _, pv := range pageViews {
		pageCounts.add(pv.Path)
		if pv.DurationMs == nil {
			continue
		}
		knownDurations++
		if *pv.DurationMs > 0 {
			positiveDurations++
			positiveSum += *pv.DurationMs
		}
	}

	totalSessions := int64(len(classified))
	totalPageViews := int64(len(pageViews))

	summary.Totals = Totals{
		Sessions:                 totalSessions,
		PageViews:                totalPageViews,
		FormSubmissions:          int64(len(data.forms)),
		Leads:                    data.leadCount,
		AvgSessionTimeMs:         mean(timeSum, timedSessions),
		AvgSessionDurationMs:     mean(durationSum, totalSessions),
		AvgPageTimeMs:            mean(positiveSum, positiveDurations),
		BounceRate:               percent(singlePage, withPages),
		BotSessions:              data.botSessions,
		EngagedSessions:          engaged,
		PagesPerSession:          ratio(totalPageViews, withPages, 2),
		PaidTrafficSessions:      paid,
		PageViewDurationCoverage: ratio(knownDurations, totalPageViews, 4),
	}

	summary.Channels = channelCounts.top(noLimit)
	summary.Referrers = referrerCounts.top(limitReferrers)
	summary.Devices = deviceCounts.top(limitDevices)
	summary.Countries = countryCounts.top(limitCountries)
	summary.Pages = pageCounts.top(limitPages)
	summary.Browsers = browserCounts.top(limitBrowsers)
	summary.OperatingSystems = osCounts.top(limitOS)
	summary.UTMSources = sourceCounts.top(limitUTM)
	summary.UTMMediums = mediumCounts.top(limitUTM)
	summary.UTMCampaigns = campaignCounts.top(limitUTM)
	summary.UTMContents = contentCounts.top(limitUTM)
	summary.UTMTerms = termCounts.top(limitUTM)
	summary.Ads = adCounts.top(limitAds)
	summary.LandingPages = landingCounts.top(limitLanding)
	summary.ExitPages = exitCounts.top(limitExit)
	summary.AIReferrers = aiCounts.top(limitAIReferrers)
	summary.EntryExitFlows = flowCounts.top(limitFlows)

	summary.TimeDistribution = timeDistribution(pageViews)
	summary.ScrollDistribution = scrollDistribution(pageViews)
	summary.DailyStats = dailyStats(data.since, data.now, sessions, pageViews)
	summary.HourlyStats = hourlyStats(sessions)

	summary.CampaignPerformance = campaignPerformance(classified, data.forms, data.leads)
	summary.RecentSubmissions = recentSubmissions(data.forms, a.recentListSize)
	summary.RecentLeads = recentLeads(data.leads, a.recentListSize)
	summary.LeadsPerChannel = leadsPerChannel(data.leads)

	return summary
}

func recentSubmissions(forms []models.FormSubmission, limit int) []RecentSubmission {
	sorted := make([]models.FormSubmission, len(forms))
	copy(sorted, forms)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].SubmittedAt.Equal(sorted[j].SubmittedAt) {
			return sorted[i].SubmittedAt.After(sorted[j].SubmittedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]RecentSubmission, 0, len(sorted))
	for _, f := range sorted {
		out = append(out, RecentSubmission{
			ID:          f.ID,
			SubmittedAt: f.SubmittedAt.UTC(),
			FormType:    f.FormType,
			Name:        f.Name,
			Email:       f.Email,
			InquiryType: f.InquiryType,
			Channel:     f.Channel,
			UTMCampaign: f.UTMCampaign,
			Device:      deviceName(f.Device),
			Country:     countryName(f.Country),
		})
	}
	return out
}

func recentLeads(leads []models.Lead, limit int) []RecentLead {
	sorted := make([]models.Lead, len(leads))
	copy(sorted, leads)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]RecentLead, 0, len(sorted))
	for _, l := range sorted {
		out = append(out, RecentLead{
			ID:        l.ID,
			Email:     l.Email,
			Source:    l.Source,
			Channel:   l.Channel,
			CreatedAt: l.CreatedAt.UTC(),
			Archived:  l.Archived,
		})
	}
	return out
}

func leadsPerChannel(leads []models.Lead) []MetricCountResult {
	counts := counter{}
	for _, l := range leads {
		channel := l.Channel
		if channel == "" {
			channel = channels.Unknown
		}
		counts.add(channel)
	}
	return counts.top(noLimit)
}
