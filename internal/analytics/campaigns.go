package analytics

import (
	"sort"
	"strings"

	"leadlens/internal/channels"
	"leadlens/internal/models"
)

const noCampaign = "(none)"

// adIdentifiers lists the ad buckets a paid session contributes to: the
// joined "source / medium / campaign / content" key plus one synthetic key
// per Google and Meta click id.
func adIdentifiers(utm channels.UTM, ids channels.ClickIDs) []string {
	var keys []string

	parts := make([]string, 0, 4)
	for _, p := range []string{utm.Source, utm.Medium, utm.Campaign, utm.Content} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		keys = append(keys, strings.Join(parts, " / "))
	}

	campaign := utm.Campaign
	if campaign == "" {
		campaign = noCampaign
	}
	if ids.GCLID != "" {
		keys = append(keys, "Google Ads ("+campaign+")")
	}
	if ids.FBCLID != "" {
		keys = append(keys, "Meta Ads ("+campaign+")")
	}
	return keys
}

// campaignPerformance builds the per-campaign funnel. Sessions are grouped
// by their normalized campaign; form submissions count through their own
// attribution snapshot and leads through the session they came from.
func campaignPerformance(sessions []classifiedSession, forms []models.FormSubmission, leads []models.Lead) []CampaignPerformance {
	rows := make(map[string]*CampaignPerformance)
	sessionCampaign := make(map[string]string, len(sessions))

	for _, s := range sessions {
		if s.utm.Campaign == "" {
			continue
		}
		sessionCampaign[s.ID] = s.utm.Campaign
		row, ok := rows[s.utm.Campaign]
		if !ok {
			row = &CampaignPerformance{Campaign: s.utm.Campaign}
			rows[s.utm.Campaign] = row
		}
		row.Sessions++
	}

	for _, f := range forms {
		campaign := channels.NormalizeUTM(channels.UTM{Campaign: f.UTMCampaign}).Campaign
		if row, ok := rows[campaign]; ok {
			row.FormSubs++
		}
	}

	for _, l := range leads {
		if l.SessionID == "" {
			continue
		}
		if row, ok := rows[sessionCampaign[l.SessionID]]; ok {
			row.Leads++
		}
	}

	out := make([]CampaignPerformance, 0, len(rows))
	for _, row := range rows {
		row.FormConvRate = percent(row.FormSubs, row.Sessions)
		row.LeadConvRate = percent(row.Leads, row.Sessions)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].Campaign < out[j].Campaign
	})
	if len(out) > limitCampaigns {
		out = out[:limitCampaigns]
	}
	return out
}
