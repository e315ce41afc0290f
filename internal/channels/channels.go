// Package channels derives the traffic channel of a visit from its referrer,
// UTM parameters and ad click identifiers.
package channels

import (
	"strings"
)

// Channel labels that are not parameterized by a name.
const (
	GoogleAds   = "Google Ads"
	BingAds     = "Bing Ads"
	LinkedInAds = "LinkedIn Ads"
	LinkedIn    = "LinkedIn"
	MetaAds     = "Meta Ads"
	Meta        = "Meta"
	XAds        = "X Ads"
	XTwitter    = "X (Twitter)"
	TikTokAds   = "TikTok Ads"
	TikTok      = "TikTok"
	Email       = "Email"
	Direct      = "Direct"
	Referral    = "Referral"
	Unknown     = "Unknown"

	aiPrefix      = "AI ("
	organicPrefix = "Organic Search ("
)

// UTM is the set of campaign parameters carried by a landing URL.
// Empty fields are absent.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
	Term     string `json:"utm_term,omitempty"`
}

// ClickIDs holds the ad-platform click identifiers of a landing URL.
type ClickIDs struct {
	GCLID   string `json:"gclid,omitempty"`
	FBCLID  string `json:"fbclid,omitempty"`
	MSCLKID string `json:"msclkid,omitempty"`
	LiFatID string `json:"li_fat_id,omitempty"`
	TTCLID  string `json:"ttclid,omitempty"`
}

// Any reports whether at least one click identifier is present.
func (c ClickIDs) Any() bool {
	return c.GCLID != "" || c.FBCLID != "" || c.MSCLKID != "" || c.LiFatID != "" || c.TTCLID != ""
}

var paidSearchMediums = map[string]bool{
	"cpc":        true,
	"ppc":        true,
	"paid":       true,
	"paidsearch": true,
}

var paidSocialMediums = map[string]bool{
	"paid-social": true,
	"paid_social": true,
	"paidsocial":  true,
	"social-paid": true,
	"social_paid": true,
}

// IsPaidSearchMedium reports whether medium denotes paid search traffic.
func IsPaidSearchMedium(medium string) bool {
	return paidSearchMediums[clean(medium)]
}

// IsPaidSocialMedium reports whether medium denotes paid social traffic.
func IsPaidSocialMedium(medium string) bool {
	return paidSocialMediums[clean(medium)]
}

// aiAssistants maps assistant domains to display names. A host matches its
// domain exactly or as a subdomain.
var aiAssistants = []struct {
	domain string
	name   string
}{
	{"chatgpt.com", "ChatGPT"},
	{"chat.openai.com", "ChatGPT"},
	{"perplexity.ai", "Perplexity"},
	{"claude.ai", "Claude"},
	{"gemini.google.com", "Gemini"},
	{"copilot.microsoft.com", "Copilot"},
	{"you.com", "You.com"},
	{"phind.com", "Phind"},
}

var searchEngines = []struct {
	marker string
	name   string
}{
	{"google.", "Google"},
	{"bing.", "Bing"},
	{"duckduckgo.", "DuckDuckGo"},
	{"yahoo.", "Yahoo"},
}

// AIName returns the assistant name for a referrer host, or "" when the host
// does not belong to a known AI assistant.
func AIName(referrerHost string) string {
	host := stripWWW(clean(referrerHost))
	if host == "" {
		return ""
	}
	for _, a := range aiAssistants {
		if host == a.domain || strings.HasSuffix(host, "."+a.domain) {
			return a.name
		}
	}
	return ""
}

// IsAIChannel reports whether a channel label was produced by an AI assistant referral.
func IsAIChannel(channel string) bool {
	return strings.HasPrefix(channel, aiPrefix)
}

func searchEngineName(host string) string {
	for _, s := range searchEngines {
		if strings.HasPrefix(host, s.marker) || strings.Contains(host, "."+s.marker) {
			return s.name
		}
	}
	return ""
}

// input is the cleaned view of one visit that rules match against.
type input struct {
	host     string
	source   string
	medium   string
	campaign string
	ids      ClickIDs
}

func (in input) paidSearch() bool { return paidSearchMediums[in.medium] }
func (in input) paidSocial() bool { return paidSocialMediums[in.medium] }

type rule struct {
	match func(in input) bool
	label func(in input) string
}

func fixed(label string) func(input) string {
	return func(input) string { return label }
}

func paidOrOrganic(paid, organic string) func(input) string {
	return func(in input) string {
		if in.paidSocial() {
			return paid
		}
		return organic
	}
}

// rules is evaluated top to bottom; the first match wins. AI assistants are
// checked before search engines so gemini.google.com is not Google search.
var rules = []rule{
	{
		match: func(in input) bool {
			return in.ids.GCLID != "" || (in.source == "google" && in.paidSearch())
		},
		label: fixed(GoogleAds),
	},
	{
		match: func(in input) bool {
			return in.ids.MSCLKID != "" || (in.source == "bing" && in.paidSearch())
		},
		label: fixed(BingAds),
	},
	{
		match: func(in input) bool { return strings.Contains(in.source, "linkedin") },
		label: func(in input) string {
			if in.paidSearch() || in.paidSocial() || strings.Contains(in.campaign, "ads") {
				return LinkedInAds
			}
			return LinkedIn
		},
	},
	{
		match: func(in input) bool {
			return strings.Contains(in.source, "facebook") || strings.Contains(in.source, "instagram")
		},
		label: paidOrOrganic(MetaAds, Meta),
	},
	{
		match: func(in input) bool { return in.source == "x" || strings.Contains(in.source, "twitter") },
		label: paidOrOrganic(XAds, XTwitter),
	},
	{
		match: func(in input) bool { return strings.Contains(in.source, "tiktok") },
		label: paidOrOrganic(TikTokAds, TikTok),
	},
	{
		match: func(in input) bool { return in.medium == "email" || in.medium == "newsletter" },
		label: fixed(Email),
	},
	{
		match: func(in input) bool { return AIName(in.host) != "" },
		label: func(in input) string { return aiPrefix + AIName(in.host) + ")" },
	},
	{
		match: func(in input) bool { return searchEngineName(in.host) != "" },
		label: func(in input) string { return organicPrefix + searchEngineName(in.host) + ")" },
	},
	{
		match: func(in input) bool { return in.host == "" },
		label: fixed(Direct),
	},
}

// Classify returns the channel label of a visit. It is total: every input
// yields exactly one label, "Referral" when nothing more specific applies.
func Classify(referrerHost string, utm UTM, ids ClickIDs) string {
	in := input{
		host:     stripWWW(clean(referrerHost)),
		source:   clean(utm.Source),
		medium:   clean(utm.Medium),
		campaign: clean(utm.Campaign),
		ids:      NormalizeClickIDs(ids),
	}

	for _, r := range rules {
		if r.match(in) {
			return r.label(in)
		}
	}
	return Referral
}

// IsPaid reports whether a classified visit counts as paid traffic.
func IsPaid(channel string, utm UTM, ids ClickIDs) bool {
	return strings.Contains(channel, "Ads") ||
		IsPaidSearchMedium(utm.Medium) ||
		NormalizeClickIDs(ids).Any()
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}
