// Package referrers maps referrer hostnames to display names.
package referrers

import "strings"

// Common referrer hostnames mapped to friendly display names
var knownReferrers = map[string]string{
	// Search engines
	"google.com":     "Google",
	"google.co.uk":   "Google",
	"google.de":      "Google",
	"google.fr":      "Google",
	"google.es":      "Google",
	"google.it":      "Google",
	"google.ca":      "Google",
	"google.com.au":  "Google",
	"google.com.br":  "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",

	// AI assistants
	"chatgpt.com":           "ChatGPT",
	"chat.openai.com":       "ChatGPT",
	"perplexity.ai":         "Perplexity",
	"claude.ai":             "Claude",
	"gemini.google.com":     "Gemini",
	"copilot.microsoft.com": "Copilot",
	"you.com":               "You.com",
	"phind.com":             "Phind",

	// Social and professional networks
	"linkedin.com":  "LinkedIn",
	"lnkd.in":       "LinkedIn",
	"x.com":         "X (Twitter)",
	"twitter.com":   "X (Twitter)",
	"t.co":          "X (Twitter)",
	"facebook.com":  "Facebook",
	"fb.com":        "Facebook",
	"instagram.com": "Instagram",
	"tiktok.com":    "TikTok",
	"youtube.com":   "YouTube",
	"youtu.be":      "YouTube",
	"reddit.com":    "Reddit",
	"xing.com":      "XING",
	"slack.com":     "Slack",

	// Email clients (newsletter clicks)
	"mail.google.com":    "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",
	"mail.yahoo.com":     "Yahoo Mail",

	// Training and HR communities
	"medium.com":     "Medium",
	"substack.com":   "Substack",
	"shrm.org":       "SHRM",
	"td.org":         "ATD",
	"g2.com":         "G2",
	"capterra.com":   "Capterra",
	"trustpilot.com": "Trustpilot",

	// Link shorteners
	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
	"ow.ly":       "Hootsuite",
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// Subdomains resolve to their most specific known parent; unknown hosts are
// returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hostname)), "www.")
	if hostname == "" {
		return ""
	}

	// Walk up the labels so "gemini.google.com" wins over "google.com".
	for host := hostname; host != ""; {
		if name, ok := knownReferrers[host]; ok {
			return name
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}

	return capitalizeFirst(hostname)
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
