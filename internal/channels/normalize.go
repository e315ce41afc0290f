package channels

import (
	"net/url"
	"strings"
)

// NormalizeUTM trims and lowercases every field. Blank fields come back as "".
func NormalizeUTM(raw UTM) UTM {
	return UTM{
		Source:   clean(raw.Source),
		Medium:   clean(raw.Medium),
		Campaign: clean(raw.Campaign),
		Content:  clean(raw.Content),
		Term:     clean(raw.Term),
	}
}

// NormalizeClickIDs trims every identifier. Case is preserved.
func NormalizeClickIDs(raw ClickIDs) ClickIDs {
	return ClickIDs{
		GCLID:   strings.TrimSpace(raw.GCLID),
		FBCLID:  strings.TrimSpace(raw.FBCLID),
		MSCLKID: strings.TrimSpace(raw.MSCLKID),
		LiFatID: strings.TrimSpace(raw.LiFatID),
		TTCLID:  strings.TrimSpace(raw.TTCLID),
	}
}

// ReferrerHost extracts the lowercased hostname of a referrer URL.
// Malformed or host-less input yields "".
func ReferrerHost(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if host := parseHost(rawURL); host != "" {
		return host
	}

	// Referrers are sometimes stored without a scheme ("chat.openai.com/").
	if !strings.Contains(rawURL, "://") {
		return parseHost("https://" + rawURL)
	}
	return ""
}

func parseHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.ContainsAny(host, " \t") {
		return ""
	}
	return host
}

// FromQuery reads the UTM set from landing-page query parameters.
func FromQuery(values url.Values) (UTM, ClickIDs) {
	utm := NormalizeUTM(UTM{
		Source:   values.Get("utm_source"),
		Medium:   values.Get("utm_medium"),
		Campaign: values.Get("utm_campaign"),
		Content:  values.Get("utm_content"),
		Term:     values.Get("utm_term"),
	})
	ids := NormalizeClickIDs(ClickIDs{
		GCLID:   values.Get("gclid"),
		FBCLID:  values.Get("fbclid"),
		MSCLKID: values.Get("msclkid"),
		LiFatID: values.Get("li_fat_id"),
		TTCLID:  values.Get("ttclid"),
	})
	return utm, ids
}
