package tracking

import (
	"net/url"
	"strings"

	"leadlens/internal/channels"
	"leadlens/internal/pkg/geoip"
	ua "leadlens/internal/pkg/user_agent"
)

// Device classes stored on sessions.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// getDeviceTypeFromParsedUA extracts device type from parsed user agent
func getDeviceTypeFromParsedUA(parsed ua.UserAgent) string {
	switch {
	case parsed.Bot:
		return ""
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Desktop:
		return DeviceDesktop
	}
	return ""
}

// getBrowserFromParsedUA folds mobile variants into their browser family.
func getBrowserFromParsedUA(parsed ua.UserAgent) string {
	if parsed.Bot || parsed.Browser == "" || parsed.Browser == "Unknown" {
		return ""
	}

	browserName := strings.ToLower(parsed.Browser)
	switch browserName {
	case "mobile safari":
		return "safari"
	case "chrome mobile", "chrome mobile webview", "chrome mobile ios":
		return "chrome"
	case "firefox mobile":
		return "firefox"
	case "opera mini", "opera mobile":
		return "opera"
	default:
		return browserName
	}
}

// NormalizeOperatingSystem normalizes operating system names to standardize them
func NormalizeOperatingSystem(os string) string {
	if os == "" || os == "Unknown" {
		return ""
	}

	osLower := strings.ToLower(os)
	switch {
	case strings.Contains(osLower, "ipados"):
		return "iPadOS"
	case strings.Contains(osLower, "ios") || strings.Contains(osLower, "iphone os"):
		return "iOS"
	case strings.Contains(osLower, "mac") || strings.Contains(osLower, "darwin"):
		return "MacOS"
	case strings.Contains(osLower, "chrome os"):
		return "Chrome OS"
	case strings.Contains(osLower, "android"):
		return "Android"
	case strings.Contains(osLower, "windows"):
		return "Windows"
	case strings.Contains(osLower, "linux") || strings.Contains(osLower, "ubuntu"):
		return "Linux"
	}

	return strings.ToUpper(os[:1]) + strings.ToLower(os[1:])
}

// GetCountryFromIP resolves an IP address to an upper-case ISO country code
// or "" when no GeoIP database is loaded.
func GetCountryFromIP(ipAddress string) string {
	return geoip.CountryCode(ipAddress)
}

// IsSelfReferral reports whether a referrer host is the landing host itself.
// Only exact matches count, ignoring a leading "www.".
func IsSelfReferral(referrerHost, landingHost string) bool {
	if referrerHost == "" || landingHost == "" {
		return false
	}
	return strings.TrimPrefix(strings.ToLower(referrerHost), "www.") ==
		strings.TrimPrefix(strings.ToLower(landingHost), "www.")
}

// landing splits a landing URL into host, path and its attribution query.
func landing(rawURL string) (host, path string, utm channels.UTM, ids channels.ClickIDs) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", utm, ids
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", utm, ids
	}

	path = u.Path
	if path == "" && u.Host != "" {
		path = "/"
	}
	utm, ids = channels.FromQuery(u.Query())
	return strings.ToLower(u.Hostname()), path, utm, ids
}

// pick returns override when set, otherwise fallback.
func pick(override, fallback string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return fallback
}
