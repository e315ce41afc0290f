package analytics

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	countryQuery     *gountries.Query
	countryQueryOnce sync.Once
)

func countries() *gountries.Query {
	countryQueryOnce.Do(func() {
		countryQuery = gountries.New()
	})
	return countryQuery
}

// countryName turns an ISO 3166 alpha-2/alpha-3 code into its common English
// name. Unknown codes are upper-cased; blank input stays blank.
func countryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	country, err := countries().FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

// deviceName title-cases a device class ("mobile" -> "Mobile").
func deviceName(device string) string {
	device = strings.TrimSpace(device)
	if device == "" {
		return ""
	}
	return cases.Title(language.AmericanEnglish).String(device)
}

// browserName title-cases a browser family unless it is already mixed case.
func browserName(browser string) string {
	browser = strings.TrimSpace(browser)
	if browser == "" {
		return ""
	}
	if browser != strings.ToLower(browser) {
		return browser
	}
	return cases.Title(language.AmericanEnglish).String(browser)
}

// osName normalizes operating system families to their display spelling.
func osName(os string) string {
	os = strings.TrimSpace(os)
	if os == "" {
		return ""
	}

	switch lower := strings.ToLower(os); {
	case lower == "ios" || lower == "iphone os":
		return "iOS"
	case lower == "ipados":
		return "iPadOS"
	case strings.Contains(lower, "mac") || lower == "darwin":
		return "macOS"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "chrome os") || lower == "chromeos":
		return "Chrome OS"
	case strings.Contains(lower, "linux") || strings.Contains(lower, "ubuntu"):
		return "Linux"
	default:
		if os != lower {
			return os
		}
		return cases.Title(language.AmericanEnglish).String(os)
	}
}
