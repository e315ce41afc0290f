package user_agent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

//go:embed database/ua.yml
var databaseFile []byte

// Browser entry structure
type BrowserEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// OS entry structure
type OSEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Device entry structure
type DeviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
	Name   string `yaml:"name"`
}

// Bot entry structure
type BotEntry struct {
	Regex    string `yaml:"regex"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type database struct {
	Bots     []BotEntry     `yaml:"bots"`
	Browsers []BrowserEntry `yaml:"browsers"`
	OSs      []OSEntry      `yaml:"oss"`
	Devices  []DeviceEntry  `yaml:"devices"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Global parser instance
var (
	parser *DeviceDetectorParser
	once   sync.Once
)

type DeviceDetectorParser struct {
	db         database
	regexCache *RegexCache
}

func getParser() *DeviceDetectorParser {
	once.Do(func() {
		parser = &DeviceDetectorParser{regexCache: newRegexCache()}
		if err := yaml.Unmarshal(databaseFile, &parser.db); err != nil {
			slog.Default().Error("Failed to parse user agent database", slog.Any("error", err))
		}
	})
	return parser
}

// expand replaces $1, $2, ... in template with the submatches.
func expand(template string, matches []string) string {
	if template == "" || len(matches) < 2 {
		return template
	}
	for i, match := range matches[1:] {
		template = strings.ReplaceAll(template, fmt.Sprintf("$%d", i+1), match)
	}
	return template
}

func (p *DeviceDetectorParser) find(pattern, userAgent string) []string {
	regex, err := p.regexCache.get(pattern)
	if err != nil {
		return nil
	}
	return regex.FindStringSubmatch(userAgent)
}

func (p *DeviceDetectorParser) parseBot(userAgent string) *BotEntry {
	for i := range p.db.Bots {
		if matches := p.find(p.db.Bots[i].Regex, userAgent); len(matches) > 0 {
			return &p.db.Bots[i]
		}
	}
	return nil
}

func (p *DeviceDetectorParser) parseBrowser(userAgent string) (string, string) {
	for _, entry := range p.db.Browsers {
		if matches := p.find(entry.Regex, userAgent); len(matches) > 0 {
			return entry.Name, expand(entry.Version, matches)
		}
	}
	return "Unknown", ""
}

func (p *DeviceDetectorParser) parseOS(userAgent string) (string, string) {
	for _, entry := range p.db.OSs {
		if matches := p.find(entry.Regex, userAgent); len(matches) > 0 {
			return entry.Name, strings.ReplaceAll(expand(entry.Version, matches), "_", ".")
		}
	}
	return "Unknown", ""
}

func (p *DeviceDetectorParser) parseDevice(userAgent string) (string, bool, bool, bool) {
	for _, entry := range p.db.Devices {
		if matches := p.find(entry.Regex, userAgent); len(matches) > 0 {
			mobile := entry.Device == "smartphone" || entry.Device == "feature phone" || entry.Device == "phablet"
			tablet := entry.Device == "tablet"
			desktop := entry.Device == "desktop" || entry.Device == "notebook"
			return entry.Name, mobile, tablet, desktop
		}
	}

	ua := strings.ToLower(userAgent)

	// Tablet indicators first; tablets often say "mobile" too.
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "Tablet", false, true, false
	}

	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") ||
		strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod") ||
		strings.Contains(ua, "blackberry") || strings.Contains(ua, "windows phone") {
		return "Smartphone", true, false, false
	}

	return "Desktop", false, false, true
}

func ParseUserAgent(userAgent string) UserAgent {
	parser := getParser()

	if bot := parser.parseBot(userAgent); bot != nil {
		return UserAgent{
			UserAgent: userAgent,
			OS:        "Unknown",
			Browser:   bot.Name,
			Device:    "Bot",
			Bot:       true,
		}
	}

	browser, _ := parser.parseBrowser(userAgent)
	os, _ := parser.parseOS(userAgent)
	device, mobile, tablet, desktop := parser.parseDevice(userAgent)

	return UserAgent{
		UserAgent: userAgent,
		OS:        os,
		Browser:   browser,
		Device:    device,
		Mobile:    mobile,
		Tablet:    tablet,
		Desktop:   desktop,
	}
}
