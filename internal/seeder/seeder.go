// Package seeder fills a database with realistic demo traffic for the
// marketing site by replaying browser beacons through the ingestion queue.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"leadlens/internal/models"
	"leadlens/internal/tracking"
)

const siteHost = "acme-training.com"

// Seeder handles the data seeding process.
type Seeder struct {
	DBManager cartridge.DBManager
	// Records receives processed records; nil uses the application database.
	Records  *gorm.DB
	Logger   *slog.Logger
	Sessions int
	// Window is how far back sessions may start.
	Window time.Duration

	faker *gofakeit.Faker
	now   func() time.Time
}

// Result counts what a seeding run queued.
type Result struct {
	Sessions  int
	PageViews int
	Forms     int
	Leads     int
	Processed *tracking.ProcessingResult
}

// NewSeeder creates a seeder. A zero seed picks a random one; any other
// value makes the generated traffic reproducible.
func NewSeeder(dbManager cartridge.DBManager, records *gorm.DB, logger *slog.Logger, sessions int, seed uint64) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Records:   records,
		Logger:    logger,
		Sessions:  sessions,
		Window:    30 * 24 * time.Hour,
		faker:     gofakeit.New(seed),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// journeys are typical page sequences of course buyers.
var journeys = [][]string{
	{"/"},
	{"/", "/courses", "/courses/leadership-essentials"},
	{"/", "/courses", "/courses/negotiation", "/pricing", "/contact"},
	{"/blog/remote-team-feedback", "/courses/leadership-essentials"},
	{"/pricing", "/reservations"},
	{"/", "/about", "/contact"},
	{"/courses/time-management", "/pricing", "/reservations"},
	{"/blog/what-is-okr"},
	{"/", "/in-house-training", "/contact"},
}

// traffic is one way a visitor arrives: referrer plus landing query.
type traffic struct {
	referrer string
	query    url.Values
}

func (s *Seeder) pickTraffic() traffic {
	f := s.faker
	campaign := f.RandomString([]string{"spring-leadership", "q3-managers", "retargeting-pricing", "webinar-okr"})

	switch f.Number(0, 11) {
	case 0, 1, 2:
		return traffic{referrer: "https://www.google.com/"}
	case 3:
		return traffic{referrer: "https://www.bing.com/"}
	case 4:
		return traffic{query: url.Values{
			"utm_source": {"google"}, "utm_medium": {"cpc"}, "utm_campaign": {campaign},
			"utm_term": {f.RandomString([]string{"leadership training", "management course", "team workshop"})},
			"gclid":    {f.LetterN(24)},
		}}
	case 5:
		return traffic{referrer: "https://www.linkedin.com/", query: url.Values{
			"utm_source": {"linkedin"}, "utm_medium": {"paid_social"}, "utm_campaign": {campaign},
			"utm_content": {f.RandomString([]string{"carousel-a", "video-b"})},
		}}
	case 6:
		return traffic{referrer: "https://m.facebook.com/", query: url.Values{"fbclid": {f.LetterN(20)}}}
	case 7:
		return traffic{query: url.Values{"utm_source": {"newsletter"}, "utm_medium": {"email"}, "utm_campaign": {"monthly-digest"}}}
	case 8:
		return traffic{referrer: f.RandomString([]string{"https://chat.openai.com/", "https://www.perplexity.ai/", "https://claude.ai/"})}
	case 9:
		return traffic{referrer: "https://www.linkedin.com/feed/"}
	default:
		return traffic{}
	}
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

var botAgents = []string{
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)",
	"Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko; compatible; GPTBot/1.0; +https://openai.com/gptbot)",
}

var countries = []string{"US", "US", "US", "GB", "DE", "ES", "FR", "NL", "CA", "AU"}

// Run queues the generated beacons and processes them.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("sessions", s.Sessions))

	result := &Result{}
	for i := 0; i < s.Sessions; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.seedSession(result); err != nil {
			return result, fmt.Errorf("seeding session %d: %w", i, err)
		}
	}

	s.Logger.Info("Processing generated beacons...")
	processed, err := tracking.ProcessPendingBeacons(s.DBManager, s.Records, s.Logger, 500)
	if err != nil {
		return result, fmt.Errorf("failed during beacon processing: %w", err)
	}
	result.Processed = processed

	s.Logger.Info("Seeding completed successfully",
		slog.Int("sessions", result.Sessions),
		slog.Int("page_views", result.PageViews),
		slog.Int("forms", result.Forms),
		slog.Int("leads", result.Leads),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *Seeder) seedSession(result *Result) error {
	f := s.faker
	now := s.now()
	sessionID := f.UUID()
	ip := f.IPv4Address()
	startedAt := f.DateRange(now.Add(-s.Window), now.Add(-time.Minute)).UTC()

	bot := f.Float64Range(0, 1) < 0.05
	ua := f.RandomString(userAgents)
	if bot {
		ua = f.RandomString(botAgents)
	}

	journey := journeys[f.Number(0, len(journeys)-1)]
	src := s.pickTraffic()
	landing := url.URL{Scheme: "https", Host: siteHost, Path: journey[0]}
	if len(src.query) > 0 {
		landing.RawQuery = src.query.Encode()
	}

	if err := s.queue(models.BeaconSession, tracking.SessionPayload{
		ID:         sessionID,
		StartedAt:  startedAt,
		Referrer:   src.referrer,
		LandingURL: landing.String(),
		Country:    f.RandomString(countries),
	}, ua, ip); err != nil {
		return err
	}
	result.Sessions++

	at := startedAt
	for _, path := range journey {
		var duration *int64
		var scroll *int
		// Some page views end before the unload beacon is sent.
		if f.Float64Range(0, 1) < 0.85 {
			d := int64(f.Number(2_000, 240_000))
			duration = &d
			sd := f.Number(5, 100)
			scroll = &sd
		}
		if err := s.queue(models.BeaconPageView, tracking.PageViewPayload{
			SessionID:   sessionID,
			Path:        path,
			StartedAt:   at,
			DurationMs:  duration,
			ScrollDepth: scroll,
		}, ua, ip); err != nil {
			return err
		}
		result.PageViews++
		if duration != nil {
			at = at.Add(time.Duration(*duration) * time.Millisecond)
		} else {
			at = at.Add(30 * time.Second)
		}
	}

	if bot {
		return nil
	}

	last := journey[len(journey)-1]
	if (last == "/contact" || last == "/reservations") && f.Float64Range(0, 1) < 0.6 {
		formType := "contact"
		if last == "/reservations" {
			formType = "reservation"
		}
		if err := s.queue(models.BeaconForm, tracking.FormPayload{
			SessionID:   sessionID,
			SubmittedAt: at,
			FormType:    formType,
			Name:        f.Name(),
			Email:       f.Email(),
			InquiryType: f.RandomString([]string{"open-enrollment", "in-house", "pricing", "other"}),
		}, ua, ip); err != nil {
			return err
		}
		result.Forms++
	}

	if f.Float64Range(0, 1) < 0.08 {
		if err := s.queue(models.BeaconLead, tracking.LeadPayload{
			SessionID: sessionID,
			Email:     f.Email(),
			Source:    "exit-intent",
			CreatedAt: at,
		}, ua, ip); err != nil {
			return err
		}
		result.Leads++
	}
	return nil
}

func (s *Seeder) queue(kind models.BeaconKind, payload any, ua, ip string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tracking.CollectBeacon(s.DBManager, s.Logger, &tracking.CollectBeaconInput{
		Kind:      kind,
		Payload:   raw,
		IPAddress: ip,
		UserAgent: ua,
	})
}
