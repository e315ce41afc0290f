package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadlens/internal/channels"
	"leadlens/internal/metrics"
	"leadlens/internal/models"
	ua "leadlens/internal/pkg/user_agent"
)

// ErrRecordsUnavailable is returned when the records database cannot be
// reached. Beacons not yet written stay queued for the next run.
var ErrRecordsUnavailable = errors.New("tracking: records database unavailable")

// leadNamespace derives stable lead ids for beacons without a client id.
var leadNamespace = uuid.MustParse("6f1c2a4e-8d3b-4b7a-9e52-0c7d1f3a9b60")

// ProcessingResult summarizes one drain of the beacon queue.
type ProcessingResult struct {
	Processed int
	Failed    int
	Sessions  int
	PageViews int
	Forms     int
	Leads     int
}

// kindOrder makes sessions land before the records that reference them.
var kindOrder = map[models.BeaconKind]int{
	models.BeaconSession:  0,
	models.BeaconPageView: 1,
	models.BeaconForm:     2,
	models.BeaconLead:     3,
}

// ProcessPendingBeacons drains unprocessed beacons in batches of batchSize,
// writing the resulting records to records. Every beacon leaves the queue:
// those that fail are marked processed with their error message.
func ProcessPendingBeacons(dbManager cartridge.DBManager, records *gorm.DB, logger *slog.Logger, batchSize int) (*ProcessingResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	queue := dbManager.GetConnection()
	if records == nil {
		records = queue
	}
	result := &ProcessingResult{}

	for {
		var batch []models.IngestedBeacon
		err := queue.Where("processed = ?", 0).
			Order("created_at ASC, id ASC").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return result, fmt.Errorf("failed to fetch unprocessed beacons: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		if err := ping(records); err != nil {
			logger.Warn("Records database unreachable - beacons stay queued",
				slog.Int("batch", len(batch)),
				slog.Any("error", err))
			return result, fmt.Errorf("%w: %v", ErrRecordsUnavailable, err)
		}

		if err := processBatch(queue, records, logger, batch, result); err != nil {
			return result, err
		}
		if len(batch) < batchSize {
			break
		}
	}

	var pending int64
	if err := queue.Model(&models.IngestedBeacon{}).Where("processed = ?", 0).Count(&pending).Error; err == nil {
		metrics.SetBeaconQueuePending(pending)
	}

	if result.Processed > 0 || result.Failed > 0 {
		logger.Info("Processed beacons",
			slog.Int("processed", result.Processed),
			slog.Int("failed", result.Failed),
			slog.Int("sessions", result.Sessions),
			slog.Int("page_views", result.PageViews),
			slog.Int("forms", result.Forms),
			slog.Int("leads", result.Leads))
	}
	return result, nil
}

func processBatch(queue, records *gorm.DB, logger *slog.Logger, batch []models.IngestedBeacon, result *ProcessingResult) error {
	sort.SliceStable(batch, func(i, j int) bool {
		return kindOrder[batch[i].Kind] < kindOrder[batch[j].Kind]
	})

	var done []uint
	var unavailable error
	failures := make(map[uint]string)

	for i := range batch {
		beacon := &batch[i]
		err := models.Write(logger, records, func(tx *gorm.DB) error {
			return apply(tx, beacon)
		})

		if err != nil && !isPermanent(err) {
			if perr := ping(records); perr != nil {
				// This beacon and the rest of the batch stay queued.
				unavailable = fmt.Errorf("%w: %v", ErrRecordsUnavailable, err)
				break
			}
		}
		metrics.RecordBeaconProcessed(string(beacon.Kind), err)

		if err != nil {
			logger.Warn("Failed to process beacon",
				slog.Uint64("beacon_id", uint64(beacon.ID)),
				slog.String("kind", string(beacon.Kind)),
				slog.Any("error", err))
			failures[beacon.ID] = err.Error()
			result.Failed++
			continue
		}

		done = append(done, beacon.ID)
		result.Processed++
		switch beacon.Kind {
		case models.BeaconSession:
			result.Sessions++
		case models.BeaconPageView:
			result.PageViews++
		case models.BeaconForm:
			result.Forms++
		case models.BeaconLead:
			result.Leads++
		}
	}

	err := models.PerformWrite(logger, queue, func(tx *gorm.DB) error {
		if len(done) > 0 {
			if err := tx.Model(&models.IngestedBeacon{}).Where("id IN ?", done).Update("processed", 1).Error; err != nil {
				return fmt.Errorf("failed to mark beacons as processed: %w", err)
			}
		}
		for id, msg := range failures {
			err := tx.Model(&models.IngestedBeacon{}).Where("id = ?", id).
				Updates(map[string]any{"processed": 1, "error": msg}).Error
			if err != nil {
				return fmt.Errorf("failed to mark beacon %d as failed: %w", id, err)
			}
		}
		return nil
	})
	return errors.Join(unavailable, err)
}

// isPermanent reports whether err comes from the beacon itself, so that
// retrying it can never succeed.
func isPermanent(err error) bool {
	if errors.Is(err, ErrInvalidBeacon) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}

// ping checks that db still answers.
func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// apply turns one beacon into its record inside tx.
func apply(tx *gorm.DB, beacon *models.IngestedBeacon) error {
	payload, err := decode(beacon.Kind, beacon.Payload)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *SessionPayload:
		return upsertSession(tx, p, beacon)
	case *PageViewPayload:
		return insertPageView(tx, p, beacon)
	case *FormPayload:
		return insertForm(tx, p, beacon)
	case *LeadPayload:
		return insertLead(tx, p, beacon)
	}
	return fmt.Errorf("%w: unhandled kind %q", ErrInvalidBeacon, beacon.Kind)
}

// buildSession derives the stored session from a payload and the request
// that carried it.
func buildSession(p *SessionPayload, beacon *models.IngestedBeacon) models.Session {
	landingHost, landingPath, utm, ids := landing(p.LandingURL)

	utm = channels.NormalizeUTM(channels.UTM{
		Source:   pick(p.UTMSource, utm.Source),
		Medium:   pick(p.UTMMedium, utm.Medium),
		Campaign: pick(p.UTMCampaign, utm.Campaign),
		Content:  pick(p.UTMContent, utm.Content),
		Term:     pick(p.UTMTerm, utm.Term),
	})
	ids = channels.NormalizeClickIDs(channels.ClickIDs{
		GCLID:   pick(p.GCLID, ids.GCLID),
		FBCLID:  pick(p.FBCLID, ids.FBCLID),
		MSCLKID: pick(p.MSCLKID, ids.MSCLKID),
		LiFatID: pick(p.LiFatID, ids.LiFatID),
		TTCLID:  pick(p.TTCLID, ids.TTCLID),
	})

	referrer := strings.TrimSpace(p.Referrer)
	referrerHost := channels.ReferrerHost(referrer)
	if IsSelfReferral(referrerHost, landingHost) {
		referrer, referrerHost = "", ""
	}

	parsed := ua.ParseUserAgent(beacon.UserAgent)

	country := strings.ToUpper(strings.TrimSpace(p.Country))
	if country == "" {
		country = GetCountryFromIP(beacon.IPAddress)
	}

	startedAt := p.StartedAt
	if startedAt.IsZero() {
		startedAt = beacon.CreatedAt
	}
	lastActivity := p.LastActivityAt
	if lastActivity.Before(startedAt) {
		lastActivity = startedAt
	}

	session := models.Session{
		ID:             strings.TrimSpace(p.ID),
		StartedAt:      startedAt.UTC(),
		LastActivityAt: lastActivity.UTC(),
		Referrer:       referrer,
		ReferrerHost:   referrerHost,
		Device:         getDeviceTypeFromParsedUA(parsed),
		Browser:        getBrowserFromParsedUA(parsed),
		OS:             NormalizeOperatingSystem(parsed.OS),
		Country:        country,
		LandingPath:    pick(p.LandingPath, landingPath),
		IsBot:          parsed.Bot,
		Channel:        channels.Classify(referrerHost, utm, ids),
	}
	session.SetUTM(utm)
	session.SetClickIDs(ids)
	return session
}

// upsertSession creates the session or, for a known id, only moves its last
// activity forward. Attribution is fixed by the first beacon.
func upsertSession(tx *gorm.DB, p *SessionPayload, beacon *models.IngestedBeacon) error {
	session := buildSession(p, beacon)

	var existing models.Session
	err := tx.Where("id = ?", session.ID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&session).Error
	}
	if err != nil {
		return fmt.Errorf("loading session %s: %w", session.ID, err)
	}

	updates := map[string]any{}
	if session.LastActivityAt.After(existing.LastActivityAt) {
		updates["last_activity_at"] = session.LastActivityAt
	}
	if existing.LandingPath == "" && session.LandingPath != "" {
		updates["landing_path"] = session.LandingPath
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Session{}).Where("id = ?", session.ID).Updates(updates).Error
}

// touchSession moves a session's last activity forward to at.
func touchSession(tx *gorm.DB, sessionID string, at time.Time) error {
	return tx.Model(&models.Session{}).
		Where("id = ? AND last_activity_at < ?", sessionID, at).
		Update("last_activity_at", at).Error
}

func insertPageView(tx *gorm.DB, p *PageViewPayload, beacon *models.IngestedBeacon) error {
	startedAt := p.StartedAt
	if startedAt.IsZero() {
		startedAt = beacon.CreatedAt
	}

	pv := models.PageView{
		SessionID:   strings.TrimSpace(p.SessionID),
		Path:        strings.TrimSpace(p.Path),
		StartedAt:   startedAt.UTC(),
		DurationMs:  p.DurationMs,
		ScrollDepth: p.ScrollDepth,
	}
	if err := tx.Create(&pv).Error; err != nil {
		return fmt.Errorf("inserting page view: %w", err)
	}

	end := pv.StartedAt
	if pv.DurationMs != nil {
		end = end.Add(time.Duration(*pv.DurationMs) * time.Millisecond)
	}
	return touchSession(tx, pv.SessionID, end)
}

func findSession(tx *gorm.DB, id string) (*models.Session, error) {
	if id == "" {
		return nil, nil
	}
	var session models.Session
	err := tx.Where("id = ?", id).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return &session, nil
}

// insertForm stores a submission with the attribution snapshot of its
// session as it is at submit time.
func insertForm(tx *gorm.DB, p *FormPayload, beacon *models.IngestedBeacon) error {
	submittedAt := p.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = beacon.CreatedAt
	}

	form := models.FormSubmission{
		SessionID:         strings.TrimSpace(p.SessionID),
		SubmittedAt:       submittedAt.UTC(),
		FormType:          strings.TrimSpace(p.FormType),
		Name:              strings.TrimSpace(p.Name),
		Email:             strings.ToLower(strings.TrimSpace(p.Email)),
		InquiryType:       strings.TrimSpace(p.InquiryType),
		TimeToSubmitMs:    p.TimeToSubmitMs,
		PagesBeforeSubmit: p.PagesBeforeSubmit,
		Channel:           channels.Unknown,
	}

	session, err := findSession(tx, form.SessionID)
	if err != nil {
		return err
	}
	if session != nil {
		utm := channels.NormalizeUTM(session.UTM())
		form.Channel = channels.Classify(channels.ReferrerHost(session.ReferrerHost), utm, channels.NormalizeClickIDs(session.ClickIDs()))
		form.UTMSource = utm.Source
		form.UTMMedium = utm.Medium
		form.UTMCampaign = utm.Campaign
		form.UTMContent = utm.Content
		form.UTMTerm = utm.Term
		form.Referrer = session.Referrer
		form.Device = session.Device
		form.Country = session.Country

		if form.PagesBeforeSubmit == nil {
			var pages int64
			if err := tx.Model(&models.PageView{}).
				Where("session_id = ? AND started_at <= ?", session.ID, form.SubmittedAt).
				Distinct("path").Count(&pages).Error; err == nil {
				n := int(pages)
				form.PagesBeforeSubmit = &n
			}
		}
		if form.TimeToSubmitMs == nil && form.SubmittedAt.After(session.StartedAt) {
			ms := form.SubmittedAt.Sub(session.StartedAt).Milliseconds()
			form.TimeToSubmitMs = &ms
		}
	}

	if err := tx.Create(&form).Error; err != nil {
		return fmt.Errorf("inserting form submission: %w", err)
	}
	if session != nil {
		return touchSession(tx, session.ID, form.SubmittedAt)
	}
	return nil
}

// insertLead stores a lead, taking its session's channel when the client
// did not send one. The id is the client's, or derived from email, session
// and capture time, so a retried or replayed beacon stores nothing new.
func insertLead(tx *gorm.DB, p *LeadPayload, beacon *models.IngestedBeacon) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = beacon.CreatedAt
	}

	lead := models.Lead{
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		Source:    strings.TrimSpace(p.Source),
		Channel:   strings.TrimSpace(p.Channel),
		SessionID: strings.TrimSpace(p.SessionID),
		CreatedAt: createdAt.UTC(),
	}
	if id, err := uuid.Parse(strings.TrimSpace(p.ID)); err == nil {
		lead.ID = id.String()
	} else {
		key := lead.Email + "|" + lead.SessionID + "|" + lead.CreatedAt.Format(time.RFC3339Nano)
		lead.ID = uuid.NewSHA1(leadNamespace, []byte(key)).String()
	}

	if lead.Channel == "" {
		session, err := findSession(tx, lead.SessionID)
		if err != nil {
			return err
		}
		if session != nil {
			lead.Channel = channels.Classify(
				channels.ReferrerHost(session.ReferrerHost),
				channels.NormalizeUTM(session.UTM()),
				channels.NormalizeClickIDs(session.ClickIDs()))
		}
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lead).Error; err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}
