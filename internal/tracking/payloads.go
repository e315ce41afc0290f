// Package tracking queues beacons from the marketing site and turns them
// into session, page view, form submission and lead records.
package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadlens/internal/models"
)

// ErrInvalidBeacon is returned for beacons that cannot be queued.
var ErrInvalidBeacon = errors.New("tracking: invalid beacon")

// maxScrollDepth is the upper bound of a scroll percentage.
const maxScrollDepth = 100

// SessionPayload opens or refreshes a session.
type SessionPayload struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Referrer       string    `json:"referrer"`
	// LandingURL is the full first URL; UTM and click ids are read from its query.
	LandingURL  string `json:"landingUrl"`
	LandingPath string `json:"landingPath"`
	Country     string `json:"country"`

	UTMSource   string `json:"utmSource"`
	UTMMedium   string `json:"utmMedium"`
	UTMCampaign string `json:"utmCampaign"`
	UTMContent  string `json:"utmContent"`
	UTMTerm     string `json:"utmTerm"`
	GCLID       string `json:"gclid"`
	FBCLID      string `json:"fbclid"`
	MSCLKID     string `json:"msclkid"`
	LiFatID     string `json:"liFatId"`
	TTCLID      string `json:"ttclid"`
}

func (p *SessionPayload) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("session id is required")
	}
	if len(p.ID) > 64 {
		return errors.New("session id is too long")
	}
	return nil
}

// PageViewPayload records one page impression.
type PageViewPayload struct {
	SessionID   string    `json:"sessionId"`
	Path        string    `json:"path"`
	StartedAt   time.Time `json:"startedAt"`
	DurationMs  *int64    `json:"durationMs"`
	ScrollDepth *int      `json:"scrollDepth"`
}

func (p *PageViewPayload) validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return errors.New("session id is required")
	}
	if strings.TrimSpace(p.Path) == "" {
		return errors.New("path is required")
	}
	if p.DurationMs != nil && *p.DurationMs < 0 {
		return errors.New("duration cannot be negative")
	}
	if p.ScrollDepth != nil && (*p.ScrollDepth < 0 || *p.ScrollDepth > maxScrollDepth) {
		return fmt.Errorf("scroll depth must be between 0 and %d", maxScrollDepth)
	}
	return nil
}

// FormPayload records one contact or reservation form post.
type FormPayload struct {
	SessionID         string    `json:"sessionId"`
	SubmittedAt       time.Time `json:"submittedAt"`
	FormType          string    `json:"formType"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	InquiryType       string    `json:"inquiryType"`
	TimeToSubmitMs    *int64    `json:"timeToSubmitMs"`
	PagesBeforeSubmit *int      `json:"pagesBeforeSubmit"`
}

func (p *FormPayload) validate() error {
	if strings.TrimSpace(p.FormType) == "" {
		return errors.New("form type is required")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return errors.New("email is malformed")
	}
	return nil
}

// LeadPayload records one exit-intent email capture.
type LeadPayload struct {
	// ID is optional; clients that retry should send the same UUID.
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *LeadPayload) validate() error {
	email := strings.TrimSpace(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("a valid email is required")
	}
	if id := strings.TrimSpace(p.ID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return errors.New("id must be a UUID")
		}
	}
	return nil
}

type validator interface {
	validate() error
}

// payloadFor returns an empty payload for kind.
func payloadFor(kind models.BeaconKind) (validator, error) {
	switch kind {
	case models.BeaconSession:
		return &SessionPayload{}, nil
	case models.BeaconPageView:
		return &PageViewPayload{}, nil
	case models.BeaconForm:
		return &FormPayload{}, nil
	case models.BeaconLead:
		return &LeadPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidBeacon, kind)
	}
}

// decode parses raw into the payload type of kind and validates it.
func decode(kind models.BeaconKind, raw []byte) (validator, error) {
	payload, err := payloadFor(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeacon, err)
	}
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeacon, err)
	}
	return payload, nil
}

// KindOf reads the "kind" field of a sendBeacon envelope.
func KindOf(raw []byte) (models.BeaconKind, error) {
	var envelope struct {
		Kind models.BeaconKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBeacon, err)
	}
	if envelope.Kind == "" {
		return "", fmt.Errorf("%w: missing kind", ErrInvalidBeacon)
	}
	return models.BeaconKind(strings.ToLower(string(envelope.Kind))), nil
}
