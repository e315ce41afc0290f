package models

import (
	"time"

	"leadlens/internal/channels"
)

// Session is one browser visit. Rows are upserted by ID.
type Session struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	StartedAt      time.Time `gorm:"index;not null" json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Referrer       string    `json:"referrer,omitempty"`
	ReferrerHost   string    `gorm:"index" json:"referrer_host,omitempty"`
	Device         string    `json:"device,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	OS             string    `gorm:"column:os" json:"os,omitempty"`
	Country        string    `json:"country,omitempty"`
	LandingPath    string    `json:"landing_path,omitempty"`
	UTMSource      string    `gorm:"column:utm_source" json:"utm_source,omitempty"`
	UTMMedium      string    `gorm:"column:utm_medium" json:"utm_medium,omitempty"`
	UTMCampaign    string    `gorm:"column:utm_campaign;index" json:"utm_campaign,omitempty"`
	UTMContent     string    `gorm:"column:utm_content" json:"utm_content,omitempty"`
	UTMTerm        string    `gorm:"column:utm_term" json:"utm_term,omitempty"`
	GCLID          string    `gorm:"column:gclid" json:"gclid,omitempty"`
	FBCLID         string    `gorm:"column:fbclid" json:"fbclid,omitempty"`
	MSCLKID        string    `gorm:"column:msclkid" json:"msclkid,omitempty"`
	LiFatID        string    `gorm:"column:li_fat_id" json:"li_fat_id,omitempty"`
	TTCLID         string    `gorm:"column:ttclid" json:"ttclid,omitempty"`
	IsBot          bool      `gorm:"index;not null;default:false" json:"is_bot"`
	// Channel is written at ingestion for ad-hoc SQL only. Aggregation
	// always recomputes it from the fields above.
	Channel string `json:"channel,omitempty"`
}

// UTM returns the session's campaign parameters.
func (s Session) UTM() channels.UTM {
	return channels.UTM{
		Source:   s.UTMSource,
		Medium:   s.UTMMedium,
		Campaign: s.UTMCampaign,
		Content:  s.UTMContent,
		Term:     s.UTMTerm,
	}
}

// ClickIDs returns the session's ad click identifiers.
func (s Session) ClickIDs() channels.ClickIDs {
	return channels.ClickIDs{
		GCLID:   s.GCLID,
		FBCLID:  s.FBCLID,
		MSCLKID: s.MSCLKID,
		LiFatID: s.LiFatID,
		TTCLID:  s.TTCLID,
	}
}

// SetUTM copies utm into the session columns.
func (s *Session) SetUTM(utm channels.UTM) {
	s.UTMSource = utm.Source
	s.UTMMedium = utm.Medium
	s.UTMCampaign = utm.Campaign
	s.UTMContent = utm.Content
	s.UTMTerm = utm.Term
}

// SetClickIDs copies ids into the session columns.
func (s *Session) SetClickIDs(ids channels.ClickIDs) {
	s.GCLID = ids.GCLID
	s.FBCLID = ids.FBCLID
	s.MSCLKID = ids.MSCLKID
	s.LiFatID = ids.LiFatID
	s.TTCLID = ids.TTCLID
}

// PageView is one page impression. Duplicates of (SessionID, Path, StartedAt)
// may be stored; readers keep the one with the longest duration.
type PageView struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   string    `gorm:"index;size:64;not null" json:"session_id"`
	Path        string    `gorm:"index;not null" json:"path"`
	StartedAt   time.Time `gorm:"index;not null" json:"started_at"`
	DurationMs  *int64    `json:"duration_ms"`
	ScrollDepth *int      `json:"scroll_depth"`
}

// FormSubmission is one contact or reservation form post together with the
// attribution snapshot of its session at submit time.
type FormSubmission struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID         string    `gorm:"index;size:64" json:"session_id,omitempty"`
	SubmittedAt       time.Time `gorm:"index;not null" json:"submitted_at"`
	FormType          string    `json:"form_type"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	InquiryType       string    `json:"inquiry_type,omitempty"`
	TimeToSubmitMs    *int64    `json:"time_to_submit_ms"`
	PagesBeforeSubmit *int      `json:"pages_before_submit"`
	Channel           string    `json:"channel,omitempty"`
	UTMSource         string    `gorm:"column:utm_source" json:"utm_source,omitempty"`
	UTMMedium         string    `gorm:"column:utm_medium" json:"utm_medium,omitempty"`
	UTMCampaign       string    `gorm:"column:utm_campaign" json:"utm_campaign,omitempty"`
	UTMContent        string    `gorm:"column:utm_content" json:"utm_content,omitempty"`
	UTMTerm           string    `gorm:"column:utm_term" json:"utm_term,omitempty"`
	Referrer          string    `json:"referrer,omitempty"`
	Device            string    `json:"device,omitempty"`
	Country           string    `json:"country,omitempty"`
}

// Lead is one exit-intent email capture. Archived is its only mutable field.
type Lead struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"index;not null" json:"email"`
	Source    string    `json:"source,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	SessionID string    `gorm:"index;size:64" json:"session_id,omitempty"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
	Archived  bool      `gorm:"index;not null;default:false" json:"archived"`
}

// BeaconKind identifies the record type carried by an ingested beacon.
type BeaconKind string

const (
	BeaconSession  BeaconKind = "session"
	BeaconPageView BeaconKind = "pageview"
	BeaconForm     BeaconKind = "form"
	BeaconLead     BeaconKind = "lead"
)

// IngestedBeacon is a raw beacon queued until the processor turns it into records.
type IngestedBeacon struct {
	ID        uint       `gorm:"primaryKey"`
	Kind      BeaconKind `gorm:"index;size:16;not null"`
	Payload   JSON       `gorm:"type:text"`
	IPAddress string
	UserAgent string
	CreatedAt time.Time `gorm:"index"`
	Processed int       `gorm:"index"`
	Error     string
}

// All returns every model for auto-migration of the application database.
func All() []any {
	return append(Records(), &IngestedBeacon{})
}
