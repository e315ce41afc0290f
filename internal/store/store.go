// Package store implements analytics.Store on gorm, reading either the
// application's SQLite database or an external Postgres instance.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadlens/internal/analytics"
	"leadlens/internal/config"
	"leadlens/internal/models"
)

// ErrLeadNotFound is returned when archiving or restoring an unknown lead.
var ErrLeadNotFound = errors.New("store: lead not found")

// Store reads analytics records through gorm.
type Store struct {
	db     *gorm.DB
	err    error
	logger *slog.Logger
}

var _ analytics.Store = (*Store)(nil)

// New wraps an open connection.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Open returns the store selected by cfg. With the sqlite driver it reads
// appDB; with postgres it connects to cfg.StoreDSN. A store that cannot be
// opened is still returned and reports the failure from every call, so the
// dashboard can answer with "unavailable" instead of the process exiting.
func Open(cfg *config.Config, appDB *gorm.DB, log *slog.Logger) *Store {
	if !cfg.UsesExternalStore() {
		return New(appDB, log)
	}

	s := New(nil, log)
	if cfg.StoreDSN == "" {
		s.err = fmt.Errorf("postgres DSN is empty: %w", analytics.ErrStoreNotConfigured)
		s.logger.Warn("Analytics store DSN not set; dashboard will report unavailable")
		return s
	}

	db, err := gorm.Open(postgres.Open(cfg.StoreDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		s.err = fmt.Errorf("connecting to analytics store: %w", err)
		s.logger.Error("Failed to connect to analytics store", slog.Any("error", err))
		return s
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.GetMaxOpenConns())
		sqlDB.SetMaxIdleConns(cfg.GetMaxIdleConns())
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	s.db = db
	s.logger.Info("Connected to external analytics store", slog.String("driver", config.StoreDriverPostgres))
	return s
}

var (
	shared     *Store
	sharedOnce sync.Once
)

// Shared returns the process-wide external store, opening it on first use.
// It is only meaningful when cfg selects the postgres driver.
func Shared(cfg *config.Config, log *slog.Logger) *Store {
	sharedOnce.Do(func() {
		shared = Open(cfg, nil, log)
	})
	return shared
}

// For returns the store the application should read: the shared external
// store when configured, otherwise one over appDB.
func For(cfg *config.Config, appDB *gorm.DB, log *slog.Logger) *Store {
	if cfg.UsesExternalStore() {
		return Shared(cfg, log)
	}
	return New(appDB, log)
}

// DB returns the underlying connection, or nil when the store is not open.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.db == nil {
		return nil, analytics.ErrStoreNotConfigured
	}
	return s.db.WithContext(ctx), nil
}

func (s *Store) isPostgres() bool {
	return s.db != nil && s.db.Dialector.Name() == "postgres"
}

// Now reports the database clock on Postgres. SQLite lives in-process, so
// its clock is the local one once the connection answers.
func (s *Store) Now(ctx context.Context) (time.Time, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return time.Time{}, err
	}

	if s.isPostgres() {
		var now time.Time
		if err := db.Raw("SELECT NOW()").Scan(&now).Error; err != nil {
			return time.Time{}, fmt.Errorf("reading store clock: %w", err)
		}
		return now.UTC(), nil
	}

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		return time.Time{}, fmt.Errorf("pinging store: %w", err)
	}
	return time.Now().UTC(), nil
}

// Sessions lists sessions started at or after since with the given bot flag,
// oldest first.
func (s *Store) Sessions(ctx context.Context, since time.Time, bot bool, offset, limit int) ([]models.Session, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.Session
	err = db.Where("started_at >= ? AND is_bot = ?", since, bot).
		Order("started_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountBotSessions counts bot sessions started at or after since.
func (s *Store) CountBotSessions(ctx context.Context, since time.Time) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(&models.Session{}).Where("started_at >= ? AND is_bot = ?", since, true).Count(&n).Error
	return n, err
}

// PageViews lists page views started at or after since, oldest first.
// Duplicates are returned as stored.
func (s *Store) PageViews(ctx context.Context, since time.Time, offset, limit int) ([]models.PageView, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.PageView
	err = db.Where("started_at >= ?", since).
		Order("started_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FormSubmissions lists submissions made at or after since, oldest first.
func (s *Store) FormSubmissions(ctx context.Context, since time.Time, offset, limit int) ([]models.FormSubmission, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.FormSubmission
	err = db.Where("submitted_at >= ?", since).
		Order("submitted_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Leads lists leads created at or after since, archived ones included.
func (s *Store) Leads(ctx context.Context, since time.Time, offset, limit int) ([]models.Lead, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.Lead
	err = db.Where("created_at >= ?", since).
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountLeads counts leads created at or after since.
func (s *Store) CountLeads(ctx context.Context, since time.Time) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(&models.Lead{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

// SetLeadArchived flips the archived flag of one lead.
func (s *Store) SetLeadArchived(ctx context.Context, id string, archived bool) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	var matched int64
	err = models.Write(s.logger, db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Lead{}).Where("id = ?", id).Update("archived", archived)
		matched = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return fmt.Errorf("updating lead %s: %w", id, err)
	}
	if matched == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// Migrate creates the record tables on an external store. The application
// database is migrated by database.DBManager.
func (s *Store) Migrate(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if !s.isPostgres() {
		return nil
	}
	if err := db.AutoMigrate(models.Records()...); err != nil {
		return fmt.Errorf("migrating analytics store: %w", err)
	}
	s.logger.Info("Analytics store migration completed")
	return nil
}
