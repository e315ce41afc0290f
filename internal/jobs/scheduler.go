// Package jobs runs the background work of the server: draining the beacon
// queue, pruning it, and refreshing the GeoLite database.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"leadlens/internal/config"
	"leadlens/internal/store"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	beaconProcessor *BeaconProcessorJob
	cleanupJob      *CleanupJob
	geoLiteUpdater  *GeoLiteUpdaterJob

	beaconTicker  *time.Ticker
	cleanupTicker *time.Ticker
	wg            sync.WaitGroup
}

var _ cartridge.BackgroundWorker = (*Scheduler)(nil)

// NewScheduler wires the jobs. records is the external analytics store, or
// nil when records live in the application database.
func NewScheduler(dbManager cartridge.DBManager, records *store.Store, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		enabled:         true,
		cfg:             cfg,
		beaconProcessor: NewBeaconProcessorJob(dbManager, records, logger, cfg.BeaconBatchSize),
		cleanupJob:      NewCleanupJob(dbManager, logger, cfg.IngestedBeaconsRetentionDays),
		geoLiteUpdater:  NewGeoLiteUpdaterJob(logger, cfg.GeoDBPath, cfg.GeoLicenseKey),
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	interval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.beaconTicker = s.loop("beacon_processor", interval, s.beaconProcessor.Run)
	s.cleanupTicker = s.loop("daily_maintenance", 24*time.Hour, func() error {
		if err := s.geoLiteUpdater.Run(); err != nil {
			s.logger.Warn("GeoLite update failed", slog.Any("error", err))
		}
		return s.cleanupJob.Run()
	})

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning),
		slog.Duration("beacon_interval", interval))

	return nil
}

// loop runs job once immediately and then on every tick until Stop.
func (s *Scheduler) loop(name string, interval time.Duration, job func() error) *time.Ticker {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(name, job)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, job)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()
	return ticker
}

// Stop halts all background jobs and waits for a running job to finish.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.beaconTicker != nil {
		s.beaconTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// ProcessBeacons drains the beacon queue once, outside the ticker.
func (s *Scheduler) ProcessBeacons() error {
	if !s.enabled {
		return nil
	}
	return s.beaconProcessor.Run()
}
