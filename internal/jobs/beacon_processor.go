package jobs

import (
	"errors"
	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"leadlens/internal/models"
	"leadlens/internal/store"
	"leadlens/internal/tracking"
)

// BeaconProcessorJob turns queued beacons into analytics records.
type BeaconProcessorJob struct {
	dbManager cartridge.DBManager
	// records is the external analytics store; nil writes records next to
	// the queue in the application database.
	records   *store.Store
	logger    *slog.Logger
	batchSize int
}

// NewBeaconProcessorJob creates a processor draining up to batchSize beacons
// per query. A nil records store writes into the application database.
func NewBeaconProcessorJob(dbManager cartridge.DBManager, records *store.Store, logger *slog.Logger, batchSize int) *BeaconProcessorJob {
	return &BeaconProcessorJob{
		dbManager: dbManager,
		records:   records,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Run drains the beacon queue.
func (j *BeaconProcessorJob) Run() error {
	var target *gorm.DB
	if j.records != nil {
		target = j.records.DB()
		if target == nil {
			j.logger.Warn("Analytics store unavailable - beacons will remain queued. " +
				"Check LEADLENS_STORE_DSN")
			return nil
		}
	}

	db := j.dbManager.GetConnection()

	var pending int64
	if err := db.Model(&models.IngestedBeacon{}).Where("processed = 0").Count(&pending).Error; err != nil {
		j.logger.Error("Failed to count queued beacons", slog.Any("error", err))
		return err
	}
	if pending == 0 {
		j.logger.Debug("No queued beacons")
		return nil
	}

	j.logger.Info("Found queued beacons", slog.Int64("count", pending))

	result, err := tracking.ProcessPendingBeacons(j.dbManager, target, j.logger, j.batchSize)
	if errors.Is(err, tracking.ErrRecordsUnavailable) {
		j.logger.Warn("Analytics store unreachable - beacons will remain queued",
			slog.Int("processed", result.Processed),
			slog.Any("error", err))
		return nil
	}
	if err != nil {
		j.logger.Error("Failed to process beacons", slog.Any("error", err))
		return err
	}

	j.logger.Info("Beacons processed",
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Int64("remaining", pending-int64(result.Processed+result.Failed)))
	return nil
}
