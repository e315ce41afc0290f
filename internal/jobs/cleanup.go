package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"leadlens/internal/models"
)

// cleanupBatchSize bounds each delete so the queue is never locked for long.
const cleanupBatchSize = 1000

// CleanupJob removes processed beacons from the ingestion queue.
type CleanupJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	batchPause    time.Duration
}

// NewCleanupJob creates a job deleting processed beacons older than
// retentionDays.
func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: retentionDays,
		batchPause:    100 * time.Millisecond,
	}
}

// Run deletes processed beacons older than the retention period. Records
// built from them are kept.
func (j *CleanupJob) Run() error {
	db := j.dbManager.GetConnection()
	cutoffDate := time.Now().UTC().AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting cleanup of old ingested beacons",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	var countToDelete int64
	if err := db.Model(&models.IngestedBeacon{}).
		Where("processed = 1 AND created_at < ?", cutoffDate).
		Count(&countToDelete).Error; err != nil {
		j.logger.Error("Failed to count old ingested beacons", slog.Any("error", err))
		return err
	}

	if countToDelete == 0 {
		j.logger.Debug("No old ingested beacons to clean up")
		return nil
	}

	totalDeleted := int64(0)
	for {
		// SQLite builds without DELETE ... LIMIT, so select the ids first.
		var ids []uint
		if err := db.Model(&models.IngestedBeacon{}).
			Where("processed = 1 AND created_at < ?", cutoffDate).
			Limit(cleanupBatchSize).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}

		result := db.Where("id IN ?", ids).Delete(&models.IngestedBeacon{})
		if result.Error != nil {
			j.logger.Error("Failed to delete old ingested beacons",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}
		totalDeleted += result.RowsAffected

		if len(ids) < cleanupBatchSize {
			break
		}
		time.Sleep(j.batchPause)
	}

	j.logger.Info("Cleaned up old ingested beacons",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", j.retentionDays))
	return nil
}
