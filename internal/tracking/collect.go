package tracking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"leadlens/internal/metrics"
	"leadlens/internal/models"
)

// UnknownUserAgent is stored when a request carries no User-Agent header.
const UnknownUserAgent = "Unknown User Agent"

// CollectBeaconInput defines the input required to queue a beacon.
type CollectBeaconInput struct {
	Kind      models.BeaconKind
	Payload   []byte
	IPAddress string
	UserAgent string
}

// CollectBeacon validates a beacon and stores it in the ingestion queue.
// Processing happens later in ProcessPendingBeacons.
func CollectBeacon(dbManager cartridge.DBManager, logger *slog.Logger, input *CollectBeaconInput) error {
	if input.UserAgent == "" {
		input.UserAgent = UnknownUserAgent
	}

	if _, err := decode(input.Kind, input.Payload); err != nil {
		logger.Debug("Rejected beacon",
			slog.String("kind", string(input.Kind)),
			slog.Any("error", err))
		return err
	}

	beacon := &models.IngestedBeacon{
		Kind:      input.Kind,
		Payload:   models.JSON(input.Payload),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: time.Now().UTC(),
	}

	db := dbManager.GetConnection()
	err := models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(beacon).Error
	})
	if err != nil {
		logger.Error("Failed to store ingested beacon", slog.Any("error", err))
		return fmt.Errorf("failed to store ingested beacon: %w", err)
	}

	metrics.RecordBeaconReceived(string(input.Kind))
	return nil
}
