package http

import (
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"leadlens/internal/config"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	DBStatus    string    `json:"db_status"`
	StoreStatus string    `json:"store_status"`
}

// HealthIndexAction reports the application database and, when configured,
// the external analytics store.
func HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	storeStatus := "ok"
	if config.GetConfig().UsesExternalStore() {
		if _, err := storeFor(ctx).Now(ctx.UserContext()); err != nil {
			storeStatus = "error"
			ctx.Logger.Warn("Analytics store check failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:      "ok",
		Timestamp:   time.Now(),
		DBStatus:    dbStatus,
		StoreStatus: storeStatus,
	}

	if dbStatus != "ok" || storeStatus != "ok" {
		health.Status = "degraded"
	}

	return ctx.JSON(health)
}
