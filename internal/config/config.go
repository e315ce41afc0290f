// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Analytics store drivers. "sqlite" reads from the application database,
// "postgres" reads from an external Postgres (e.g. Supabase) instance.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// File paths
	DatabasePath    string `mapstructure:"storagepath"`
	DatabaseName    string `mapstructure:"-"` // Derived from other settings
	GeoDBPath       string `mapstructure:"geodbpath"`
	GeoLicenseKey   string `mapstructure:"geolicensekey"`
	PublicDirectory string `mapstructure:"publicdir"`
	AssetsPrefix    string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Analytics store settings
	StoreDriver string `mapstructure:"storedriver"`
	StoreDSN    string `mapstructure:"storedsn"`

	// Aggregation settings
	AnalyticsWindowDays int `mapstructure:"analyticswindowdays"`
	AnalyticsPageSize   int `mapstructure:"analyticspagesize"`
	AnalyticsMaxPages   int `mapstructure:"analyticsmaxpages"`
	RecentListSize      int `mapstructure:"recentlistsize"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
	BeaconBatchSize    int `mapstructure:"beaconbatchsize"`

	// Data retention settings
	IngestedBeaconsRetentionDays int `mapstructure:"ingestedbeaconsretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "leadlens")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("geolicensekey", "")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("storedriver", StoreDriverSQLite)
		v.SetDefault("storedsn", "")
		v.SetDefault("analyticswindowdays", 30)
		v.SetDefault("analyticspagesize", 1000)
		v.SetDefault("analyticsmaxpages", 200)
		v.SetDefault("recentlistsize", 20)
		v.SetDefault("jobintervalseconds", 30)
		v.SetDefault("beaconbatchsize", 200)
		v.SetDefault("ingestedbeaconsretentiondays", 30)

		v.BindEnv("appname", "LEADLENS_APP_NAME")
		v.BindEnv("appport", "LEADLENS_APP_PORT")
		v.BindEnv("environment", "LEADLENS_ENV")
		v.BindEnv("loglevel", "LEADLENS_LOG_LEVEL")
		v.BindEnv("privatekey", "LEADLENS_PRIVATE_KEY")
		v.BindEnv("storagepath", "LEADLENS_STORAGE_PATH")
		v.BindEnv("geodbpath", "LEADLENS_GEO_DB_PATH")
		v.BindEnv("geolicensekey", "LEADLENS_MAXMIND_LICENSE_KEY")
		v.BindEnv("publicdir", "LEADLENS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LEADLENS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "LEADLENS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LEADLENS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LEADLENS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LEADLENS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "LEADLENS_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "LEADLENS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LEADLENS_DB_MAX_IDLE_CONNS")
		v.BindEnv("storedriver", "LEADLENS_STORE_DRIVER")
		v.BindEnv("storedsn", "LEADLENS_STORE_DSN")
		v.BindEnv("analyticswindowdays", "LEADLENS_ANALYTICS_WINDOW_DAYS")
		v.BindEnv("analyticspagesize", "LEADLENS_ANALYTICS_PAGE_SIZE")
		v.BindEnv("analyticsmaxpages", "LEADLENS_ANALYTICS_MAX_PAGES")
		v.BindEnv("recentlistsize", "LEADLENS_RECENT_LIST_SIZE")
		v.BindEnv("jobintervalseconds", "LEADLENS_JOB_INTERVAL_SECONDS")
		v.BindEnv("beaconbatchsize", "LEADLENS_BEACON_BATCH_SIZE")
		v.BindEnv("ingestedbeaconsretentiondays", "LEADLENS_INGESTED_BEACONS_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique LEADLENS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	validStoreDrivers := map[string]bool{
		StoreDriverSQLite:   true,
		StoreDriverPostgres: true,
	}
	if !validStoreDrivers[c.StoreDriver] {
		return fmt.Errorf("invalid store driver: %s", c.StoreDriver)
	}

	// A missing postgres DSN is not fatal: the dashboard reports the
	// analytics store as unavailable instead.
	if c.AnalyticsWindowDays <= 0 {
		return fmt.Errorf("analytics window must be positive, got %d", c.AnalyticsWindowDays)
	}
	if c.AnalyticsPageSize <= 0 || c.AnalyticsMaxPages <= 0 {
		return fmt.Errorf("analytics pagination must be positive (page size %d, max pages %d)",
			c.AnalyticsPageSize, c.AnalyticsMaxPages)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// UsesExternalStore reports whether analytics are read from a separate Postgres store.
func (c *Config) UsesExternalStore() bool {
	return c.StoreDriver == StoreDriverPostgres
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.AssetsPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test uses a single connection; otherwise 10 so dashboard sub-queries can run concurrently.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
