// Package geoip resolves visitor IP addresses to ISO country codes using an
// optional MaxMind GeoLite2 Country database.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"leadlens/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger = slog.Default()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// open loads the database at path. It returns nil when the path is unset or
// the file is missing; lookups then report no country.
func open(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured - country lookup disabled")
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found - country lookup disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// GetGeoDB returns the reader for the configured database, opening it on
// first use. The result is nil when no database is available.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = open(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// Reload reopens the database from path, replacing the current reader.
func Reload(path string) {
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = open(path)
}

// CountryCode returns the upper-case ISO 3166 alpha-2 code for ipAddress,
// or "" when it cannot be resolved.
func CountryCode(ipAddress string) string {
	db := GetGeoDB()
	if db == nil {
		return ""
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		logger.Debug("Failed to parse IP address", slog.String("ip_address", ipAddress))
		return ""
	}

	record, err := db.Country(ip)
	if err != nil {
		logger.Warn("Error looking up country for IP",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return ""
	}

	code := record.Country.IsoCode
	if code == "" || code == "--" {
		return ""
	}
	return strings.ToUpper(code)
}
