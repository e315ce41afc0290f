package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leadlens/internal/pkg/geoip"
)

const (
	// GeoLiteUpdateInterval matches MaxMind's weekly release cadence.
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// MaxMindDownloadURL is the GeoLite2 Country download endpoint.
	MaxMindDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=%s&suffix=tar.gz"
)

// GeoLiteUpdaterJob keeps the country database used for session geolocation fresh.
type GeoLiteUpdaterJob struct {
	logger      *slog.Logger
	path        string
	licenseKey  string
	downloadURL string
	client      *http.Client
}

// NewGeoLiteUpdaterJob creates an updater writing to path. Without a license
// key the job does nothing.
func NewGeoLiteUpdaterJob(logger *slog.Logger, path, licenseKey string) *GeoLiteUpdaterJob {
	if path == "" {
		path = filepath.Join("storage", "GeoLite2-Country.mmdb")
	}
	return &GeoLiteUpdaterJob{
		logger:      logger,
		path:        path,
		licenseKey:  licenseKey,
		downloadURL: MaxMindDownloadURL,
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// Run downloads a new database when the current file is older than a week.
func (j *GeoLiteUpdaterJob) Run() error {
	if j.licenseKey == "" {
		j.logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	lastUpdate := j.lastUpdateTime()
	if time.Since(lastUpdate) < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", lastUpdate),
			slog.Duration("age", time.Since(lastUpdate)))
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.Time("last_update", lastUpdate))

	if err := j.downloadAndUpdate(context.Background()); err != nil {
		j.logger.Error("Failed to update GeoLite database", slog.Any("error", err))
		return err
	}

	geoip.Reload(j.path)
	j.logger.Info("GeoLite database updated successfully", slog.String("path", j.path))
	return nil
}

// lastUpdateTime is the database file's modification time, zero when missing.
func (j *GeoLiteUpdaterJob) lastUpdateTime() time.Time {
	info, err := os.Stat(j.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(j.downloadURL, j.licenseKey), nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "geolite-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return extractMMDB(tempFile, j.path)
}

// extractMMDB copies the first .mmdb entry of a tar.gz archive to destPath,
// replacing it atomically.
func extractMMDB(archive io.Reader, destPath string) error {
	gzr, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if !strings.HasSuffix(header.Name, ".mmdb") {
			continue
		}

		tmpPath := destPath + ".tmp"
		outFile, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to extract file: %w", err)
		}
		if err := outFile.Close(); err != nil {
			os.Remove(tmpPath)
			return err
		}
		return os.Rename(tmpPath, destPath)
	}

	return fmt.Errorf("no .mmdb file found in archive")
}
