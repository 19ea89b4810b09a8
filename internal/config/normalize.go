package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReconcile()
	c.normalizeArtifacts()
	c.normalizeConversion()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CalibreLibraryDir, err = expandPath(c.Paths.CalibreLibraryDir); err != nil {
		return fmt.Errorf("paths.calibre_library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = defaultArtifactDir
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeReconcile() {
	if c.Reconcile.IntervalMinutes <= 0 {
		c.Reconcile.IntervalMinutes = defaultReconcileInterval
	}
	if c.Reconcile.TombstoneGraceMinutes <= 0 {
		c.Reconcile.TombstoneGraceMinutes = defaultTombstoneGraceMinutes
	}
	if c.Reconcile.WatchDebounceSeconds <= 0 {
		c.Reconcile.WatchDebounceSeconds = defaultWatchDebounceSeconds
	}
}

func (c *Config) normalizeArtifacts() {
	if c.Artifacts.RetentionDays <= 0 {
		c.Artifacts.RetentionDays = defaultRetentionDays
	}
	if c.Artifacts.CleanupIntervalMinutes <= 0 {
		c.Artifacts.CleanupIntervalMinutes = defaultCleanupIntervalMinutes
	}
}

func (c *Config) normalizeConversion() {
	if c.Conversion.MaxConcurrent <= 0 {
		c.Conversion.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		c.Conversion.TimeoutSeconds = defaultConversionTimeout
	}
	if strings.TrimSpace(c.Conversion.EbookConvertBinary) == "" {
		c.Conversion.EbookConvertBinary = defaultEbookConvertBinary
	}
	if strings.TrimSpace(c.Conversion.KepubifyBinary) == "" {
		c.Conversion.KepubifyBinary = defaultKepubifyBinary
	}
	if strings.TrimSpace(c.Conversion.UnrarBinary) == "" {
		c.Conversion.UnrarBinary = defaultUnrarBinary
	}
	if strings.TrimSpace(c.Conversion.SevenZipBinary) == "" {
		c.Conversion.SevenZipBinary = defaultSevenZipBinary
	}
	if strings.TrimSpace(c.Conversion.PdfToTextBinary) == "" {
		c.Conversion.PdfToTextBinary = defaultPdfToTextBinary
	}
	if c.Conversion.ThumbnailWidth <= 0 {
		c.Conversion.ThumbnailWidth = defaultThumbnailWidth
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BINDERY_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
