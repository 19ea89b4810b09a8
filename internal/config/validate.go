package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CalibreLibraryDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/bindery/config.toml"
		}
		return fmt.Errorf("paths.calibre_library_dir is required. Edit %s (create with 'bindery config init')", defaultPath)
	}
	if c.Paths.ArtifactDir == c.Paths.CalibreLibraryDir {
		return errors.New("paths.artifact_dir must not be the Calibre library directory")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q is not a valid host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.IntervalMinutes <= 0 {
		return errors.New("reconcile.interval_minutes must be positive")
	}
	if c.Reconcile.TombstoneGraceMinutes <= 0 {
		return errors.New("reconcile.tombstone_grace_minutes must be positive")
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.MaxConcurrent <= 0 {
		return errors.New("conversion.max_concurrent must be positive")
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		return errors.New("conversion.timeout_seconds must be positive")
	}
	if c.Conversion.ThumbnailWidth < 16 || c.Conversion.ThumbnailWidth > 4096 {
		return errors.New("conversion.thumbnail_width must be between 16 and 4096")
	}
	return nil
}
