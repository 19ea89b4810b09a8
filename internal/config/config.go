package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CalibreLibraryDir string `toml:"calibre_library_dir"`
	StateDir          string `toml:"state_dir"`
	ArtifactDir       string `toml:"artifact_dir"`
	TempDir           string `toml:"temp_dir"`
	LogDir            string `toml:"log_dir"`
	APIBind           string `toml:"api_bind"`
}

// Reconcile contains configuration for catalog reconciliation.
type Reconcile struct {
	IntervalMinutes       int  `toml:"interval_minutes"`
	TombstoneGraceMinutes int  `toml:"tombstone_grace_minutes"`
	WatchLibrary          bool `toml:"watch_library"`
	WatchDebounceSeconds  int  `toml:"watch_debounce_seconds"`
}

// Artifacts contains configuration for derived artifact retention.
type Artifacts struct {
	RetentionDays          int `toml:"retention_days"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// Conversion contains configuration for the conversion backends.
type Conversion struct {
	MaxConcurrent      int    `toml:"max_concurrent"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	EbookConvertBinary string `toml:"ebook_convert_binary"`
	KepubifyBinary     string `toml:"kepubify_binary"`
	UnrarBinary        string `toml:"unrar_binary"`
	SevenZipBinary     string `toml:"sevenzip_binary"`
	PdfToTextBinary    string `toml:"pdftotext_binary"`
	ThumbnailWidth     int    `toml:"thumbnail_width"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Reconcile      bool   `toml:"reconcile"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Bindery.
//
// Configuration sections by subsystem:
//   - Paths: Calibre library location, state/artifact/log directories, API bind
//   - Reconcile: catalog reconciliation cadence and library watching
//   - Artifacts: derived artifact retention and cleanup cadence
//   - Conversion: backend binaries, concurrency bound, timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Reconcile     Reconcile     `toml:"reconcile"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Conversion    Conversion    `toml:"conversion"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bindery/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/bindery/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bindery.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.ArtifactDir, c.Paths.TempDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MetadataDBPath returns the path to the Calibre metadata database.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Paths.CalibreLibraryDir, "metadata.db")
}

// CatalogDBPath returns the path to the cached catalog database.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.StateDir, "catalog.db")
}

// ArtifactDBPath returns the path to the artifact index database.
func (c *Config) ArtifactDBPath() string {
	return filepath.Join(c.Paths.StateDir, "artifacts.db")
}

// WriteSample writes the embedded sample configuration to the given path.
// It refuses to overwrite an existing file unless force is set.
func WriteSample(path string, force bool) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil && !force {
		return expanded, fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
