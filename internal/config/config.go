package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Config holds every setting of a ghd run.
type Config struct {
	// GitHubToken is the bearer credential sent to the API.
	GitHubToken string `yaml:"github_token" toml:"github_token"`
	// DownloadDir receives downloaded assets and their extracted trees.
	DownloadDir string `yaml:"download_dir" toml:"download_dir"`
	// InstallDir receives promoted executables. It must already exist.
	InstallDir string `yaml:"install_dir" toml:"install_dir"`
	// HistoryPath is the SQLite database with sync outcomes.
	HistoryPath string `yaml:"history_path" toml:"history_path"`
	// APIBaseURL is the GitHub API endpoint.
	APIBaseURL string `yaml:"api_base_url" toml:"api_base_url"`
	// Concurrency is the number of packages synced at once.
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	// MaxDownloadBytes caps every asset download.
	MaxDownloadBytes int64 `yaml:"max_download_bytes" toml:"max_download_bytes"`
	// FailOnTruncatedDownload turns a download cut by the cap into an error.
	FailOnTruncatedDownload bool `yaml:"fail_on_truncated_download" toml:"fail_on_truncated_download"`
	// ShowProgress renders download progress bars on stderr.
	ShowProgress bool `yaml:"show_progress" toml:"show_progress"`
	// APIRateLimit throttles release metadata requests.
	APIRateLimit RateLimit `yaml:"api_rate_limit" toml:"api_rate_limit"`
	// HTTPTimeout bounds every HTTP request. Zero means no timeout.
	HTTPTimeout time.Duration `yaml:"http_timeout" toml:"http_timeout"`
	// Log configures the logger.
	Log Log `yaml:"log" toml:"log"`
	// Packages lists the tracked repositories.
	Packages []Package `yaml:"packages" toml:"packages"`
}

// RateLimit configures a token bucket. Zero RequestsPerSecond disables it.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// Enabled reports whether requests are throttled.
func (r RateLimit) Enabled() bool {
	return r.RequestsPerSecond > 0
}

// Log configures console level and the optional rotating log file.
type Log struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Package is one tracked repository.
type Package struct {
	Owner       string `yaml:"owner" toml:"owner"`
	Repo        string `yaml:"repo" toml:"repo"`
	AssetSuffix string `yaml:"asset_suffix" toml:"asset_suffix"`
}

const (
	// DefaultAPIBaseURL is the public GitHub API.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultConcurrency syncs packages one after another.
	DefaultConcurrency = 1
	// DefaultMaxDownloadBytes is the download cap.
	DefaultMaxDownloadBytes int64 = 10_000_000
	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"
	// DefaultBurst is used for an enabled rate limit without a burst.
	DefaultBurst = 1
)

var (
	// ErrConfigIsNotSet is returned when a nil configuration is provided.
	ErrConfigIsNotSet = errors.New("configuration is not set")
	// ErrTokenRequired is returned when github_token is missing.
	ErrTokenRequired = errors.New("github_token must be provided")
	// ErrInvalidPackage is returned for an incomplete package entry.
	ErrInvalidPackage = errors.New("invalid package")
	// ErrInvalidValue is returned for an out of range setting.
	ErrInvalidValue = errors.New("invalid value")
)

// ApplyDefaults fills unset fields and expands "~" in paths against home.
func ApplyDefaults(cfg *Config, home string) {
	if cfg == nil {
		return
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(home, "Downloads")
	}

	if cfg.InstallDir == "" {
		cfg.InstallDir = filepath.Join(home, ".local", "bin")
	}

	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(home, ".local", "state", "ghd", "history.db")
	}

	cfg.DownloadDir = ExpandHome(cfg.DownloadDir, home)
	cfg.InstallDir = ExpandHome(cfg.InstallDir, home)
	cfg.HistoryPath = ExpandHome(cfg.HistoryPath, home)
	cfg.Log.File = ExpandHome(cfg.Log.File, home)

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}

	if cfg.APIRateLimit.Enabled() && cfg.APIRateLimit.Burst <= 0 {
		cfg.APIRateLimit.Burst = DefaultBurst
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(path, home string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	default:
		return path
	}
}

// Validate checks required fields and value ranges.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if strings.TrimSpace(cfg.GitHubToken) == "" {
		return ErrTokenRequired
	}

	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("%w: api_base_url: %w", ErrInvalidValue, err)
	}

	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidValue)
	}

	if cfg.MaxDownloadBytes < 1 {
		return fmt.Errorf("%w: max_download_bytes must be positive", ErrInvalidValue)
	}

	if cfg.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http_timeout must not be negative", ErrInvalidValue)
	}

	if cfg.APIRateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: api_rate_limit.requests_per_second must not be negative", ErrInvalidValue)
	}

	for i, pkg := range cfg.Packages {
		if pkg.Owner == "" || pkg.Repo == "" || pkg.AssetSuffix == "" {
			return fmt.Errorf("%w #%d: owner, repo and asset_suffix are required", ErrInvalidPackage, i)
		}
	}

	return nil
}
