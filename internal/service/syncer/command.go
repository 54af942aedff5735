package syncer

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/oshokin/ghd/internal/archive"
	"github.com/oshokin/ghd/internal/config"
	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/github"
	"github.com/oshokin/ghd/internal/logger"
	"github.com/oshokin/ghd/internal/promote"
	"github.com/oshokin/ghd/internal/repository/history"
)

// Options are inputs accepted by the sync entry point.
type Options struct {
	// ConfigPath is the optional path to the settings file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Home is the directory defaults are derived from. Empty means the user's home.
	Home string
}

// Run loads settings, syncs every configured package and records the outcomes.
// Package failures are logged and recorded but do not make Run fail.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sync")

	cfg, err := LoadSettings(opts.ConfigPath, opts.Home, opts.LogLevel)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = logger.WithKV(ctx, "run_id", runID)

	pkgs := Packages(cfg)
	if len(pkgs) == 0 {
		logger.Warn(ctx, "No packages configured")
		return nil
	}

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}

	recorder := openHistory(ctx, cfg.HistoryPath)
	if recorder != nil {
		defer recorder.Close()
	}

	s := New(client, archive.NewExtractor(), promote.NewPromoter(), Settings{
		DownloadDir: cfg.DownloadDir,
		InstallDir:  cfg.InstallDir,
		Concurrency: cfg.Concurrency,
	})

	logger.InfoKV(ctx, "Sync started", "packages", len(pkgs), "concurrency", cfg.Concurrency)

	outcomes := s.SyncAll(ctx, pkgs)

	var failed int

	for _, outcome := range outcomes {
		report(ctx, outcome)

		if outcome.Err != nil {
			failed++
		}

		if recorder != nil {
			if err = recorder.Record(ctx, historyEntry(runID, outcome)); err != nil {
				logger.WarnKV(ctx, "Unable to record sync history", "package", outcome.Package.String(), "error", err)
			}
		}
	}

	logger.InfoKV(ctx, "Sync finished", "succeeded", len(outcomes)-failed, "failed", failed)

	return nil
}

// LoadSettings reads the configuration and applies logging settings.
// levelOverride wins over the configured level.
func LoadSettings(configPath, home, levelOverride string) (*config.Config, error) {
	if home == "" {
		var err error

		home, err = os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
	}

	cfg, err := config.Load(configPath, home)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if levelOverride != "" {
		level = levelOverride
	}

	err = logger.Setup(logger.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewClient builds the GitHub client described by cfg.
func NewClient(cfg *config.Config) (*github.APIClient, error) {
	opts := []github.Option{
		github.WithBaseURL(cfg.APIBaseURL),
		github.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		github.WithMaxDownloadBytes(cfg.MaxDownloadBytes),
		github.WithFailOnTruncation(cfg.FailOnTruncatedDownload),
	}

	if cfg.APIRateLimit.Enabled() {
		limiter := rate.NewLimiter(rate.Limit(cfg.APIRateLimit.RequestsPerSecond), cfg.APIRateLimit.Burst)
		opts = append(opts, github.WithRateLimiter(limiter))
	}

	if cfg.ShowProgress {
		opts = append(opts, github.WithProgress(os.Stderr))
	}

	return github.New(cfg.GitHubToken, opts...)
}

// Packages converts configured packages into domain packages.
func Packages(cfg *config.Config) []release.Package {
	pkgs := make([]release.Package, 0, len(cfg.Packages))

	for _, p := range cfg.Packages {
		pkgs = append(pkgs, release.Package{Owner: p.Owner, Repo: p.Repo, AssetSuffix: p.AssetSuffix})
	}

	return pkgs
}

// openHistory opens the history database. The sync goes on without it on failure.
func openHistory(ctx context.Context, path string) history.Repository {
	repo, err := history.Open(ctx, path)
	if err != nil {
		logger.WarnKV(ctx, "Sync history is unavailable", "path", path, "error", err)
		return nil
	}

	return repo
}

func report(ctx context.Context, outcome Outcome) {
	pkg := outcome.Package.String()

	if outcome.Err != nil {
		logger.ErrorKV(ctx, "Package sync failed",
			"package", pkg,
			"kind", release.KindOf(outcome.Err).String(),
			"error", outcome.Err)

		return
	}

	result := outcome.Result
	logger.InfoKV(ctx, "Package synced",
		"package", pkg,
		"tag", result.Tag,
		"asset", result.Asset,
		"installed", result.Installed,
		"truncated", result.Truncated,
		"duration", result.Duration)
}

func historyEntry(runID string, outcome Outcome) *history.Entry {
	entry := &history.Entry{
		RunID:   runID,
		Package: outcome.Package.String(),
	}

	if result := outcome.Result; result != nil {
		entry.Tag = result.Tag
		entry.Asset = result.Asset
		entry.Installed = result.Installed
		entry.Truncated = result.Truncated
		entry.StartedAt = result.StartedAt
		entry.Duration = result.Duration
	}

	if outcome.Err != nil {
		entry.ErrorKind = release.KindOf(outcome.Err).String()
		entry.ErrorMessage = outcome.Err.Error()
	}

	return entry
}
