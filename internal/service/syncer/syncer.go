package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/github"
	"github.com/oshokin/ghd/internal/logger"
)

// Extractor unpacks a downloaded archive and returns the extracted directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath string) (string, error)
}

// Promoter installs executables from an extracted directory.
type Promoter interface {
	PromoteExecutables(ctx context.Context, extractedDir, installDir string) ([]string, error)
}

// Settings are the filesystem and scheduling parameters of a Syncer.
type Settings struct {
	// DownloadDir receives assets and extracted trees.
	DownloadDir string
	// InstallDir receives promoted executables.
	InstallDir string
	// Concurrency is the maximum number of pipelines running at once.
	Concurrency int
}

// Result describes what a pipeline did. Fields of stages that did not run stay empty.
type Result struct {
	Package      release.Package
	Tag          string
	Asset        string
	ArchivePath  string
	ExtractedDir string
	Installed    []string
	Truncated    bool
	StartedAt    time.Time
	Duration     time.Duration
}

// Outcome pairs a package with the result and error of its pipeline.
type Outcome struct {
	Package release.Package
	Result  *Result
	Err     error
}

// Syncer wires the release client, extractor and promoter into a pipeline.
type Syncer struct {
	client    github.Client
	extractor Extractor
	promoter  Promoter
	settings  Settings
}

// New creates a Syncer. A non-positive concurrency syncs sequentially.
func New(client github.Client, extractor Extractor, promoter Promoter, settings Settings) *Syncer {
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}

	return &Syncer{
		client:    client,
		extractor: extractor,
		promoter:  promoter,
		settings:  settings,
	}
}

// Sync runs the pipeline for one package and stops at the first failing stage.
// The returned Result is never nil.
func (s *Syncer) Sync(ctx context.Context, pkg release.Package) (*Result, error) {
	result := &Result{Package: pkg, StartedAt: time.Now()}

	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()

	ctx = logger.WithKV(ctx, "package", pkg.String())

	rel, err := s.client.GetLatestRelease(ctx, pkg.Owner, pkg.Repo)
	if err != nil {
		return result, fmt.Errorf("get latest release: %w", err)
	}

	result.Tag = rel.Tag

	asset, err := release.SelectAsset(rel.Assets(), pkg.AssetSuffix)
	if err != nil {
		return result, fmt.Errorf("select asset of %s: %w", rel.Tag, err)
	}

	result.Asset = asset.Name

	logger.InfoKV(ctx, "Found release asset", "tag", rel.Tag, "asset", asset.Name)

	download, err := s.client.DownloadAsset(ctx, asset, filepath.Join(s.settings.DownloadDir, asset.Name))
	if err != nil {
		return result, fmt.Errorf("download %s: %w", asset.Name, err)
	}

	result.ArchivePath = download.Path
	result.Truncated = download.Truncated

	extracted, err := s.extractor.Extract(ctx, download.Path)
	if err != nil {
		return result, fmt.Errorf("extract %s: %w", asset.Name, err)
	}

	result.ExtractedDir = extracted

	installed, err := s.promoter.PromoteExecutables(ctx, extracted, s.settings.InstallDir)
	result.Installed = installed

	if err != nil {
		return result, fmt.Errorf("promote executables: %w", err)
	}

	if len(installed) == 0 {
		logger.WarnKV(ctx, "No top-level executables found", "dir", extracted)
	}

	return result, nil
}

// SyncAll runs Sync for every package, at most Concurrency at once, and
// returns one outcome per package in input order. A failing package never
// stops the others.
func (s *Syncer) SyncAll(ctx context.Context, pkgs []release.Package) []Outcome {
	outcomes := make([]Outcome, len(pkgs))

	var group errgroup.Group

	group.SetLimit(s.settings.Concurrency)

	for i, pkg := range pkgs {
		group.Go(func() error {
			result, err := s.Sync(ctx, pkg)
			outcomes[i] = Outcome{Package: pkg, Result: result, Err: err}

			return nil
		})
	}

	_ = group.Wait()

	return outcomes
}
