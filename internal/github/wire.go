package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/ghd/internal/domain/release"
)

var (
	errMissingTag       = errors.New("release has no tag name")
	errMissingAssetName = errors.New("asset has no name")
	errBadAssetName     = errors.New("asset name is not a plain file name")
	errBadDownloadURL   = errors.New("asset download url is not absolute")
	errNegativeSize     = errors.New("asset size is negative")
)

// releaseResponse is the subset of the GitHub release object ghd reads.
type releaseResponse struct {
	TagName     string          `json:"tag_name"`
	PublishedAt *time.Time      `json:"published_at"`
	Assets      []assetResponse `json:"assets"`
}

// assetResponse is the subset of the GitHub release asset object ghd reads.
type assetResponse struct {
	Name               string    `json:"name"`
	BrowserDownloadURL string    `json:"browser_download_url"`
	Size               int64     `json:"size"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (r *releaseResponse) toDomain() (*release.Release, error) {
	if r.TagName == "" {
		return nil, errMissingTag
	}

	assets := make([]release.Asset, 0, len(r.Assets))

	for i, a := range r.Assets {
		asset, err := a.toDomain()
		if err != nil {
			return nil, fmt.Errorf("asset #%d: %w", i, err)
		}

		assets = append(assets, asset)
	}

	var publishedAt time.Time
	if r.PublishedAt != nil {
		publishedAt = *r.PublishedAt
	}

	return release.NewRelease(r.TagName, publishedAt, assets), nil
}

func (a *assetResponse) toDomain() (release.Asset, error) {
	if a.Name == "" {
		return release.Asset{}, errMissingAssetName
	}

	// The name becomes a path below the download directory.
	if a.Name == "." || a.Name == ".." || strings.ContainsAny(a.Name, `/\`) {
		return release.Asset{}, fmt.Errorf("%w: %q", errBadAssetName, a.Name)
	}

	u, err := url.Parse(a.BrowserDownloadURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return release.Asset{}, fmt.Errorf("%w: %q (%s)", errBadDownloadURL, a.BrowserDownloadURL, a.Name)
	}

	if a.Size < 0 {
		return release.Asset{}, fmt.Errorf("%w: %s", errNegativeSize, a.Name)
	}

	return release.Asset{
		Name:        a.Name,
		DownloadURL: a.BrowserDownloadURL,
		SizeBytes:   uint64(a.Size),
		UpdatedAt:   a.UpdatedAt,
	}, nil
}
