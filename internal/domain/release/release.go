package release

import (
	"fmt"
	"strings"
	"time"
)

// Package identifies one upstream repository to track.
type Package struct {
	// Owner is the repository owner (user or organization).
	Owner string
	// Repo is the repository name.
	Repo string
	// AssetSuffix picks the release asset whose name ends with it.
	AssetSuffix string
}

// String returns the package in owner/repo form.
func (p Package) String() string {
	return p.Owner + "/" + p.Repo
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	// Name is the file name of the asset.
	Name string
	// DownloadURL is the browser download URL of the asset.
	DownloadURL string
	// SizeBytes is the size announced by the API.
	SizeBytes uint64
	// UpdatedAt is when the asset was last uploaded.
	UpdatedAt time.Time
}

// String returns a short human-readable form of the asset.
func (a Asset) String() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.UpdatedAt.Format(time.RFC3339))
}

// Release is the most recent published release of a repository.
type Release struct {
	// Tag is the git tag the release was cut from.
	Tag string
	// PublishedAt is when the release was published.
	PublishedAt time.Time

	assets []Asset
}

// NewRelease builds a release owning a copy of the given assets.
func NewRelease(tag string, publishedAt time.Time, assets []Asset) *Release {
	return &Release{
		Tag:         tag,
		PublishedAt: publishedAt,
		assets:      append([]Asset(nil), assets...),
	}
}

// Assets returns the release assets in the order the API listed them.
// The returned slice is a copy.
func (r *Release) Assets() []Asset {
	if r == nil {
		return nil
	}

	return append([]Asset(nil), r.assets...)
}

// String returns a short human-readable form of the release.
func (r *Release) String() string {
	return fmt.Sprintf("%s (%s)", r.Tag, r.PublishedAt.Format(time.RFC3339))
}

// SelectAsset returns the first asset whose name ends with suffix.
// Document order breaks ties.
func SelectAsset(assets []Asset, suffix string) (Asset, error) {
	for _, asset := range assets {
		if strings.HasSuffix(asset.Name, suffix) {
			return asset, nil
		}
	}

	return Asset{}, &NoMatchingPatternError{Suffix: suffix}
}
