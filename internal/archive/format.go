package archive

import (
	"path/filepath"
	"strings"

	"github.com/oshokin/ghd/internal/domain/release"
)

// Format is an archive container and compression pair.
type Format uint8

const (
	// FormatUnknown is never returned together with a nil error.
	FormatUnknown Format = iota
	// FormatZip is a zip archive.
	FormatZip
	// FormatTarGzip is a gzip-compressed tarball.
	FormatTarGzip
	// FormatTarXz is an xz-compressed tarball.
	FormatTarXz
	// FormatTarZstd is a zstd-compressed tarball.
	FormatTarZstd
)

// String returns the name used in logs.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarZstd:
		return "tar.zst"
	case FormatUnknown:
		fallthrough
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from the outermost extension of path.
// Unknown extensions fail with *release.UnsupportedFormatError.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".zip":
		return FormatZip, nil
	case ".gz", ".tgz":
		return FormatTarGzip, nil
	case ".xz", ".txz":
		return FormatTarXz, nil
	case ".zst":
		return FormatTarZstd, nil
	default:
		return FormatUnknown, &release.UnsupportedFormatError{Extension: ext}
	}
}

// DestinationDir returns the directory an archive is unpacked into:
// the archive file name without its outermost extension, in the archive's directory.
func DestinationDir(archivePath string) string {
	base := filepath.Base(archivePath)

	return filepath.Join(filepath.Dir(archivePath), strings.TrimSuffix(base, filepath.Ext(base)))
}
