package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/logger"
)

const (
	dirMode = 0o755
	// ownerRWX keeps unpacked directories writable and traversable while entries are added.
	ownerRWX = 0o700
)

// Extractor unpacks archives next to themselves.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks archivePath into DestinationDir(archivePath), replacing any
// previous content there, flattens a single wrapping directory, and returns
// the destination.
func (e *Extractor) Extract(ctx context.Context, archivePath string) (string, error) {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return "", err
	}

	dest := DestinationDir(archivePath)

	logger.DebugKV(ctx, "Extracting archive", "archive", archivePath, "format", format.String(), "dest", dest)

	if err = os.RemoveAll(dest); err != nil {
		return "", &release.IOError{Op: "remove", Path: dest, Err: err}
	}

	if err = os.MkdirAll(dest, dirMode); err != nil {
		return "", &release.IOError{Op: "mkdir", Path: dest, Err: err}
	}

	if err = unpack(ctx, archivePath, dest, format); err != nil {
		return "", err
	}

	flattened, err := Flatten(dest)
	if err != nil {
		return "", err
	}

	if flattened {
		logger.DebugKV(ctx, "Flattened single top-level directory", "dest", dest)
	}

	return dest, nil
}

func unpack(ctx context.Context, archivePath, dest string, format Format) error {
	u, err := newUnpacker(archivePath, dest)
	if err != nil {
		return err
	}

	defer u.Close()

	switch format {
	case FormatZip:
		return extractZip(ctx, archivePath, u)
	case FormatTarGzip, FormatTarXz, FormatTarZstd:
		return extractTar(ctx, archivePath, u, format)
	case FormatUnknown:
		fallthrough
	default:
		return &release.UnsupportedFormatError{Extension: format.String()}
	}
}

// openError classifies a failure to open the archive itself.
func openError(archivePath string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &release.IOError{Op: "open", Path: archivePath, Err: err}
	}

	return &release.ArchiveError{Path: archivePath, Reason: "cannot read archive", Err: err}
}
