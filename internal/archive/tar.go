package archive

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/logger"
)

// decompressor wraps r with the decoder of format.
func decompressor(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case FormatTarGzip:
		return gzip.NewReader(r)
	case FormatTarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(xr), nil
	case FormatTarZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return zr.IOReadCloser(), nil
	case FormatZip, FormatUnknown:
		fallthrough
	default:
		return nil, &release.UnsupportedFormatError{Extension: format.String()}
	}
}

func extractTar(ctx context.Context, archivePath string, u *unpacker, format Format) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return openError(archivePath, err)
	}

	defer file.Close()

	stream, err := decompressor(file, format)
	if err != nil {
		return &release.ArchiveError{Path: archivePath, Reason: "cannot open " + format.String() + " stream", Err: err}
	}

	defer stream.Close()

	reader := tar.NewReader(stream)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		header, nextErr := reader.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if nextErr != nil {
			return &release.ArchiveError{Path: archivePath, Reason: "cannot read tar header", Err: nextErr}
		}

		name, ok, nameErr := u.entryName(header.Name)
		if nameErr != nil {
			return nameErr
		}

		if !ok {
			continue
		}

		mode := header.FileInfo().Mode()

		switch header.Typeflag {
		case tar.TypeDir:
			err = u.writeDir(name, mode)
		case tar.TypeReg:
			err = u.writeFile(name, mode, reader)
		case tar.TypeSymlink:
			err = u.writeSymlink(name, header.Linkname)
		case tar.TypeLink:
			err = u.writeHardLink(name, header.Linkname)
		default:
			logger.DebugKV(ctx, "Skipping special tar entry", "name", header.Name, "type", string(header.Typeflag))
		}

		if err != nil {
			return err
		}
	}
}
