package archive

import (
	"context"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/ghd/internal/domain/release"
)

// symlinkTargetLimit bounds the size of a symlink target stored in a zip entry.
const symlinkTargetLimit = 4096

func extractZip(ctx context.Context, archivePath string, u *unpacker) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return openError(archivePath, err)
	}

	defer reader.Close()

	for _, file := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractZipEntry(archivePath, u, file); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(archivePath string, u *unpacker, file *zip.File) error {
	name, ok, err := u.entryName(file.Name)
	if err != nil || !ok {
		return err
	}

	mode := file.Mode()

	switch {
	case mode.IsDir() || strings.HasSuffix(file.Name, "/"):
		return u.writeDir(name, mode)
	case mode&fs.ModeSymlink != 0:
		linkname, err := readZipEntry(archivePath, file, symlinkTargetLimit)
		if err != nil {
			return err
		}

		return u.writeSymlink(name, linkname)
	case mode.IsRegular():
		src, err := file.Open()
		if err != nil {
			return &release.ArchiveError{Path: archivePath, Reason: "cannot open entry " + file.Name, Err: err}
		}

		defer src.Close()

		return u.writeFile(name, mode, src)
	default:
		return nil
	}
}

func readZipEntry(archivePath string, file *zip.File, limit int64) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", &release.ArchiveError{Path: archivePath, Reason: "cannot open entry " + file.Name, Err: err}
	}

	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit))
	if err != nil {
		return "", &release.ArchiveError{Path: archivePath, Reason: "cannot read entry " + file.Name, Err: err}
	}

	return string(data), nil
}
