package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/ghd/internal/domain/release"
)

var (
	errEscapesDestination = errors.New("entry escapes destination")
	errAbsolutePath       = errors.New("entry path is absolute")
)

// unpacker writes archive entries below a destination directory.
// All writes go through an os.Root, so symlinks created by earlier entries
// cannot redirect later ones outside the destination.
type unpacker struct {
	archivePath string
	// dest is the destination with symlinks resolved.
	dest string
	root *os.Root
}

func newUnpacker(archivePath, dest string) (*unpacker, error) {
	resolved, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, &release.IOError{Op: "resolve", Path: dest, Err: err}
	}

	root, err := os.OpenRoot(resolved)
	if err != nil {
		return nil, &release.IOError{Op: "open", Path: dest, Err: err}
	}

	return &unpacker{archivePath: archivePath, dest: resolved, root: root}, nil
}

func (u *unpacker) Close() error {
	return u.root.Close()
}

// entryName validates an entry name and returns it relative to the destination.
// The returned ok is false for names that resolve to the destination itself.
func (u *unpacker) entryName(name string) (string, bool, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", false, u.archiveError(name, errAbsolutePath)
	}

	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." {
		return "", false, nil
	}

	if !filepath.IsLocal(rel) {
		return "", false, u.archiveError(name, errEscapesDestination)
	}

	return rel, true, nil
}

// contained follows symlinks in the existing part of name and fails when the
// result leaves the destination.
func (u *unpacker) contained(name, reason string) error {
	path := filepath.Join(u.dest, name)

	for {
		resolved, err := filepath.EvalSymlinks(path)
		if err == nil {
			if !within(u.dest, resolved) {
				return u.archiveError(reason, errEscapesDestination)
			}

			return nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return &release.IOError{Op: "resolve", Path: path, Err: err}
		}

		parent := filepath.Dir(path)
		if parent == path || !within(u.dest, parent) {
			return nil
		}

		path = parent
	}
}

func (u *unpacker) writeDir(name string, mode fs.FileMode) error {
	if err := u.contained(name, name); err != nil {
		return err
	}

	if err := u.root.MkdirAll(name, dirMode); err != nil {
		return u.ioError("mkdir", name, err)
	}

	if err := u.root.Chmod(name, mode.Perm()|ownerRWX); err != nil {
		return u.ioError("chmod", name, err)
	}

	return nil
}

// writeFile stores src at name with the exact permission bits of mode.
// Read failures are reported as archive corruption.
func (u *unpacker) writeFile(name string, mode fs.FileMode, src io.Reader) error {
	if err := u.prepare(name); err != nil {
		return err
	}

	out, err := u.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return u.ioError("create", name, err)
	}

	reader := &entryReader{r: src}

	if _, err = io.Copy(out, reader); err != nil {
		_ = out.Close()

		if reader.err != nil {
			return &release.ArchiveError{Path: u.archivePath, Reason: "corrupt entry " + name, Err: reader.err}
		}

		return u.ioError("write", name, err)
	}

	if err = out.Close(); err != nil {
		return u.ioError("close", name, err)
	}

	// OpenFile is subject to the umask.
	if err = u.root.Chmod(name, mode.Perm()); err != nil {
		return u.ioError("chmod", name, err)
	}

	return nil
}

func (u *unpacker) writeSymlink(name, linkname string) error {
	reason := fmt.Sprintf("symlink %s -> %s", name, linkname)

	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return u.archiveError(reason, errAbsolutePath)
	}

	if !within(u.dest, filepath.Join(u.dest, filepath.Dir(name), filepath.FromSlash(linkname))) {
		return u.archiveError(reason, errEscapesDestination)
	}

	if err := u.prepare(name); err != nil {
		return err
	}

	if err := u.root.Symlink(linkname, name); err != nil {
		return u.ioError("symlink", name, err)
	}

	// The target may pass through symlinks unpacked earlier.
	if err := u.contained(name, reason); err != nil {
		_ = u.root.Remove(name)

		return err
	}

	return nil
}

// writeHardLink materializes a hard link as a copy of an already unpacked entry.
func (u *unpacker) writeHardLink(name, linkname string) error {
	source, ok, err := u.entryName(linkname)
	if err != nil {
		return err
	}

	if !ok {
		return u.archiveError("hard link to destination root", errEscapesDestination)
	}

	if err = u.contained(source, "hard link "+name+" -> "+linkname); err != nil {
		return err
	}

	info, err := u.root.Lstat(source)
	if err != nil {
		return &release.ArchiveError{Path: u.archivePath, Reason: "hard link to missing entry " + linkname, Err: err}
	}

	in, err := u.root.Open(source)
	if err != nil {
		return u.ioError("open", source, err)
	}

	defer in.Close()

	return u.writeFile(name, info.Mode(), in)
}

// prepare creates the parent of name and removes an earlier entry with the same name.
func (u *unpacker) prepare(name string) error {
	parent := filepath.Dir(name)

	if err := u.contained(parent, name); err != nil {
		return err
	}

	if parent != "." {
		if err := u.root.MkdirAll(parent, dirMode); err != nil {
			return u.ioError("mkdir", parent, err)
		}
	}

	if err := u.root.RemoveAll(name); err != nil {
		return u.ioError("remove", name, err)
	}

	return nil
}

func (u *unpacker) archiveError(reason string, err error) error {
	return &release.ArchiveError{Path: u.archivePath, Reason: reason, Err: err}
}

func (u *unpacker) ioError(op, name string, err error) error {
	return &release.IOError{Op: op, Path: filepath.Join(u.dest, name), Err: err}
}

// within reports whether target is dest or below it.
func within(dest, target string) bool {
	rel, err := filepath.Rel(dest, target)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// entryReader remembers read failures so that they can be told apart from write failures.
type entryReader struct {
	r   io.Reader
	err error
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		e.err = err
	}

	return n, err
}
