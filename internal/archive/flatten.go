package archive

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oshokin/ghd/internal/domain/release"
)

// Flatten hoists the content of dir's only entry into dir when that entry is a
// directory. It reports whether anything was moved.
// Zero or several top-level entries, or a single file or symlink, leave dir untouched.
func Flatten(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, &release.IOError{Op: "readdir", Path: dir, Err: err}
	}

	if len(entries) != 1 || !entries[0].IsDir() {
		return false, nil
	}

	// The wrapper is renamed first so a child with the wrapper's own name can move up.
	wrapper := filepath.Join(dir, entries[0].Name())
	staging := filepath.Join(dir, ".flatten-"+uuid.NewString())

	if err = os.Rename(wrapper, staging); err != nil {
		return false, &release.IOError{Op: "rename", Path: wrapper, Err: err}
	}

	children, err := os.ReadDir(staging)
	if err != nil {
		return false, &release.IOError{Op: "readdir", Path: staging, Err: err}
	}

	for _, child := range children {
		from := filepath.Join(staging, child.Name())
		to := filepath.Join(dir, child.Name())

		if err = os.Rename(from, to); err != nil {
			return false, &release.IOError{Op: "rename", Path: from, Err: err}
		}
	}

	if err = os.Remove(staging); err != nil {
		return false, &release.IOError{Op: "remove", Path: staging, Err: err}
	}

	return true, nil
}
