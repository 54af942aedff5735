package promote

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/logger"
)

// executeBits are the owner, group and other execute permissions.
const executeBits fs.FileMode = 0o111

var (
	// ErrNotDirectory is wrapped into the IOError returned for an install path that is a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrChecksumMismatch is wrapped into the IOError of a copy whose content changed on the way.
	ErrChecksumMismatch = errors.New("installed file checksum mismatch")
)

// ProcessLister returns the executable names of running processes.
type ProcessLister func() ([]string, error)

// Promoter copies executables into an install directory.
type Promoter struct {
	processes ProcessLister
}

// Option customizes a Promoter.
type Option func(*Promoter)

// WithProcessLister replaces the running process lookup.
func WithProcessLister(lister ProcessLister) Option {
	return func(p *Promoter) {
		p.processes = lister
	}
}

// NewPromoter creates a Promoter.
func NewPromoter(opts ...Option) *Promoter {
	p := &Promoter{processes: runningExecutables}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// IsExecutable reports whether mode describes a regular file with any execute bit set.
func IsExecutable(mode fs.FileMode) bool {
	return mode.IsRegular() && mode.Perm()&executeBits != 0
}

// PromoteExecutables copies every top-level executable of extractedDir into
// installDir and returns the installed names in directory order.
// installDir must already exist.
func (p *Promoter) PromoteExecutables(ctx context.Context, extractedDir, installDir string) ([]string, error) {
	info, err := os.Stat(installDir)
	if err != nil {
		return nil, &release.IOError{Op: "stat", Path: installDir, Err: err}
	}

	if !info.IsDir() {
		return nil, &release.IOError{Op: "stat", Path: installDir, Err: ErrNotDirectory}
	}

	entries, err := os.ReadDir(extractedDir)
	if err != nil {
		return nil, &release.IOError{Op: "readdir", Path: extractedDir, Err: err}
	}

	running := p.runningSet(ctx)
	installed := make([]string, 0, len(entries))

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return installed, err
		}

		// Symlinks and directories are never eligible.
		if !entry.Type().IsRegular() {
			continue
		}

		entryInfo, err := entry.Info()
		if err != nil {
			return installed, &release.IOError{Op: "stat", Path: filepath.Join(extractedDir, entry.Name()), Err: err}
		}

		if !IsExecutable(entryInfo.Mode()) {
			continue
		}

		name := entry.Name()

		if _, ok := running[name]; ok {
			logger.WarnKV(ctx, "Replacing executable of a running process", "name", name)
		}

		target := filepath.Join(installDir, name)
		if err = install(filepath.Join(extractedDir, name), target, entryInfo.Mode().Perm()); err != nil {
			return installed, err
		}

		logger.InfoKV(ctx, "Installed executable", "name", name, "path", target)

		installed = append(installed, name)
	}

	return installed, nil
}

// install replaces target with the content of source through go-update,
// which writes a sibling file and renames it over the target.
func install(source, target string, mode fs.FileMode) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return &release.IOError{Op: "read", Path: source, Err: err}
	}

	checksum := sha256.Sum256(data)

	// go-update renames the existing target aside, so one has to exist.
	if _, err = os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		if err = os.WriteFile(target, nil, mode); err != nil {
			return &release.IOError{Op: "create", Path: target, Err: err}
		}
	}

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return &release.IOError{Op: "install", Path: target, Err: err}
	}

	oldFile := target + ".old"
	if _, err = os.Stat(oldFile); err == nil {
		_ = os.Remove(oldFile)
	}

	// The new file is created subject to the umask.
	if err = os.Chmod(target, mode); err != nil {
		return &release.IOError{Op: "chmod", Path: target, Err: err}
	}

	return verify(target, checksum)
}

func verify(target string, checksum [sha256.Size]byte) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return &release.IOError{Op: "read", Path: target, Err: err}
	}

	if sha256.Sum256(data) != checksum {
		return &release.IOError{Op: "verify", Path: target, Err: ErrChecksumMismatch}
	}

	return nil
}

func (p *Promoter) runningSet(ctx context.Context) map[string]struct{} {
	if p.processes == nil {
		return nil
	}

	names, err := p.processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list running processes", "error", err)
		return nil
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

// runningExecutables lists running processes, except this one.
func runningExecutables() ([]string, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()
	names := make([]string, 0, len(processList))

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		names = append(names, process.Executable())
	}

	return names, nil
}
