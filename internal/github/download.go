package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/logger"
)

const (
	downloadDirMode  = 0o755
	downloadFileMode = 0o644
	progressWidth    = 40
	progressThrottle = 100 * time.Millisecond
)

// Download describes an asset written to disk.
type Download struct {
	// Path is the final location of the asset.
	Path string
	// Written is the number of bytes stored at Path.
	Written int64
	// Truncated reports that the body was longer than the cap and was cut.
	Truncated bool
}

// DownloadAsset implements Client.
// The body is streamed into a temporary file next to destPath which is then
// renamed over destPath. Bytes beyond the cap are discarded.
func (c *APIClient) DownloadAsset(ctx context.Context, asset release.Asset, destPath string) (*Download, error) {
	logger.DebugKV(ctx, "Downloading asset", "asset", asset.Name, "url", asset.DownloadURL, "path", destPath)

	resp, err := c.do(ctx, asset.DownloadURL, acceptBinary)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	dir := filepath.Dir(destPath)
	if err = os.MkdirAll(dir, downloadDirMode); err != nil {
		return nil, &release.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return nil, &release.IOError{Op: "create", Path: dir, Err: err}
	}

	tmpPath := tmp.Name()
	renamed := false

	defer func() {
		_ = tmp.Close()

		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	body := &trackingReader{r: resp.Body}

	var dst io.Writer = tmp
	if bar := c.newProgressBar(asset, resp.ContentLength); bar != nil {
		dst = io.MultiWriter(tmp, bar)

		defer func() { _ = bar.Finish() }()
	}

	written, err := io.Copy(dst, io.LimitReader(body, c.maxDownloadBytes))
	if err != nil {
		return nil, copyError(ctx, body, tmpPath, err)
	}

	truncated := written == c.maxDownloadBytes && body.hasMore()

	if truncated && c.failOnTruncation {
		return nil, &release.IOError{
			Op:   "download",
			Path: destPath,
			Err:  fmt.Errorf("%w: %d bytes", ErrDownloadTruncated, c.maxDownloadBytes),
		}
	}

	if err = tmp.Chmod(downloadFileMode); err != nil {
		return nil, &release.IOError{Op: "chmod", Path: tmpPath, Err: err}
	}

	if err = tmp.Close(); err != nil {
		return nil, &release.IOError{Op: "close", Path: tmpPath, Err: err}
	}

	if err = os.Rename(tmpPath, destPath); err != nil {
		return nil, &release.IOError{Op: "rename", Path: destPath, Err: err}
	}

	renamed = true

	if truncated {
		logger.WarnKV(ctx, "Download truncated at size cap",
			"asset", asset.Name,
			"max_bytes", c.maxDownloadBytes)
	}

	return &Download{Path: destPath, Written: written, Truncated: truncated}, nil
}

// ErrDownloadTruncated is wrapped into the IOError of a download cut by the cap
// when truncation is configured to fail.
var ErrDownloadTruncated = errors.New("download exceeds size cap")

// trackingReader remembers read failures so they can be told apart from write failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}

	return n, err
}

// hasMore reports whether at least one more byte is available.
func (t *trackingReader) hasMore() bool {
	var probe [1]byte

	n, _ := io.ReadFull(t.r, probe[:])

	return n > 0
}

func copyError(ctx context.Context, body *trackingReader, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if body.err != nil {
		return &release.NetworkError{Detail: "failed to read asset body: " + body.err.Error(), Err: body.err}
	}

	return &release.IOError{Op: "write", Path: path, Err: err}
}

func (c *APIClient) newProgressBar(asset release.Asset, contentLength int64) *progressbar.ProgressBar {
	if c.progress == nil {
		return nil
	}

	total := contentLength
	if total <= 0 {
		total = int64(asset.SizeBytes) //nolint:gosec // Asset sizes fit into int64.
	}

	if total <= 0 {
		return nil
	}

	total = min(total, c.maxDownloadBytes)

	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionSetDescription(asset.Name),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionClearOnFinish(),
	)
}
