package release

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies pipeline failures for logging and history.
type Kind int

const (
	// KindUnknown is any error outside the taxonomy.
	KindUnknown Kind = iota
	// KindAPI means the release API rejected the request.
	KindAPI
	// KindNetwork means the request failed at the transport level.
	KindNetwork
	// KindIO means a local file-system operation failed.
	KindIO
	// KindArchive means the archive content is corrupt or unsafe.
	KindArchive
	// KindUnsupportedFormat means the archive extension is not recognized.
	KindUnsupportedFormat
	// KindNoMatchingPattern means no release asset matched the configured suffix.
	KindNoMatchingPattern
	// KindCanceled means the run was interrupted.
	KindCanceled
)

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindIO:
		return "io"
	case KindArchive:
		return "archive"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindNoMatchingPattern:
		return "no_matching_pattern"
	case KindCanceled:
		return "canceled"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ErrArchive matches every archive failure, unsupported formats included.
var ErrArchive = errors.New("archive error")

// APIError is returned when the release API answers with a non-success status.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Message is the "message" field of the error body.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError is returned on transport failures: DNS, TLS, resets, timeouts.
type NetworkError struct {
	// Detail describes the failure.
	Detail string
	// Err is the underlying transport error.
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Detail
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IOError is returned when a local file-system operation fails.
type IOError struct {
	// Op is the failed operation, e.g. "create" or "rename".
	Op string
	// Path is the file or directory involved.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ArchiveError is returned when archive data is corrupt or unsafe to unpack.
type ArchiveError struct {
	// Path is the archive file.
	Path string
	// Reason describes what is wrong with the archive.
	Reason string
	// Err is the underlying decoder error, if any.
	Err error
}

func (e *ArchiveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("archive error: %s: %s", e.Path, e.Reason)
	}

	return fmt.Sprintf("archive error: %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is reports ErrArchive as a match.
func (e *ArchiveError) Is(target error) bool {
	return target == ErrArchive
}

// UnsupportedFormatError is returned for an archive extension ghd cannot unpack.
// It is fatal for the package: the configured suffix points at the wrong asset.
type UnsupportedFormatError struct {
	// Extension is the outermost extension of the file, dot included.
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format %q", e.Extension)
}

// Is reports ErrArchive as a match.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrArchive
}

// NoMatchingPatternError is returned when no release asset ends with the suffix.
type NoMatchingPatternError struct {
	// Suffix is the configured asset suffix.
	Suffix string
}

func (e *NoMatchingPatternError) Error() string {
	return fmt.Sprintf("pattern not found '%s'", e.Suffix)
}

// KindOf classifies err, looking through wrapped errors.
func KindOf(err error) Kind {
	var (
		apiErr         *APIError
		networkErr     *NetworkError
		ioErr          *IOError
		archiveErr     *ArchiveError
		unsupportedErr *UnsupportedFormatError
		noMatchErr     *NoMatchingPatternError
	)

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &unsupportedErr):
		return KindUnsupportedFormat
	case errors.As(err, &noMatchErr):
		return KindNoMatchingPattern
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.As(err, &networkErr):
		return KindNetwork
	case errors.As(err, &archiveErr):
		return KindArchive
	case errors.As(err, &ioErr):
		return KindIO
	// HTTP client timeouts match DeadlineExceeded too; they are network failures above.
	case errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
