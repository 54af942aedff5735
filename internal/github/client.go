package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/oshokin/ghd/internal/domain/release"
	"github.com/oshokin/ghd/internal/logger"
	"github.com/oshokin/ghd/internal/version"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultMaxDownloadBytes caps the number of bytes written per asset.
	DefaultMaxDownloadBytes int64 = 10_000_000

	acceptJSON   = "application/vnd.github+json"
	acceptBinary = "application/octet-stream"
	// errorBodyLimit bounds how much of an error response is read for its message.
	errorBodyLimit = 64 << 10
)

// ErrEmptyToken is returned by New when no credential is supplied.
var ErrEmptyToken = errors.New("github token is empty")

// Client fetches release metadata and downloads release assets.
type Client interface {
	// GetLatestRelease returns the most recent published release of owner/repo.
	GetLatestRelease(ctx context.Context, owner, repo string) (*release.Release, error)
	// DownloadAsset streams asset into destPath, overwriting it.
	DownloadAsset(ctx context.Context, asset release.Asset, destPath string) (*Download, error)
}

// APIClient is the HTTP implementation of Client.
type APIClient struct {
	httpClient       *http.Client
	baseURL          string
	token            string
	userAgent        string
	maxDownloadBytes int64
	failOnTruncation bool
	limiter          *rate.Limiter
	progress         io.Writer
}

// Option customizes an APIClient.
type Option func(*APIClient)

// WithBaseURL points the client to another API endpoint (GitHub Enterprise, tests).
func WithBaseURL(baseURL string) Option {
	return func(c *APIClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *APIClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxDownloadBytes sets the download cap. Non-positive values keep the default.
func WithMaxDownloadBytes(maxBytes int64) Option {
	return func(c *APIClient) {
		if maxBytes > 0 {
			c.maxDownloadBytes = maxBytes
		}
	}
}

// WithFailOnTruncation turns a download cut short by the cap into an error.
func WithFailOnTruncation(fail bool) Option {
	return func(c *APIClient) {
		c.failOnTruncation = fail
	}
}

// WithRateLimiter throttles release metadata requests.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *APIClient) {
		c.limiter = limiter
	}
}

// WithProgress renders a progress bar for every download into w.
func WithProgress(w io.Writer) Option {
	return func(c *APIClient) {
		c.progress = w
	}
}

// New creates an APIClient authenticated with token.
func New(token string, opts ...Option) (*APIClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}

	c := &APIClient{
		httpClient:       &http.Client{},
		baseURL:          DefaultBaseURL,
		token:            token,
		userAgent:        version.UserAgent(),
		maxDownloadBytes: DefaultMaxDownloadBytes,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetLatestRelease implements Client.
func (c *APIClient) GetLatestRelease(ctx context.Context, owner, repo string) (*release.Release, error) {
	endpoint, err := url.JoinPath(c.baseURL, "repos", owner, repo, "releases", "latest")
	if err != nil {
		return nil, fmt.Errorf("failed to build release url: %w", err)
	}

	if c.limiter != nil {
		if err = c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	logger.DebugKV(ctx, "Requesting latest release", "url", endpoint)

	resp, err := c.do(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	var payload releaseResponse
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &release.APIError{
			StatusCode: resp.StatusCode,
			Message:    "failed to decode release: " + err.Error(),
		}
	}

	rel, err := payload.toDomain()
	if err != nil {
		return nil, &release.APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	return rel, nil
}

// do sends an authenticated GET and returns the response of a 2xx status.
// The caller closes the body.
func (c *APIClient) do(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &release.NetworkError{Detail: err.Error(), Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		return nil, &release.APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp),
		}
	}

	return resp, nil
}

// errorMessage extracts the "message" field of a GitHub error body.
// It falls back to the HTTP status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err == nil && json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}

	return resp.Status
}
