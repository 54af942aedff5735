package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/oshokin/ghd/internal/domain/release"
)

const testToken = "ghp_test"

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *APIClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(testToken, append([]Option{WithBaseURL(server.URL)}, opts...)...)
	require.NoError(t, err)

	return client
}

// TestNewRequiresToken ensures an empty credential is rejected.
func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.ErrorIs(t, err, ErrEmptyToken)
}

// TestGetLatestRelease verifies request headers and mapping of the wire payload.
func TestGetLatestRelease(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/tool/releases/latest", r.URL.Path)
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		require.Equal(t, acceptJSON, r.Header.Get("Accept"))
		require.Contains(t, r.Header.Get("User-Agent"), "ghd/")

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"tag_name": "v1.2.0",
			"published_at": "2024-05-01T10:00:00Z",
			"draft": false,
			"assets": [
				{"name": "tool-linux-x64.tar.gz", "size": 42,
				 "browser_download_url": "https://example.com/tool-linux-x64.tar.gz",
				 "updated_at": "2024-05-01T10:00:00Z", "content_type": "application/gzip"},
				{"name": "tool-darwin-arm64.zip", "size": 7,
				 "browser_download_url": "https://example.com/tool-darwin-arm64.zip"}
			]
		}`)
	}))

	rel, err := client.GetLatestRelease(context.Background(), "acme", "tool")
	require.NoError(t, err)
	require.Equal(t, "v1.2.0", rel.Tag)
	require.Equal(t, 2024, rel.PublishedAt.Year())

	assets := rel.Assets()
	require.Len(t, assets, 2)
	require.Equal(t, "tool-linux-x64.tar.gz", assets[0].Name)
	require.Equal(t, "https://example.com/tool-linux-x64.tar.gz", assets[0].DownloadURL)
	require.EqualValues(t, 42, assets[0].SizeBytes)
	require.Equal(t, "tool-darwin-arm64.zip", assets[1].Name)
}

// TestGetLatestReleaseErrors checks the mapping of failures to the error taxonomy.
func TestGetLatestReleaseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		code    int
		message string
	}{
		{
			name:    "not_found_json",
			status:  http.StatusNotFound,
			body:    `{"message":"Not Found","documentation_url":"https://docs.github.com"}`,
			code:    http.StatusNotFound,
			message: "Not Found",
		},
		{
			name:    "unauthorized_plain",
			status:  http.StatusUnauthorized,
			body:    "nope",
			code:    http.StatusUnauthorized,
			message: "Unauthorized",
		},
		{
			name:    "invalid_json",
			status:  http.StatusOK,
			body:    `{"tag_name":`,
			code:    http.StatusOK,
			message: "failed to decode release",
		},
		{
			name:    "relative_asset_url",
			status:  http.StatusOK,
			body:    `{"tag_name":"v1","assets":[{"name":"a.zip","browser_download_url":"/a.zip"}]}`,
			code:    http.StatusOK,
			message: "not absolute",
		},
		{
			name:    "nameless_asset",
			status:  http.StatusOK,
			body:    `{"tag_name":"v1","assets":[{"browser_download_url":"https://example.com/a.zip"}]}`,
			code:    http.StatusOK,
			message: "asset has no name",
		},
		{
			name:    "asset_name_with_parent_segments",
			status:  http.StatusOK,
			body:    `{"tag_name":"v1","assets":[{"name":"../../escape.tar.gz","browser_download_url":"https://example.com/a.zip"}]}`,
			code:    http.StatusOK,
			message: "not a plain file name",
		},
		{
			name:    "asset_name_with_backslash",
			status:  http.StatusOK,
			body:    `{"tag_name":"v1","assets":[{"name":"dir\\tool.zip","browser_download_url":"https://example.com/a.zip"}]}`,
			code:    http.StatusOK,
			message: "not a plain file name",
		},
		{
			name:    "asset_name_dot_dot",
			status:  http.StatusOK,
			body:    `{"tag_name":"v1","assets":[{"name":"..","browser_download_url":"https://example.com/a.zip"}]}`,
			code:    http.StatusOK,
			message: "not a plain file name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))

			_, err := client.GetLatestRelease(context.Background(), "acme", "tool")

			var apiErr *release.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.code, apiErr.StatusCode)
			require.Contains(t, apiErr.Message, tt.message)
			require.Equal(t, release.KindAPI, release.KindOf(err))
		})
	}
}

// TestGetLatestReleaseNetworkError ensures transport failures become NetworkError.
func TestGetLatestReleaseNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := New(testToken, WithBaseURL(baseURL))
	require.NoError(t, err)

	_, err = client.GetLatestRelease(context.Background(), "acme", "tool")

	var netErr *release.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, release.KindNetwork, release.KindOf(err))
}

// TestGetLatestReleaseCanceled ensures a canceled context is reported as such.
func TestGetLatestReleaseCanceled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), WithRateLimiter(rate.NewLimiter(rate.Limit(1), 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetLatestRelease(ctx, "acme", "tool")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, release.KindCanceled, release.KindOf(err))
}

// TestGetLatestReleaseTimeout ensures an HTTP client timeout is a network failure.
func TestGetLatestReleaseTimeout(t *testing.T) {
	t.Parallel()

	unblock := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-unblock:
		case <-r.Context().Done():
		}

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(unblock) })

	client, err := New(testToken,
		WithBaseURL(server.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)

	_, err = client.GetLatestRelease(context.Background(), "acme", "tool")

	var netErr *release.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, release.KindNetwork, release.KindOf(err))
}
