package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rubywatch/release-index/internal/config"
	"github.com/rubywatch/release-index/pkg/index"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testIndex = "name\turl\tsha256\n" +
	"ruby-2.7.8\thttps://cache.ruby-lang.org/pub/ruby/2.7/ruby-2.7.8.tar.gz\tc2dab63c\n" +
	"ruby-3.0.6\thttps://cache.ruby-lang.org/pub/ruby/3.0/ruby-3.0.6.tar.gz\t6e6d66e0\n" +
	"ruby-3.0.7\thttps://cache.ruby-lang.org/pub/ruby/3.0/ruby-3.0.7.tar.gz\t2a3f4c47\n" +
	"ruby-3.1.4\thttps://cache.ruby-lang.org/pub/ruby/3.1/ruby-3.1.4.tar.gz\ta3d94d5f\n" +
	"ruby-3.1.6\thttps://cache.ruby-lang.org/pub/ruby/3.1/ruby-3.1.6.tar.gz\t0d0c563c\n" +
	"ruby-3.2.0-rc2\thttps://cache.ruby-lang.org/pub/ruby/3.2/ruby-3.2.0-rc2.tar.gz\t91fd0625\n" +
	"ruby-3.2.4\thttps://cache.ruby-lang.org/pub/ruby/3.2/ruby-3.2.4.tar.gz\tc72b3c5c\n"

type stubFetcher struct {
	data     string
	err      error
	requests int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (string, error) {
	f.requests++
	if f.err != nil {
		return "", f.err
	}
	return f.data, nil
}

func newTestServer(feed Fetcher, modCfgFns ...func(cfg *config.ServerConfig)) *Server {
	log := logrus.New()
	log.Out = io.Discard

	cfg := &config.ServerConfig{
		Stage:               "dev",
		IndexURL:            "https://cache.ruby-lang.org/pub/ruby/index.txt",
		AdminAccessToken:    "admin-token",
		DisableRequestCache: true,
		Version:             "test",
	}
	for _, f := range modCfgFns {
		f(cfg)
	}
	return New(log, feed, cfg)
}

func sendRequest(s http.Handler, method, path string, body io.Reader, modReqFns ...func(req *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for _, f := range modReqFns {
		f(req)
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &errResp))
	return errResp.Error
}

func TestIndexHandler(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.Equal(t, "ruby release index", info["service"])
	require.Equal(t, "dev", info["stage"])
	require.Equal(t, "test", info["version"])
}

func TestListReleases(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var report []*index.Release
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Len(t, report, 3)
	for i, expected := range []string{"3.0.7", "3.1.6", "3.2.4"} {
		require.Equal(t, expected, report[i].Version.String())
	}
}

func TestGetRelease(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "GET", "/api/v1/releases/3.1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rel index.Release
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rel))
	require.Equal(t, "3.1.6", rel.Version.String())
	require.Equal(t, "https://cache.ruby-lang.org/pub/ruby/3.1/ruby-3.1.6.tar.gz", rel.URL)
	require.Equal(t, "0d0c563c", rel.SHA256)

	rr = sendRequest(s, "GET", "/api/v1/releases/9.9", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, decodeError(t, rr.Body.Bytes()), "not found")
}

func TestListReleasesFetchError(t *testing.T) {
	s := newTestServer(&stubFetcher{err: fmt.Errorf("connection reset")})

	rr := sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "could not build release report", decodeError(t, rr.Body.Bytes()))
}

func TestListReleasesParseError(t *testing.T) {
	s := newTestServer(&stubFetcher{data: "this is not a release index"})

	rr := sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequestCache(t *testing.T) {
	feed := &stubFetcher{data: testIndex}
	s := newTestServer(feed, func(cfg *config.ServerConfig) {
		cfg.DisableRequestCache = false
	})

	rr := sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("X-Go-Cache"))

	rr = sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "HIT", rr.Header().Get("X-Go-Cache"))
	require.Equal(t, 1, feed.requests)
}

func TestRefreshReleases(t *testing.T) {
	feed := &stubFetcher{data: testIndex}
	s := newTestServer(feed, func(cfg *config.ServerConfig) {
		cfg.DisableRequestCache = false
	})

	rr := sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// a new release appears in the feed, but the cached report hides it
	feed.data = testIndex + "ruby-3.2.6\thttps://cache.ruby-lang.org/pub/ruby/3.2/ruby-3.2.6.tar.gz\t1b0b28aa\n"
	rr = sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, "HIT", rr.Header().Get("X-Go-Cache"))

	rr = sendRequest(s, "PUT", "/api/v1/releases", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "admin-token")
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &refreshed))
	require.True(t, refreshed["ok"])

	rr = sendRequest(s, "GET", "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var report []*index.Release
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Len(t, report, 3)
	require.Equal(t, "3.2.6", report[2].Version.String())
	require.Equal(t, 2, feed.requests)
}

func TestRefreshReleasesUnauthorized(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "PUT", "/api/v1/releases", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = sendRequest(s, "PUT", "/api/v1/releases", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "wrong-token")
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid access token", decodeError(t, rr.Body.Bytes()))
}

func TestDownloadLatestArtifact(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "GET", "/downloads/3.0", nil)
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://cache.ruby-lang.org/pub/ruby/3.0/ruby-3.0.7.tar.gz", rr.Header().Get("Location"))

	rr = sendRequest(s, "GET", "/downloads/2.7", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(&stubFetcher{data: testIndex})

	rr := sendRequest(s, "GET", "/api/v2/releases", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not found", decodeError(t, rr.Body.Bytes()))
}
