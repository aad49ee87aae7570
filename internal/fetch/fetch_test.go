package fetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/feedcache"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/govern"
)

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	store, err := feedcache.Open(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	g := govern.New(govern.Config{GlobalMaxConcurrency: 4, PerHostMaxConcurrency: 4, PerHostRPS: 1000, PerHostBurst: 10})
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BackoffMaxSecs == 0 {
		cfg.BackoffMaxSecs = 1
	}
	return New(nil, g, store, cfg)
}

func TestFetchSuccessClearsFailureState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	out, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.NoError(t, err)
	assert.Equal(t, "<rss></rss>", string(out.Body))
	assert.Equal(t, `"v1"`, out.Cache.ETag)
	assert.Zero(t, out.Cache.ConsecutiveFailures)
}

func TestFetchConditionalHeadersOnRepeatRequest(t *testing.T) {
	var sawINM, sawIMS atomic.Bool
	var hit atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hit.Add(1)
		if n == 1 {
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("body-1"))
			return
		}
		if r.Header.Get("If-None-Match") == `"abc"` {
			sawINM.Store(true)
		}
		if r.Header.Get("If-Modified-Since") == "Mon, 01 Jan 2024 00:00:00 GMT" {
			sawIMS.Store(true)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	_, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.NoError(t, err)

	out2, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1001)
	require.NoError(t, err)
	assert.True(t, out2.NotModified)
	assert.True(t, sawINM.Load())
	assert.True(t, sawIMS.Load())
}

func TestFetchTransparentlyDecodesGzipResponse(t *testing.T) {
	const want = "<rss><channel><title>gzipped feed</title></channel></rss>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotContains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		gz.Write([]byte(want))
		gz.Close()
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	out, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.NoError(t, err)
	assert.Equal(t, want, string(out.Body))
}

// a 429 with Retry-After sets blocked_until = now + Retry-After.
func TestFetch429SetsCooldownFromRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 0, CooldownRateLimitSecs: 60})
	_, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)

	cache := f.cache.Load(srv.URL)
	assert.Equal(t, int64(1000+120), cache.BlockedUntilEpochS)
}

// a fetch while still in cooldown makes zero network calls.
func TestFetchInCooldownMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	f.cache.Mutate(srv.URL, func(c feedcache.Cache) feedcache.Cache {
		c.BlockedUntilEpochS = 2000
		return c
	})

	_, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1500)
	require.Error(t, err)

	var cooldownErr *InCooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, int64(2000), cooldownErr.Until)
	assert.Zero(t, calls.Load())
}

func TestFetchOverrideCooldownBypassesGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	f.cache.Mutate(srv.URL, func(c feedcache.Cache) feedcache.Cache {
		c.BlockedUntilEpochS = 2000
		return c
	})

	out, err := f.Fetch(context.Background(), srv.URL, KindFeed, true, 1500)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out.Body))
}

// a 503 retries and eventually succeeds within max_retries+1.
func TestFetchRetriesTransientStatusThenSucceeds(t *testing.T) {
	var hit atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hit.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 3, BackoffMaxSecs: 1})
	out, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(out.Body))
	assert.Equal(t, int32(3), hit.Load())
}

func TestFetch404SetsNotFoundCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 0, CooldownNotFoundSecs: 86400})
	_, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.Error(t, err)

	cache := f.cache.Load(srv.URL)
	assert.Equal(t, feedcache.ErrorNotFound404, cache.LastErrorKind)
	assert.Equal(t, int64(1000+86400), cache.BlockedUntilEpochS)
}

func TestFetchResourceLimitMarkerIsRetried(t *testing.T) {
	var hit atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hit.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Sorry, the resource limit is reached"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<rss>real content</rss>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 2, BackoffMaxSecs: 1})
	out, err := f.Fetch(context.Background(), srv.URL, KindFeed, false, 1000)
	require.NoError(t, err)
	assert.Equal(t, "<rss>real content</rss>", string(out.Body))
}

func TestRetriableStatusFor403OnlyArticleWithCloudflareMarker(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "cloudflare")
	assert.True(t, retriableStatus(403, KindArticle, h))
	assert.False(t, retriableStatus(403, KindFeed, h))
	assert.False(t, retriableStatus(403, KindArticle, http.Header{}))
}

func TestParseRetryAfterAcceptsIntegerSeconds(t *testing.T) {
	assert.Equal(t, int64(5), int64(parseRetryAfter("5").Seconds()))
	assert.Equal(t, int64(0), int64(parseRetryAfter("").Seconds()))
}
