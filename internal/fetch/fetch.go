// Package fetch implements the conditional-GET HTTP requester (spec C5):
// cooldown gating against a FeedCache, a browser-fingerprint header set,
// retry/backoff with Retry-After honoring, and an https->http fallback on
// total network failure.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/feedcache"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/govern"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/urlkey"
)

// Kind selects request shaping (headers, timeout, cache interaction).
type Kind string

const (
	KindFeed    Kind = "feed"
	KindArticle Kind = "article"
	KindSite    Kind = "site"
	KindGeneric Kind = "generic"
	KindPodcast Kind = "podcast"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const articleReferer = "https://news.google.com/"

// Config carries the fetch-tunable knobs from spec §4.5 / internal/config.
type Config struct {
	MaxItemsPerFeed       int
	MaxExcerptChars       int
	CooldownBlockedSecs   int64
	CooldownNotFoundSecs  int64
	CooldownRateLimitSecs int64
	FeedConnectTimeout    time.Duration
	FeedTotalTimeout      time.Duration
	ArticleConnectTimeout time.Duration
	ArticleTotalTimeout   time.Duration
	MaxRetries            int
	BackoffMaxSecs        int
}

// InCooldownError is returned without any network I/O when the source is
// presently in cooldown and the caller did not override it.
type InCooldownError struct {
	Until int64
	Kind  Kind
}

func (e *InCooldownError) Error() string {
	return fmt.Sprintf("fetch: %s in cooldown until %d", e.Kind, e.Until)
}

// HTTPStatusError is returned after a non-retriable or retry-exhausted HTTP
// status.
type HTTPStatusError struct {
	Status int
	Kind   feedcache.ErrorKind
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch: http status %d (%s)", e.Status, e.Kind)
}

// NetworkError wraps a connection-level failure (including the exhausted
// https->http fallback).
type NetworkError struct {
	Message string
}

func (e *NetworkError) Error() string { return "fetch: network: " + e.Message }

// Outcome is the successful result of Fetch.
type Outcome struct {
	Body         []byte
	NotModified  bool
	FinalURL     string
	Cache        feedcache.Cache
	ContentType  string
}

// Fetcher performs governed, cached, retried HTTP requests.
type Fetcher struct {
	client    *http.Client
	governor  *govern.Governor
	cache     *feedcache.Store
	cfg       Config
}

// New builds a Fetcher. client may be nil, in which case a default
// http.Client tuned per spec §4.5.2 (redirect limit 10) is used.
func New(client *http.Client, governor *govern.Governor, cache *feedcache.Store, cfg Config) *Fetcher {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("fetch: stopped after 10 redirects")
				}
				return nil
			},
		}
	}
	return &Fetcher{client: client, governor: governor, cache: cache, cfg: cfg}
}

// Fetch performs the C5 public operation.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, kind Kind, overrideCooldown bool, nowEpochS int64) (*Outcome, error) {
	normalizedURL := urlkey.Normalize(rawURL)

	var cacheEntry feedcache.Cache
	cacheable := kind == KindFeed || kind == KindPodcast
	if cacheable {
		cacheEntry = f.cache.Load(normalizedURL)
		if !overrideCooldown && cacheEntry.InCooldown(nowEpochS) {
			return nil, &InCooldownError{Until: cacheEntry.BlockedUntilEpochS, Kind: kind}
		}
	}

	body, resp, finalURL, retryAfter, err := f.fetchWithFallback(ctx, normalizedURL, kind, cacheEntry)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && cacheable {
			cacheEntry = f.recordFailure(normalizedURL, nowEpochS, statusErr.Status, statusErr.Kind, retryAfter)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if cacheable {
			cacheEntry = f.cache.Mutate(normalizedURL, func(c feedcache.Cache) feedcache.Cache {
				c.FeedURL = normalizedURL
				c.ConsecutiveFailures = 0
				c.BlockedUntilEpochS = 0
				c.LastErrorKind = ""
				c.LastStatus = resp.StatusCode
				c.LastFetchEpochS = nowEpochS
				stampValidators(&c, resp)
				return c
			})
		}
		return &Outcome{NotModified: true, FinalURL: finalURL, Cache: cacheEntry}, nil
	}

	if cacheable {
		cacheEntry = f.cache.Mutate(normalizedURL, func(c feedcache.Cache) feedcache.Cache {
			c.FeedURL = normalizedURL
			c.ConsecutiveFailures = 0
			c.BlockedUntilEpochS = 0
			c.LastErrorKind = ""
			c.LastStatus = resp.StatusCode
			c.LastFetchEpochS = nowEpochS
			stampValidators(&c, resp)
			return c
		})
	}

	return &Outcome{
		Body:        body,
		FinalURL:    finalURL,
		Cache:       cacheEntry,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func stampValidators(c *feedcache.Cache, resp *http.Response) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		c.ETag = etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		c.LastModified = lm
	}
}

// fetchWithFallback implements §4.5.5: retry the whole attempt sequence once
// more over plain http:// if every https:// attempt failed with a network
// error.
func (f *Fetcher) fetchWithFallback(ctx context.Context, normalizedURL string, kind Kind, cache feedcache.Cache) ([]byte, *http.Response, string, time.Duration, error) {
	body, resp, finalURL, retryAfter, err := f.attemptWithRetries(ctx, normalizedURL, kind, cache)
	if err == nil {
		return body, resp, finalURL, retryAfter, nil
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) || !strings.HasPrefix(normalizedURL, "https://") {
		return nil, nil, "", retryAfter, err
	}

	fallbackURL := "http://" + strings.TrimPrefix(normalizedURL, "https://")
	slog.Warn("fetch: https attempts failed, retrying over http", "url", normalizedURL)
	body2, resp2, finalURL2, retryAfter2, err2 := f.attemptWithRetries(ctx, fallbackURL, kind, cache)
	if err2 != nil {
		return nil, nil, "", retryAfter2, &NetworkError{Message: fmt.Sprintf("https attempts failed (%v); http fallback also failed (%v)", err, err2)}
	}
	return body2, resp2, finalURL2, retryAfter2, nil
}

// attemptWithRetries runs up to cfg.MaxRetries+1 attempts per §4.5.3, driven
// by backoff.Retry over a specBackOff that implements the exact
// min(2^(attempt-1), backoff_max_secs)+jitter policy and honors Retry-After.
func (f *Fetcher) attemptWithRetries(ctx context.Context, targetURL string, kind Kind, cache feedcache.Cache) ([]byte, *http.Response, string, time.Duration, error) {
	host := urlkey.Host(targetURL)

	var body []byte
	var resp *http.Response
	var finalURL string
	var lastRetryAfter time.Duration

	bo := &specBackOff{maxSecs: f.cfg.BackoffMaxSecs}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxAttemptsMinusOne(f.cfg.MaxRetries))), ctx)

	operation := func() error {
		permit, err := f.governor.Acquire(ctx, host)
		if err != nil {
			return backoff.Permanent(&NetworkError{Message: err.Error()})
		}
		b, r, u, retryAfter, attemptErr := f.doOnce(ctx, targetURL, kind, cache)
		permit.Release()
		bo.retryAfter = retryAfter
		lastRetryAfter = retryAfter

		if attemptErr != nil {
			if !retriableError(attemptErr) {
				return backoff.Permanent(attemptErr)
			}
			return attemptErr
		}

		if statusErr, classifyErr := classifyStatus(r.StatusCode, kind); classifyErr != nil {
			r.Body.Close()
			if !retriableStatus(r.StatusCode, kind, r.Header) {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		body, resp, finalURL = b, r, u
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, nil, "", lastRetryAfter, unwrapPermanent(err)
	}
	return body, resp, finalURL, lastRetryAfter, nil
}

func maxAttemptsMinusOne(maxRetries int) int {
	if maxRetries < 0 {
		return 0
	}
	return maxRetries
}

func unwrapPermanent(err error) error {
	var perr *backoff.PermanentError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}

// specBackOff implements backoff.BackOff with the spec §4.5.3 policy:
// min(2^(attempt-1), backoff_max_secs) seconds of base delay plus 0-300ms of
// jitter, overridden by a server Retry-After value when it is longer.
type specBackOff struct {
	maxSecs    int
	attempt    int
	retryAfter time.Duration
}

func (b *specBackOff) NextBackOff() time.Duration {
	b.attempt++
	maxSecs := b.maxSecs
	if maxSecs <= 0 {
		maxSecs = 120
	}
	secs := 1 << (b.attempt - 1)
	if b.attempt > 30 || secs > maxSecs {
		secs = maxSecs
	}
	d := time.Duration(secs)*time.Second + time.Duration(rand.Intn(300))*time.Millisecond
	if b.retryAfter > d {
		d = b.retryAfter
	}
	b.retryAfter = 0
	return d
}

func (b *specBackOff) Reset() {
	b.attempt = 0
	b.retryAfter = 0
}

// doOnce issues a single HTTP request, returning a parsed Retry-After
// duration (zero if absent) alongside the raw result.
func (f *Fetcher) doOnce(ctx context.Context, targetURL string, kind Kind, cache feedcache.Cache) ([]byte, *http.Response, string, time.Duration, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout := requestTimeout(kind, f.cfg); timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, nil, "", 0, &NetworkError{Message: err.Error()}
	}
	applyHeaders(req, kind)
	if (kind == KindFeed || kind == KindPodcast) && cache.FeedURL == targetURL {
		if cache.ETag != "" {
			req.Header.Set("If-None-Match", cache.ETag)
		}
		if cache.LastModified != "" {
			req.Header.Set("If-Modified-Since", cache.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, "", 0, &NetworkError{Message: err.Error()}
	}

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp, resp.Request.URL.String(), retryAfter, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	resp.Body.Close()
	if err != nil {
		return nil, nil, "", retryAfter, &NetworkError{Message: err.Error()}
	}

	// resource-limit marker (§4.5.4, §12): a 200 OK body that is actually a
	// soft rate-limit page is treated as retriable.
	if resp.StatusCode == http.StatusOK && looksLikeResourceLimit(data) {
		synthetic := &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     resp.Header,
			Request:    resp.Request,
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}
		return nil, synthetic, resp.Request.URL.String(), retryAfter, nil
	}

	// Rebuild a Response carrying the already-drained body for the caller.
	out := *resp
	out.Body = io.NopCloser(bytes.NewReader(data))
	return data, &out, resp.Request.URL.String(), retryAfter, nil
}

func requestTimeout(kind Kind, cfg Config) time.Duration {
	if kind == KindArticle || kind == KindSite {
		if cfg.ArticleTotalTimeout > 0 {
			return cfg.ArticleTotalTimeout
		}
		return 25 * time.Second
	}
	if cfg.FeedTotalTimeout > 0 {
		return cfg.FeedTotalTimeout
	}
	return 15 * time.Second
}

func applyHeaders(req *http.Request, kind Kind) {
	req.Header.Set("User-Agent", userAgent)
	// Accept-Encoding is deliberately left unset: net/http's Transport only
	// auto-negotiates gzip and transparently decompresses the body when the
	// caller hasn't set this header itself (spec §4.5.2 "decode gzip/br").
	// We have no brotli decoder, so we don't advertise "br" support either.
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("sec-ch-ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)
	req.Header.Set("sec-fetch-dest", "document")
	req.Header.Set("sec-fetch-mode", "navigate")
	req.Header.Set("sec-fetch-site", "none")
	req.Header.Set("sec-fetch-user", "?1")

	switch kind {
	case KindArticle, KindSite:
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Referer", articleReferer)
	default:
		req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
}

func classifyStatus(status int, kind Kind) (*HTTPStatusError, error) {
	switch status {
	case http.StatusOK, http.StatusNotModified:
		return nil, nil
	case http.StatusUnauthorized:
		return &HTTPStatusError{Status: status, Kind: feedcache.ErrorBlocked401}, errors.New("unauthorized")
	case http.StatusForbidden:
		return &HTTPStatusError{Status: status, Kind: feedcache.ErrorBlocked403}, errors.New("forbidden")
	case http.StatusNotFound:
		return &HTTPStatusError{Status: status, Kind: feedcache.ErrorNotFound404}, errors.New("not found")
	case http.StatusTooManyRequests:
		return &HTTPStatusError{Status: status, Kind: feedcache.ErrorRateLimited429}, errors.New("rate limited")
	default:
		if status >= 400 {
			return &HTTPStatusError{Status: status, Kind: feedcache.ErrorHTTPError}, fmt.Errorf("http error %d", status)
		}
		return nil, nil
	}
}

func retriableStatus(status int, kind Kind, header http.Header) bool {
	switch status {
	case 429, 502, 503, 504, 508:
		return true
	case 403:
		if kind != KindArticle {
			return false
		}
		return hasCloudflareMarker(header)
	default:
		return false
	}
}

func hasCloudflareMarker(header http.Header) bool {
	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
		return true
	}
	for _, c := range header.Values("Set-Cookie") {
		if strings.Contains(c, "cf_clearance") || strings.Contains(c, "__cf_bm") {
			return true
		}
	}
	return false
}

func retriableError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func looksLikeResourceLimit(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range []string{"resource limit is reached", "resource limit exceeded", "resource limit"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseRetryAfter accepts either an integer-seconds value or an HTTP-date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}

// recordFailure applies the §4.5.4 cache-mutation rules for a failing
// status and returns the updated snapshot.
func (f *Fetcher) recordFailure(normalizedURL string, nowEpochS int64, status int, kind feedcache.ErrorKind, retryAfter time.Duration) feedcache.Cache {
	return f.cache.Mutate(normalizedURL, func(c feedcache.Cache) feedcache.Cache {
		c.FeedURL = normalizedURL
		c.ConsecutiveFailures++
		c.LastStatus = status
		c.LastErrorKind = kind
		c.LastFetchEpochS = nowEpochS

		cooldown := f.cooldownFor(kind)
		if kind == feedcache.ErrorRateLimited429 && retryAfter > 0 {
			if secs := int64(retryAfter / time.Second); secs > cooldown {
				cooldown = secs
			}
		}
		c.BlockedUntilEpochS = nowEpochS + cooldown
		return c
	})
}

func (f *Fetcher) cooldownFor(kind feedcache.ErrorKind) int64 {
	switch kind {
	case feedcache.ErrorBlocked401, feedcache.ErrorBlocked403:
		return f.cfg.CooldownBlockedSecs
	case feedcache.ErrorNotFound404:
		return f.cfg.CooldownNotFoundSecs
	case feedcache.ErrorRateLimited429:
		return f.cfg.CooldownRateLimitSecs
	default:
		return f.cfg.CooldownBlockedSecs
	}
}

// GuessExtensionFromContentType is a small helper used by C6 when an
// enclosure's MIME type needs mapping back to a file extension.
func GuessExtensionFromContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mt)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}
