// Package urlkey normalizes and canonicalizes source/item URLs (spec §3,
// §4.6, I5/R1/S6) and computes the dedup key precedence used to collapse
// duplicate feed items and episodes.
package urlkey

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

var trackingParamPrefixes = []string{"utm_"}

var trackingParamNames = map[string]bool{
	"gclid":  true,
	"fbclid": true,
	"yclid":  true,
	"mc_cid": true,
	"mc_eid": true,
}

// Normalize prepends "https://" to bare host/path input that has no scheme.
// Normalize is idempotent (R1): normalizing an already-normalized URL is a
// no-op.
func Normalize(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

// Canonicalize produces a stable dedup/identity key: normalize, then strip
// scheme, fragment, common tracking query params, default ports, and a
// trailing slash. Canonicalize is idempotent (I5).
func Canonicalize(input string) string {
	normalized := Normalize(input)
	if normalized == "" {
		return ""
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return canonicalizeFallback(normalized)
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			lower := strings.ToLower(key)
			if trackingParamNames[lower] || hasTrackingPrefix(lower) {
				values.Del(key)
			}
		}
		u.RawQuery = values.Encode()
	}

	stripDefaultPort(u)
	for len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = u.Path[:len(u.Path)-1]
	}

	s := u.String()
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	for len(s) > 1 && strings.HasSuffix(s, "/") {
		s = s[:len(s)-1]
	}
	return s
}

func hasTrackingPrefix(key string) bool {
	for _, p := range trackingParamPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func stripDefaultPort(u *url.URL) {
	host := u.Host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		port := host[idx+1:]
		if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
			u.Host = host[:idx]
		}
	}
}

func canonicalizeFallback(normalized string) string {
	s := normalized
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.Index(s, "#"); idx != -1 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "?"); idx != -1 {
		s = s[:idx]
	}
	for len(s) > 1 && strings.HasSuffix(s, "/") {
		s = s[:len(s)-1]
	}
	return s
}

// Host extracts the host component of a URL for governor/cache keying. It
// returns "" if the URL does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(Normalize(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// DedupKey implements the §3 precedence: non-empty GUID, else canonicalized
// link, else SHA-256 of "title|link|published".
func DedupKey(guid, link, title string, publishedEpochS int64) string {
	if guid != "" {
		return guid
	}
	if link != "" {
		return Canonicalize(link)
	}
	h := sha256.Sum256([]byte(title + "|" + link + "|" + itoa(publishedEpochS)))
	return hex.EncodeToString(h[:])
}

func itoa(v int64) string {
	if v == 0 {
		return ""
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if i == len(buf) {
		i--
		buf[i] = '0'
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
