package feedcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Cache{}, s.Load("https://example.com/feed"))
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	s, err := Open(path)
	require.NoError(t, err)

	s.Mutate("https://example.com/feed", func(c Cache) Cache {
		c.FeedURL = "https://example.com/feed"
		c.ETag = "abc"
		c.LastModified = "Mon, 01 Jan 2024 00:00:00 GMT"
		c.ConsecutiveFailures = 0
		return c
	})
	require.NoError(t, s.Persist())

	reloaded, err := Open(path)
	require.NoError(t, err)
	got := reloaded.Load("https://example.com/feed")
	assert.Equal(t, "abc", got.ETag)
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", got.LastModified)
}

func TestSuccessClearsFailureState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.json"))
	require.NoError(t, err)

	s.Mutate("u", func(c Cache) Cache {
		c.ConsecutiveFailures = 3
		c.BlockedUntilEpochS = 1000
		c.LastErrorKind = ErrorRateLimited429
		return c
	})

	after := s.Mutate("u", func(c Cache) Cache {
		// simulate a successful fetch clearing failure state
		c.ConsecutiveFailures = 0
		c.BlockedUntilEpochS = 0
		c.LastErrorKind = ""
		c.ETag = "new-etag"
		return c
	})

	assert.Equal(t, ErrorKind(""), after.LastErrorKind)
	assert.Zero(t, after.BlockedUntilEpochS)
	assert.Zero(t, after.ConsecutiveFailures)
}

func TestInCooldown(t *testing.T) {
	c := Cache{BlockedUntilEpochS: 100}
	assert.True(t, c.InCooldown(50))
	assert.False(t, c.InCooldown(100))
	assert.False(t, c.InCooldown(150))
}
