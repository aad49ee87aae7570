// Package config centralizes the environment-derived knobs consumed by the
// content acquisition, capture, and audiobook pipelines.
package config

import (
	"os"
	"strconv"
	"time"
)

var (
	// Governor (C3)
	GlobalMaxConcurrency  = getEnvInt("HTTP_GLOBAL_MAX_CONCURRENCY", 8)
	PerHostMaxConcurrency = getEnvInt("HTTP_PER_HOST_MAX_CONCURRENCY", 2)
	PerHostRPS            = getEnvFloat("HTTP_PER_HOST_RPS", 1)
	PerHostBurst          = getEnvInt("HTTP_PER_HOST_BURST", 2)
	MaxRetries            = getEnvInt("HTTP_MAX_RETRIES", 4)
	BackoffMaxSecs        = getEnvInt("HTTP_BACKOFF_MAX_SECS", 120)

	// Fetch (C5)
	MaxItemsPerFeed        = getEnvInt("FETCH_MAX_ITEMS_PER_FEED", 5000)
	MaxExcerptChars        = getEnvInt("FETCH_MAX_EXCERPT_CHARS", 512)
	CooldownBlockedSecs    = getEnvInt("FETCH_COOLDOWN_BLOCKED_SECS", 3600)
	CooldownNotFoundSecs   = getEnvInt("FETCH_COOLDOWN_NOT_FOUND_SECS", 86400)
	CooldownRateLimitSecs  = getEnvInt("FETCH_COOLDOWN_RATE_LIMITED_SECS", 300)
	FeedConnectTimeout     = getEnvDuration("FETCH_FEED_CONNECT_TIMEOUT", 4*time.Second)
	FeedTotalTimeout       = getEnvDuration("FETCH_FEED_TOTAL_TIMEOUT", 15*time.Second)
	ArticleConnectTimeout  = getEnvDuration("FETCH_ARTICLE_CONNECT_TIMEOUT", 4*time.Second)
	ArticleTotalTimeout    = getEnvDuration("FETCH_ARTICLE_TOTAL_TIMEOUT", 25*time.Second)

	// Audiobook (C11)
	DefaultSplitMode            = getEnvWithDefault("AUDIOBOOK_SPLIT_MODE", "count")
	DefaultSplitParts           = getEnvInt("AUDIOBOOK_SPLIT_PARTS", 1)
	DefaultSplitMarker          = getEnvWithDefault("AUDIOBOOK_SPLIT_MARKER", "")
	DefaultMarkerRequiresNewline = getEnvWithDefault("AUDIOBOOK_MARKER_REQUIRES_NEWLINE", "true") == "true"
	DefaultVoicePitch           = getEnvFloat("AUDIOBOOK_VOICE_PITCH", 0)
	DefaultVoiceRate            = getEnvFloat("AUDIOBOOK_VOICE_RATE", 1.0)
	DefaultVoiceVolume          = getEnvFloat("AUDIOBOOK_VOICE_VOLUME", 1.0)

	// FeedCache persistence (C4)
	FeedCachePath = getEnvWithDefault("FEEDCACHE_PATH", defaultFeedCachePath())

	// Recording (C7/C8/C9)
	CaptureQueueCapacityFrames  = getEnvInt("CAPTURE_VIDEO_QUEUE_CAPACITY", 30)
	CaptureQueueCapacitySamples = getEnvInt("CAPTURE_AUDIO_QUEUE_CAPACITY", 3000)
	MuxerAudioMaxLag            = getEnvDuration("MUXER_AUDIO_MAX_LAG", 15*time.Second)
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func defaultFeedCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "feedcache.json"
	}
	return dir + "/novapad/feedcache.json"
}
