package audiobook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientErrorMatchesKnownMarkers(t *testing.T) {
	assert.True(t, isTransientError("connection reset by peer"))
	assert.True(t, isTransientError("request TIMEOUT after 30s"))
	assert.True(t, isTransientError("got HTTP 503"))
	assert.True(t, isTransientError("rate limit exceeded"))
}

func TestIsTransientErrorRejectsPermanentFailures(t *testing.T) {
	assert.False(t, isTransientError("no text found"))
	assert.False(t, isTransientError("invalid voice id"))
}

func TestIsAntivirusRelatedMatchesKnownMarkers(t *testing.T) {
	assert.True(t, isAntivirusRelated("Access is denied"))
	assert.True(t, isAntivirusRelated("cannot access the file because it is being used"))
}

func TestIsAntivirusRelatedRejectsUnrelatedErrors(t *testing.T) {
	assert.False(t, isAntivirusRelated("no text found"))
}
