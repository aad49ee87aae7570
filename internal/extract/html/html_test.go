package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStripsChromeAndTags(t *testing.T) {
	doc := []byte(`<html><head><style>.x{}</style></head><body>
		<header>Skip me</header>
		<nav>Skip too</nav>
		<article><p>Hello &amp; welcome</p></article>
		<footer>Skip me too</footer>
	</body></html>`)
	text, err := Extract(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello & welcome")
	assert.NotContains(t, text, "Skip me")
	assert.NotContains(t, text, "Skip too")
}

func TestStripTagsDecodesEntities(t *testing.T) {
	got := StripTags(`<b>Tom &amp; Jerry</b> said &quot;hi&quot;`)
	assert.Equal(t, `Tom & Jerry said "hi"`, got)
}
