package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title>
<item>
  <title>First Post</title>
  <link>https://example.com/p/1</link>
  <guid>guid-1</guid>
  <enclosure url="https://example.com/ep1.mp3" type="audio/mpeg" length="123"/>
</item>
<item>
  <title>Second Post</title>
  <link>https://example.com/p/2?utm_source=x</link>
</item>
</channel></rss>`

func TestClassifyFeedParsesItemsAndEnclosures(t *testing.T) {
	result, err := Classify(context.Background(), []byte(sampleRSS), "https://example.com/feed", Config{MaxItemsPerFeed: 100}, nil)
	require.NoError(t, err)
	require.Equal(t, KindFeed, result.Kind)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "guid-1", result.Items[0].DedupKey)
	assert.Equal(t, "https://example.com/ep1.mp3", result.Items[0].EnclosureURL)
	assert.Equal(t, "example.com/p/2", result.Items[1].DedupKey)
}

const sampleSiteHTML = `<html><head><title>My Blog</title></head><body>
<article>
  <a href="/posts/a">Post A</a>
  <a href="/posts/b">Post B</a>
</article>
</body></html>`

func TestClassifySiteWithoutFeedExtractsArticleLinks(t *testing.T) {
	result, err := Classify(context.Background(), []byte(sampleSiteHTML), "https://example.com/", Config{MaxItemsPerFeed: 100}, nil)
	require.NoError(t, err)
	require.Equal(t, KindSite, result.Kind)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "https://example.com/posts/a", result.Items[0].Link)
}

const sampleArticleHTML = `<html><head><title>A Single Article</title>
<meta property="og:type" content="article"/></head>
<body><article><p>Some body text.</p></article></body></html>`

func TestClassifyOGArticleWithoutLinks(t *testing.T) {
	result, err := Classify(context.Background(), []byte(sampleArticleHTML), "https://example.com/a", Config{MaxItemsPerFeed: 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindArticle, result.Kind)
	assert.Contains(t, result.Body, "Some body text.")
}

func TestClassifyLastResortArticle(t *testing.T) {
	result, err := Classify(context.Background(), []byte("<html><body>plain</body></html>"), "https://example.com/x", Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindArticle, result.Kind)
}

func TestClassifyBlockedMarkerDowngradesBody(t *testing.T) {
	blocked := `<html><head><title>Just a moment...</title></head><body>Checking your browser, cf-chl-bypass</body></html>`
	result, err := Classify(context.Background(), []byte(blocked), "https://example.com/y", Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Just a moment...", result.Body)
}

func TestDedupAndCapRespectsMaxItems(t *testing.T) {
	items := []Item{
		{Title: "a", Link: "https://example.com/1"},
		{Title: "b", Link: "https://example.com/2"},
		{Title: "c", Link: "https://example.com/3"},
	}
	out := dedupAndCap(items, 2)
	assert.Len(t, out, 2)
}
