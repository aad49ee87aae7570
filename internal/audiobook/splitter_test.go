package audiobook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripDashedLinesRemovesDividers(t *testing.T) {
	text := "Intro\n---\nBody\n===\nEnd"
	got := stripDashedLines(text)
	assert.NotContains(t, got, "---")
	assert.NotContains(t, got, "===")
	assert.Contains(t, got, "Intro")
	assert.Contains(t, got, "Body")
}

func TestSplitTextByParagraph(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	chunks := splitText(text)
	assert.Equal(t, []string{"First paragraph.", "Second paragraph."}, chunks)
}

func TestSplitTextBreaksLongParagraphBySentence(t *testing.T) {
	sentence := strings.Repeat("a", 600) + "."
	text := sentence + " " + sentence
	chunks := splitText(text)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxChunkChars+1)
	}
}

func TestSplitChunksByCountDistributesEvenly(t *testing.T) {
	chunks := []string{"a", "b", "c", "d", "e"}
	parts := splitChunksByCount(chunks, 2)
	assert.Len(t, parts, 2)
	assert.Equal(t, []string{"a", "b", "c"}, parts[0])
	assert.Equal(t, []string{"d", "e"}, parts[1])
}

func TestSplitChunksByCountShrinksToChunkCount(t *testing.T) {
	chunks := []string{"a", "b"}
	parts := splitChunksByCount(chunks, 5)
	assert.Len(t, parts, 2)
}

func TestCollectMarkerPositionsRequiresNewlineAnchor(t *testing.T) {
	text := "Chapter 1\nCHAPTERX is not a marker\nChapter 2"
	positions := collectMarkerPositions(text, "Chapter", true)
	// Both real occurrences are newline-anchored (start of text, after \n);
	// "CHAPTERX" doesn't match case-sensitively so it's excluded anyway.
	assert.Len(t, positions, 2)
}

func TestBuildPartsByPositionsSplitsAtEachMarker(t *testing.T) {
	text := "Chapter 1\nFirst content.\nChapter 2\nSecond content."
	positions := collectMarkerPositions(text, "Chapter", true)
	parts := buildPartsByPositions(text, positions)
	assert.Len(t, parts, 2)
}
