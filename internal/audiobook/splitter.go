// splitter.go implements text segmentation for audiobook export (spec
// C11, grounded on the original's split_text/build_audiobook_parts_by_positions
// and split_chunks_by_count in batch_audiobooks_window.rs): strip decorative
// divider lines, then build either a uniform split by part count or a
// split anchored on a literal marker string.
package audiobook

import (
	"regexp"
	"strings"
)

const maxChunkChars = 1000

var dashedDividerPattern = regexp.MustCompile(`(?m)^[-=_*]{3,}\s*$`)

// stripDashedLines removes decorative divider lines ("---", "===", "***")
// that carry no readable content.
func stripDashedLines(text string) string {
	return dashedDividerPattern.ReplaceAllString(text, "")
}

// splitText breaks prepared text into TTS-sized chunks, preferring
// paragraph boundaries and falling back to sentence boundaries when a
// paragraph exceeds maxChunkChars.
func splitText(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkChars {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitLongParagraph(para)...)
	}
	return chunks
}

var sentenceBoundaryPattern = regexp.MustCompile(`(?s)([.!?])\s+`)

func splitLongParagraph(para string) []string {
	var out []string
	var cur strings.Builder
	sentences := sentenceBoundaryPattern.Split(para, -1)
	for i, s := range sentences {
		if i > 0 && cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		if cur.Len()+len(s) > maxChunkChars && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// splitChunksByCount groups consecutive chunks into parts of
// ceil(len(chunks)/splitParts) chunks each, the last part taking the
// remainder. The result has at most splitParts parts and can have fewer:
// 5 chunks split 4 ways gives 3 parts of 2, 2 and 1 chunks.
func splitChunksByCount(chunks []string, splitParts int) [][]string {
	if len(chunks) == 0 {
		return nil
	}
	parts := splitParts
	if parts <= 0 {
		parts = 1
	}
	if len(chunks) < parts {
		parts = len(chunks)
	}
	chunksPerPart := (len(chunks) + parts - 1) / parts

	var out [][]string
	for partIdx := 0; partIdx < parts; partIdx++ {
		start := partIdx * chunksPerPart
		end := start + chunksPerPart
		if end > len(chunks) {
			end = len(chunks)
		}
		if start >= end {
			break
		}
		out = append(out, chunks[start:end])
	}
	return out
}

// collectMarkerPositions finds every occurrence of marker in text and
// returns each match's starting byte offset. When requireNewlineAnchor is
// set, only matches immediately following a line break (or at the start of
// text) count.
func collectMarkerPositions(text, marker string, requireNewlineAnchor bool) []int {
	if marker == "" {
		return nil
	}
	var positions []int
	start := 0
	for {
		idx := strings.Index(text[start:], marker)
		if idx < 0 {
			break
		}
		abs := start + idx
		if !requireNewlineAnchor || abs == 0 || text[abs-1] == '\n' {
			positions = append(positions, abs)
		}
		start = abs + len(marker)
	}
	return positions
}

// buildPartsByPositions splits text into parts at each position in
// positions (each position begins a new part); the segment before the
// first position, if non-empty, forms its own leading part. Each part is
// then further broken into chunks via splitText.
func buildPartsByPositions(text string, positions []int) [][]string {
	if len(positions) == 0 {
		return [][]string{splitText(text)}
	}

	var bounds []int
	if positions[0] != 0 {
		bounds = append(bounds, 0)
	}
	bounds = append(bounds, positions...)
	bounds = append(bounds, len(text))

	var parts [][]string
	for i := 0; i < len(bounds)-1; i++ {
		segment := strings.TrimSpace(text[bounds[i]:bounds[i+1]])
		if segment == "" {
			continue
		}
		parts = append(parts, splitText(segment))
	}
	return parts
}
