// Package pdf extracts text from PDF content streams and re-flows it into
// paragraphs (spec C10). No PDF library was present in the example corpus
// (see DESIGN.md); this is a minimal stream-walking extractor built on
// compress/zlib for FlateDecode streams and regexp for content-stream
// tokenizing, in the spirit of the teacher's small single-purpose parsers.
package pdf

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var streamPattern = regexp.MustCompile(`(?s)<<(.*?)>>\s*stream\r?\n(.*?)endstream`)
var flateFilterPattern = regexp.MustCompile(`/Filter\s*/FlateDecode`)

// textShowPattern matches Tj and TJ operators, capturing their raw operand.
var textShowPattern = regexp.MustCompile(`(?s)(\((?:[^()\\]|\\.)*\)|\[(?:[^\[\]]|\\.)*\])\s*(Tj|TJ)`)

var listMarkerPattern = regexp.MustCompile(`^(?:[-*]\s|\d+\.\s)`)
var sentenceEndPattern = regexp.MustCompile(`[.!?]["')\]]?$`)

// Extract decodes text content streams from raw PDF bytes and returns the
// re-flowed document text.
func Extract(data []byte) string {
	var lines []string
	for _, m := range streamPattern.FindAllSubmatch(data, -1) {
		dict := m[1]
		raw := m[2]
		content := raw
		if flateFilterPattern.Match(dict) {
			if decoded, err := inflate(raw); err == nil {
				content = decoded
			} else {
				continue
			}
		}
		lines = append(lines, streamLines(content)...)
	}
	return reflow(lines)
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// streamLines pulls the text shown by Tj/TJ operators out of a decoded
// content stream, one output line per operator occurrence (PDF content
// streams don't carry paragraph structure; each show operator is treated
// as a line for the re-flow pass).
func streamLines(content []byte) []string {
	var lines []string
	for _, m := range textShowPattern.FindAllSubmatch(content, -1) {
		operand := string(m[1])
		op := string(m[2])
		var text string
		if op == "Tj" {
			text = decodePDFString(operand)
		} else {
			text = decodeTJArray(operand)
		}
		text = strings.TrimRight(text, " ")
		if text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

func decodeTJArray(arr string) string {
	var b strings.Builder
	inner := strings.TrimSuffix(strings.TrimPrefix(arr, "["), "]")
	i := 0
	for i < len(inner) {
		if inner[i] == '(' {
			end := matchingParen(inner, i)
			if end < 0 {
				break
			}
			b.WriteString(decodePDFString(inner[i : end+1]))
			i = end + 1
			continue
		}
		i++
	}
	return b.String()
}

func matchingParen(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodePDFString(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		default:
			if s[i] >= '0' && s[i] <= '7' {
				end := i
				for end < len(s) && end < i+3 && s[end] >= '0' && s[end] <= '7' {
					end++
				}
				if v, err := strconv.ParseUint(s[i:end], 8, 8); err == nil {
					b.WriteByte(byte(v))
				}
				i = end - 1
			} else {
				b.WriteByte(s[i])
			}
		}
	}
	return b.String()
}

// reflow joins consecutive non-empty lines into paragraphs unless the
// previous line is short relative to the average non-list line length and
// ends a sentence, or the current line begins a list item.
func reflow(lines []string) string {
	nonListLens := make([]int, 0, len(lines))
	for _, l := range lines {
		if !listMarkerPattern.MatchString(l) {
			nonListLens = append(nonListLens, len(l))
		}
	}
	avg := average(nonListLens)

	var out strings.Builder
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i == 0 {
			out.WriteString(trimmed)
			continue
		}
		prev := lines[i-1]
		startsNewParagraph := listMarkerPattern.MatchString(trimmed) ||
			(len(prev) < avg && sentenceEndPattern.MatchString(strings.TrimSpace(prev)))

		if startsNewParagraph {
			out.WriteByte('\n')
			out.WriteString(trimmed)
			continue
		}

		joined := out.String()
		if strings.HasSuffix(joined, "-") {
			// De-hyphenate: drop the trailing hyphen and join directly.
			full := joined[:len(joined)-1] + trimmed
			out.Reset()
			out.WriteString(full)
			continue
		}
		out.WriteByte(' ')
		out.WriteString(trimmed)
	}
	return out.String()
}

func average(lens []int) int {
	if len(lens) == 0 {
		return 0
	}
	sum := 0
	for _, l := range lens {
		sum += l
	}
	return sum / len(lens)
}
