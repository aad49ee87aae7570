// Package doc extracts text from legacy Word binary (.doc) files (spec
// C10). A payload that starts with an RTF header is decoded as RTF
// directly. Otherwise compound-stream piece-table reconstruction is tried,
// falling back to printable UTF-16 runs, then printable ASCII runs, then
// RTF decoding from an RTF header found later in the payload. No
// binary .doc parser was available in the example corpus (see DESIGN.md).
package doc

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/rtf"
)

const minPrintableRunLen = 5

// Extract returns the best-effort text of a .doc payload.
func Extract(data []byte) string {
	if bytes.HasPrefix(data, []byte(`{\rtf`)) {
		return rtf.Extract(data)
	}

	if text, ok := extractFromCompoundStream(data); ok {
		return text
	}

	if text := printableUTF16Runs(data); text != "" {
		return text
	}
	if text := printableASCIIRuns(data); text != "" {
		return text
	}

	idx := bytes.Index(data, []byte(`{\rtf`))
	if idx >= 0 {
		return rtf.Extract(data[idx:])
	}
	return ""
}

func extractFromCompoundStream(data []byte) (string, bool) {
	cf, err := openCompoundFile(data)
	if err != nil {
		return "", false
	}

	wordDoc, ok := cf.stream("WordDocument")
	if !ok || len(wordDoc) < 512 {
		return "", false
	}

	fWhichTblStm := binary.LittleEndian.Uint16(wordDoc[10:12])&0x0200 != 0
	tableStreamName := "0Table"
	if fWhichTblStm {
		tableStreamName = "1Table"
	}
	tableStream, ok := cf.stream(tableStreamName)
	if !ok {
		return "", false
	}

	const fcClxOffset = 154 + 33*8
	if len(wordDoc) < fcClxOffset+8 {
		return "", false
	}
	fcClx := binary.LittleEndian.Uint32(wordDoc[fcClxOffset : fcClxOffset+4])
	lcbClx := binary.LittleEndian.Uint32(wordDoc[fcClxOffset+4 : fcClxOffset+8])
	if lcbClx == 0 || uint64(fcClx)+uint64(lcbClx) > uint64(len(tableStream)) {
		return "", false
	}
	clx := tableStream[fcClx : fcClx+lcbClx]

	plcPcd, ok := findPieceTable(clx)
	if !ok {
		return "", false
	}

	text, ok := reconstructFromPieceTable(plcPcd, wordDoc)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// findPieceTable scans the Clx's sequence of typed blocks for the 0x02
// (Pcdt) block and returns its PlcPcd payload.
func findPieceTable(clx []byte) ([]byte, bool) {
	i := 0
	for i < len(clx) {
		blockType := clx[i]
		i++
		switch blockType {
		case 1:
			if i+2 > len(clx) {
				return nil, false
			}
			cb := int(binary.LittleEndian.Uint16(clx[i : i+2]))
			i += 2 + cb
		case 2:
			if i+4 > len(clx) {
				return nil, false
			}
			lcb := int(binary.LittleEndian.Uint32(clx[i : i+4]))
			i += 4
			if i+lcb > len(clx) {
				return nil, false
			}
			return clx[i : i+lcb], true
		default:
			return nil, false
		}
	}
	return nil, false
}

type piece struct {
	cpStart    int
	cpEnd      int
	compressed bool
	fc         uint32
}

func reconstructFromPieceTable(plcPcd []byte, wordDoc []byte) (string, bool) {
	if len(plcPcd) < 4 {
		return "", false
	}
	n := (len(plcPcd) - 4) / 12
	if n <= 0 {
		return "", false
	}

	cps := make([]int, n+1)
	for i := 0; i <= n; i++ {
		cps[i] = int(binary.LittleEndian.Uint32(plcPcd[i*4 : i*4+4]))
	}

	pcdBase := 4 * (n + 1)
	pieces := make([]piece, n)
	for i := 0; i < n; i++ {
		off := pcdBase + i*8
		if off+8 > len(plcPcd) {
			return "", false
		}
		fcRaw := binary.LittleEndian.Uint32(plcPcd[off+2 : off+6])
		compressed := fcRaw&0x40000000 != 0
		fc := fcRaw &^ 0xC0000000
		pieces[i] = piece{cpStart: cps[i], cpEnd: cps[i+1], compressed: compressed, fc: fc}
	}

	var b strings.Builder
	for _, p := range pieces {
		numChars := p.cpEnd - p.cpStart
		if numChars <= 0 {
			continue
		}
		if p.compressed {
			start := p.fc / 2
			end := start + uint32(numChars)
			if int(end) > len(wordDoc) {
				continue
			}
			b.WriteString(decodeWindows1252Bytes(wordDoc[start:end]))
		} else {
			start := p.fc
			end := start + uint32(numChars)*2
			if int(end) > len(wordDoc) {
				continue
			}
			units := make([]uint16, numChars)
			for i := 0; i < numChars; i++ {
				units[i] = binary.LittleEndian.Uint16(wordDoc[int(start)+i*2 : int(start)+i*2+2])
			}
			b.WriteString(string(utf16Decode(units)))
		}
	}
	return normalizeWordBreaks(b.String()), true
}

// normalizeWordBreaks maps Word's internal paragraph/cell/special-character
// marks to plain newlines and drops field/annotation control characters.
func normalizeWordBreaks(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\r', '\v', '\f':
			b.WriteByte('\n')
		case '\a', '\x13', '\x14', '\x15':
			// table/cell separators and field delimiters carry no text content.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func decodeWindows1252Bytes(b []byte) string {
	var buf strings.Builder
	for _, c := range b {
		if c < 0x80 {
			buf.WriteByte(c)
			continue
		}
		if r, ok := windows1252Table[c]; ok {
			buf.WriteRune(r)
		} else {
			buf.WriteRune(rune(c))
		}
	}
	return buf.String()
}

// windows1252Table covers the 0x80-0x9F range where Windows-1252 diverges
// from Latin-1; bytes 0xA0-0xFF map 1:1 to the same Unicode code points.
var windows1252Table = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„',
	0x85: '…', 0x86: '†', 0x87: '‡', 0x88: 'ˆ',
	0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ',
	0x8E: 'Ž', 0x91: '‘', 0x92: '’', 0x93: '“',
	0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›',
	0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

// printableUTF16Runs scans raw bytes for runs of at least
// minPrintableRunLen consecutive plausible UTF-16LE printable characters,
// used when no piece table could be located.
func printableUTF16Runs(data []byte) string {
	var out []string
	var run []uint16
	flush := func() {
		if len(run) >= minPrintableRunLen {
			out = append(out, string(utf16Decode(run)))
		}
		run = nil
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i : i+2])
		if isPlausibleTextUnit(u) {
			run = append(run, u)
		} else {
			flush()
		}
	}
	flush()
	return strings.Join(out, "\n")
}

// isPlausibleTextUnit restricts the heuristic to the Basic Latin and Latin-1
// Supplement ranges. Real document text almost always falls in this range;
// reinterpreting arbitrary binary noise as UTF-16 otherwise produces
// spurious "printable" code points across the rest of the Unicode space,
// which is the garbage this filter exists to reject.
func isPlausibleTextUnit(u uint16) bool {
	if u == '\t' || u == '\n' {
		return true
	}
	if u >= 0x20 && u <= 0x7E {
		return true
	}
	if u >= 0xA0 && u <= 0xFF {
		return unicode.IsPrint(rune(u))
	}
	return false
}

// printableASCIIRuns is the final heuristic fallback: runs of printable
// ASCII bytes, used when even the UTF-16 heuristic finds nothing.
func printableASCIIRuns(data []byte) string {
	var out []string
	var run []byte
	flush := func() {
		if len(run) >= minPrintableRunLen {
			out = append(out, string(run))
		}
		run = nil
	}
	for _, c := range data {
		if c == '\t' || (c >= 0x20 && c < 0x7F) {
			run = append(run, c)
		} else {
			flush()
		}
	}
	flush()
	return strings.Join(out, "\n")
}
