// Package rtf implements a reduced RTF-to-text decoder (spec C10): control
// words for paragraph/line/tab, unicode escapes with a skip-count, hex
// byte escapes honoring the document code page, and known-noise
// destinations skipped outright. No RTF library was present in the example
// corpus; this is a small hand-rolled tokenizer in the spirit of the
// teacher's own small single-purpose parsers (internal/podcast/rss.go).
package rtf

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var noiseDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "headerl": true, "headerr": true, "headerf": true,
	"footer": true, "footerl": true, "footerr": true, "footerf": true,
	"generator": true, "themedata": true, "colorschememapping": true,
	"datastore": true, "fldinst": true, "nonshppict": true,
	"shppict": true, "xmlnstbl": true,
}

// Extract decodes RTF bytes to plain text.
func Extract(data []byte) string {
	d := &decoder{input: string(data), ansiCodePage: 1252, skipUnicode: 1}
	d.run()
	return d.out.String()
}

type groupState struct {
	skip        bool
	unicodeSkip int
}

type decoder struct {
	input string
	pos   int

	out          strings.Builder
	ansiCodePage int
	skipUnicode  int
	pendingSkip  int // number of following \uN unicode chars still to suppress via \ucN

	stack []groupState
	skip  bool // whether output is currently suppressed (inside a noise destination)
}

func (d *decoder) run() {
	for d.pos < len(d.input) {
		c := d.input[d.pos]
		switch c {
		case '{':
			d.stack = append(d.stack, groupState{skip: d.skip, unicodeSkip: d.skipUnicode})
			d.pos++
		case '}':
			if len(d.stack) > 0 {
				top := d.stack[len(d.stack)-1]
				d.stack = d.stack[:len(d.stack)-1]
				d.skip = top.skip
				d.skipUnicode = top.unicodeSkip
			}
			d.pos++
		case '\\':
			d.pos++
			d.handleControl()
		case '\r', '\n':
			d.pos++
		default:
			if !d.skip {
				d.writeByte(c)
			}
			d.pos++
		}
	}
}

func (d *decoder) handleControl() {
	if d.pos >= len(d.input) {
		return
	}
	c := d.input[d.pos]

	if c == '*' {
		// \* marks an optional destination: the rest of its group is noise,
		// whether or not the following control word is recognized.
		d.skip = true
		d.pos++
		return
	}
	if c == '\'' {
		d.pos++
		if d.pos+2 <= len(d.input) {
			hex := d.input[d.pos : d.pos+2]
			if v, err := strconv.ParseUint(hex, 16, 8); err == nil {
				d.pos += 2
				if !d.skip {
					d.writeANSIByte(byte(v))
				}
				return
			}
		}
		return
	}
	if !isAlpha(c) {
		// Escaped literal character (\\, \{, \}) or unrecognized symbol control word.
		if !d.skip {
			d.writeByte(c)
		}
		d.pos++
		return
	}

	word, param, hasParam := d.readControlWord()
	switch word {
	case "par", "line":
		if !d.skip {
			d.out.WriteByte('\n')
		}
	case "tab":
		if !d.skip {
			d.out.WriteByte('\t')
		}
	case "ansicpg":
		if hasParam {
			d.ansiCodePage = param
		}
	case "uc":
		if hasParam {
			d.skipUnicode = param
		}
	case "u":
		if hasParam {
			if !d.skip {
				d.out.WriteRune(rune(int16(param)))
			}
			d.skipNUnicodeReplacementChars(d.skipUnicode)
		}
	default:
		if noiseDestinations[word] {
			d.skip = true
		}
	}
}

// skipNUnicodeReplacementChars consumes the ASCII replacement character(s)
// RTF writers emit immediately after \uN, one plain character (or control
// word) per skip-count unit per the \ucN convention.
func (d *decoder) skipNUnicodeReplacementChars(n int) {
	for i := 0; i < n && d.pos < len(d.input); i++ {
		if d.input[d.pos] == '\\' {
			d.pos++
			d.readControlWord()
			continue
		}
		d.pos++
	}
}

func (d *decoder) readControlWord() (word string, param int, hasParam bool) {
	start := d.pos
	for d.pos < len(d.input) && isAlpha(d.input[d.pos]) {
		d.pos++
	}
	word = d.input[start:d.pos]

	negative := false
	if d.pos < len(d.input) && d.input[d.pos] == '-' {
		negative = true
		d.pos++
	}
	numStart := d.pos
	for d.pos < len(d.input) && isDigit(d.input[d.pos]) {
		d.pos++
	}
	if d.pos > numStart {
		v, _ := strconv.Atoi(d.input[numStart:d.pos])
		if negative {
			v = -v
		}
		param, hasParam = v, true
	}
	if d.pos < len(d.input) && d.input[d.pos] == ' ' {
		d.pos++
	}
	return word, param, hasParam
}

func (d *decoder) writeByte(c byte) {
	d.out.WriteByte(c)
}

func (d *decoder) writeANSIByte(b byte) {
	r := rune(b)
	if b >= 0x80 {
		// Code pages without an entry here are decoded as Windows-1252.
		codePages := map[int]*charmap.Charmap{
			1250: charmap.Windows1250, 1251: charmap.Windows1251, 1253: charmap.Windows1253,
			1254: charmap.Windows1254, 1255: charmap.Windows1255, 1256: charmap.Windows1256,
			1257: charmap.Windows1257, 1258: charmap.Windows1258,
		}
		if cm, ok := codePages[d.ansiCodePage]; ok {
			r = cm.DecodeByte(b)
		} else if decoded, ok := windows1252Rune(b); ok {
			r = decoded
		}
	}
	d.out.WriteRune(r)
}

func windows1252Rune(b byte) (rune, bool) {
	dec := charmap.Windows1252.NewDecoder()
	out, err := dec.Bytes([]byte{b})
	if err != nil || len(out) == 0 {
		return 0, false
	}
	r := []rune(string(out))
	if len(r) == 0 {
		return 0, false
	}
	return r[0], true
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
