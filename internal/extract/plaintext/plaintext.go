// Package plaintext decodes raw bytes as text via BOM sniffing, falling
// back to Windows-1252 when the content is not valid UTF-8 (spec §4.10).
package plaintext

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the detected source encoding.
type Encoding string

const (
	EncodingUTF16LE    Encoding = "utf-16le"
	EncodingUTF16BE    Encoding = "utf-16be"
	EncodingUTF8       Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
)

// Decode detects the encoding and returns the decoded text.
func Decode(data []byte) (string, Encoding, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		text, err := decodeWith(data[2:], unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
		return text, EncodingUTF16LE, err
	}
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		text, err := decodeWith(data[2:], unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
		return text, EncodingUTF16BE, err
	}

	trimmed := bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(trimmed) {
		return string(trimmed), EncodingUTF8, nil
	}

	text, err := decodeWith(data, charmap.Windows1252.NewDecoder())
	return text, EncodingWindows1252, err
}

func decodeWith(data []byte, dec transform.Transformer) (string, error) {
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
