package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFallsBackToRTFWhenPayloadIsRTF(t *testing.T) {
	data := []byte(`{\rtf1\ansi Hello\par World}`)
	text := Extract(data)
	assert.Equal(t, "Hello\nWorld", text)
}

func TestExtractPrintableUTF16RunFallback(t *testing.T) {
	data := utf16LEBytes("Hello world")
	// Pad with an even number of non-text bytes (to preserve 2-byte
	// alignment) so the real path is the heuristic, not a compound stream
	// (this isn't a valid OLE2 file).
	data = append([]byte{0x00, 0x00, 0x00, 0x00}, data...)
	text := Extract(data)
	assert.Contains(t, text, "Hello world")
}

func TestExtractPrintableASCIIRunFallback(t *testing.T) {
	// Bytes that are not plausible UTF-16 (two ASCII bytes read as one
	// UTF-16 unit fall outside the accepted Latin-1 range) but contain a
	// long printable ASCII run.
	data := []byte{0x01, 0x02, 0x03}
	data = append(data, []byte("a run of plain ascii text here")...)
	data = append(data, 0x00, 0x01)
	text := Extract(data)
	assert.Contains(t, text, "a run of plain ascii text here")
}

func utf16LEBytes(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}
