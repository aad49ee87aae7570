package plaintext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUTF8NoBOM(t *testing.T) {
	text, enc, err := Decode([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, EncodingUTF8, enc)
}

func TestDecodeUTF8WithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...)
	text, enc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, EncodingUTF8, enc)
}

func TestDecodeUTF16LEBOM(t *testing.T) {
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	text, enc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, EncodingUTF16LE, enc)
}

func TestDecodeWindows1252Fallback(t *testing.T) {
	// 0x93/0x94 are curly quotes in Windows-1252, invalid as UTF-8 continuation bytes.
	data := []byte{0x93, 'h', 'i', 0x94}
	text, enc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, EncodingWindows1252, enc)
	assert.Contains(t, text, "hi")
}
