package pdf

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapRawStream(dict, content string) []byte {
	return []byte("<<" + dict + ">>\nstream\n" + content + "\nendstream")
}

func TestExtractPlainTjOperators(t *testing.T) {
	content := "BT (Hello) Tj (World) Tj ET"
	data := wrapRawStream("/Length 99", content)
	text := Extract(data)
	assert.Contains(t, text, "Hello World")
}

func TestExtractTJArrayWithKerning(t *testing.T) {
	content := "BT [(Hel)3(lo)] TJ ET"
	data := wrapRawStream("/Length 99", content)
	text := Extract(data)
	assert.Equal(t, "Hello", text)
}

func TestExtractDehyphenatesAcrossLines(t *testing.T) {
	content := "BT (foo-) Tj (bar) Tj ET"
	data := wrapRawStream("/Length 99", content)
	text := Extract(data)
	assert.Equal(t, "foobar", text)
}

func TestExtractFlateDecodeStream(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("BT (Compressed text) Tj ET"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := wrapRawStream("/Filter /FlateDecode /Length 42", buf.String())
	text := Extract(data)
	assert.Equal(t, "Compressed text", text)
}

func TestExtractStartsNewParagraphOnListMarker(t *testing.T) {
	content := "BT (Intro text.) Tj (- First item) Tj ET"
	data := wrapRawStream("/Length 99", content)
	text := Extract(data)
	assert.Contains(t, text, "\n- First item")
}
