package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextDispatchesPlainText(t *testing.T) {
	text, err := Text("notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestTextDispatchesRTF(t *testing.T) {
	text, err := Text("doc.rtf", []byte(`{\rtf1 Hi\par}`))
	require.NoError(t, err)
	assert.Equal(t, "Hi\n", text)
}

func TestTextAudioFileReturnsEmpty(t *testing.T) {
	text, err := Text("song.mp3", []byte{0xFF, 0xFB})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTextUnknownExtensionFallsBackToPlaintext(t *testing.T) {
	text, err := Text("weird.xyz", []byte("fallback text"))
	require.NoError(t, err)
	assert.Equal(t, "fallback text", text)
}

func TestTextDOCXOpenFailedOnGarbage(t *testing.T) {
	_, err := Text("broken.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, ErrOpenFailed)
}
