package audiobook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReportJoinsLinesWithCRLF(t *testing.T) {
	dir := t.TempDir()
	results := []resultItem{
		{input: "a.txt", status: StatusDone, outputs: []string{"a.mp3"}},
		{input: "b.txt", status: StatusFailed, errMsg: "no text found"},
	}

	path, err := writeReport(dir, Voice{ID: "en-US-Standard"}, FormatMP3, SplitConfig{PartCount: 1}, results)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, reportFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "\r\n")
	assert.Contains(t, content, "Voice: en-US-Standard")
	assert.Contains(t, content, "Format: MP3")
	assert.Contains(t, content, "Done - a.txt")
	assert.Contains(t, content, "Output: a.mp3")
	assert.Contains(t, content, "Failed - b.txt")
	assert.Contains(t, content, "Error: no text found")
}

func TestSplitDescriptionVariants(t *testing.T) {
	assert.Equal(t, "Split by text: CHAPTER", splitDescription(SplitConfig{SplitByMarker: true, Marker: "CHAPTER"}))
	assert.Equal(t, "Split: disabled", splitDescription(SplitConfig{}))
	assert.Equal(t, "Split parts: 4", splitDescription(SplitConfig{PartCount: 4}))
}

func TestStatusLabelCoversAllStates(t *testing.T) {
	assert.Equal(t, "Done", statusLabel(StatusDone))
	assert.Equal(t, "Failed", statusLabel(StatusFailed))
	assert.Equal(t, "Canceled", statusLabel(StatusCanceled))
	assert.Equal(t, "Running", statusLabel(StatusRunning))
	assert.Equal(t, "Pending", statusLabel(StatusPending))
}
