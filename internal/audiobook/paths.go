// paths.go derives output paths for each exported audiobook part (spec
// C11, grounded on build_output_paths/ensure_unique_folder/unique_path in
// batch_audiobooks_window.rs).
package audiobook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Format is the exported audio container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

var unsafeFilenamePattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// sanitizeFilename replaces characters that are illegal in a Windows/POSIX
// filename with underscores and trims trailing dots/spaces.
func sanitizeFilename(name string) string {
	cleaned := unsafeFilenamePattern.ReplaceAllString(name, "_")
	cleaned = strings.TrimRight(cleaned, " .")
	return cleaned
}

// OutputOptions carries the per-job output placement settings.
type OutputOptions struct {
	OutputFolder     string
	Format           Format
	CreateSubfolder  bool
	AvoidOverwrite   bool
}

// buildOutputPaths derives one path per part for input, creating a unique
// per-file subfolder first when requested.
func buildOutputPaths(input string, partsLen int, opts OutputOptions) ([]string, error) {
	base := sanitizeFilename(stemOf(input))
	if base == "" {
		base = "audiobook"
	}
	ext := string(opts.Format)

	outputDir := opts.OutputFolder
	if opts.CreateSubfolder {
		unique, err := ensureUniqueFolder(filepath.Join(outputDir, base), opts.AvoidOverwrite)
		if err != nil {
			return nil, err
		}
		outputDir = unique
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output folder: %w", err)
		}
	}

	width := digitWidth(partsLen)
	if width < 2 {
		width = 2
	}

	outputs := make([]string, 0, partsLen)
	for idx := 0; idx < partsLen; idx++ {
		var fileName string
		if partsLen > 1 {
			fileName = fmt.Sprintf("%s - %0*d.%s", base, width, idx+1, ext)
		} else {
			fileName = fmt.Sprintf("%s.%s", base, ext)
		}
		path := filepath.Join(outputDir, fileName)
		if opts.AvoidOverwrite {
			path = uniquePath(path)
		} else if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("file already exists: %s", path)
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func digitWidth(n int) int {
	if n <= 0 {
		return 1
	}
	width := 0
	for n > 0 {
		width++
		n /= 10
	}
	return width
}

// ensureUniqueFolder returns base if it doesn't exist, otherwise appends
// " (N)" for N in 1..1000 until a free name is found, or fails if
// avoidOverwrite is false.
func ensureUniqueFolder(base string, avoidOverwrite bool) (string, error) {
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return base, nil
	}
	if !avoidOverwrite {
		return "", fmt.Errorf("folder already exists: %s", base)
	}
	for idx := 1; idx < 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)", base, idx)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unable to find a unique folder name")
}

// uniquePath appends " (N)" before the extension for N in 1..1000 until a
// free file name is found.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for idx := 1; idx < 1000; idx++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, idx, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return path
}
