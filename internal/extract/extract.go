// Package extract is the pure dispatcher for text extraction (spec C10):
// it keys on file extension, routes to the matching sub-extractor, and
// maps every failure mode to a single localized "open failed" message.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/doc"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/docx"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/epub"
	extracthtml "github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/html"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/pdf"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/plaintext"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/rtf"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/sheet"
)

// ErrOpenFailed is the single localized failure surfaced for every
// extraction error, regardless of format or underlying cause.
var ErrOpenFailed = fmt.Errorf("document could not be opened")

var audioExtensions = map[string]bool{
	".mp3": true,
}

// Text extracts the readable text of data, dispatching on the lowercased
// extension of name. Audio files return an empty string: the caller knows
// this opens a playback document, not an editable one.
func Text(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".txt", ".log", ".csv", ".md":
		text, _, err := plaintext.Decode(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil

	case ".docx":
		text, err := docx.Extract(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil

	case ".doc":
		return doc.Extract(data), nil

	case ".rtf":
		return rtf.Extract(data), nil

	case ".pdf":
		return pdf.Extract(data), nil

	case ".epub":
		text, err := epub.Extract(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil

	case ".xlsx", ".ods":
		text, err := sheet.Extract(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil

	case ".html", ".htm":
		text, err := extracthtml.Extract(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil

	default:
		if audioExtensions[ext] {
			return "", nil
		}
		text, _, err := plaintext.Decode(data)
		if err != nil {
			return "", ErrOpenFailed
		}
		return text, nil
	}
}
