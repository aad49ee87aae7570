// Package epub extracts text from an EPUB's spine documents in reading
// order (spec C10), parsing each XHTML spine item with the pack's goquery
// dependency (grounded on internal/classify's HTML handling).
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type packageDoc struct {
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type manifestItem struct {
	ID   string `xml:"id,attr"`
	Href string `xml:"href,attr"`
}

// partMarkerMaxLen bounds how short a line can be before it's treated as a
// decorative part/chapter marker rather than real body text.
const partMarkerMaxLen = 40

// Extract returns the spine's text content in reading order.
func Extract(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("epub: open zip: %w", err)
	}

	opfPath, err := locateOPF(zr)
	if err != nil {
		return "", err
	}

	opf, err := readFile(zr, opfPath)
	if err != nil {
		return "", fmt.Errorf("epub: read package document: %w", err)
	}

	var pkg packageDoc
	if err := xml.Unmarshal(opf, &pkg); err != nil {
		return "", fmt.Errorf("epub: parse package document: %w", err)
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefByID[item.ID] = item.Href
	}

	opfDir := path.Dir(opfPath)

	var paragraphs []string
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		itemPath := path.Join(opfDir, href)
		body, err := readFile(zr, itemPath)
		if err != nil {
			continue
		}
		paragraphs = append(paragraphs, extractSpineText(body)...)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func locateOPF(zr *zip.Reader) (string, error) {
	raw, err := readFile(zr, "META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("epub: read container.xml: %w", err)
	}
	var c container
	if err := xml.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %w", err)
	}
	if len(c.Rootfiles.Rootfile) == 0 || c.Rootfiles.Rootfile[0].FullPath == "" {
		return "", fmt.Errorf("epub: no rootfile declared")
	}
	return c.Rootfiles.Rootfile[0].FullPath, nil
}

func readFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("epub: file not found: %s", name)
}

// extractSpineText strips tags, decodes entities, and discards lines that
// look like decorative part/chapter markers rather than body text.
func extractSpineText(xhtml []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(xhtml))
	if err != nil {
		return nil
	}
	doc.Find("script, style").Remove()

	var out []string
	doc.Find("body").Find("p, h1, h2, h3, h4, li, div").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || isPartMarker(text) {
			return
		}
		out = append(out, text)
	})
	if len(out) == 0 {
		if text := strings.TrimSpace(doc.Find("body").Text()); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func isPartMarker(text string) bool {
	if len(text) > partMarkerMaxLen {
		return false
	}
	upper := strings.ToUpper(text)
	return strings.HasPrefix(upper, "PART ") || strings.HasPrefix(upper, "CHAPTER ") ||
		strings.HasPrefix(upper, "BOOK ") || strings.Trim(text, "*-— ") == ""
}
