// Package sheet extracts the first sheet of an XLSX or ODS spreadsheet as
// tab/newline-joined text (spec C10). No spreadsheet library was present
// in the example corpus (see DESIGN.md); both formats are zip-of-XML, so
// this follows the teacher's own archive/zip + encoding/xml idiom used
// elsewhere in extract.
package sheet

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Extract dispatches on the zip's member names to the XLSX or ODS reader.
func Extract(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("sheet: open zip: %w", err)
	}

	for _, f := range zr.File {
		if f.Name == "content.xml" {
			return extractODS(zr)
		}
	}
	return extractXLSX(zr)
}

// --- XLSX ---

type sharedStrings struct {
	Items []sharedStringItem `xml:"si"`
}

type sharedStringItem struct {
	T     string      `xml:"t"`
	Runs  []runText   `xml:"r>t"`
}

type runText struct {
	Value string `xml:",chardata"`
}

func (s sharedStringItem) text() string {
	if s.T != "" {
		return s.T
	}
	var b strings.Builder
	for _, r := range s.Runs {
		b.WriteString(r.Value)
	}
	return b.String()
}

type xlsxSheetData struct {
	Rows []xlsxRow `xml:"sheetData>row"`
}

type xlsxRow struct {
	Cells []xlsxCell `xml:"c"`
}

type xlsxCell struct {
	Ref   string `xml:"r,attr"`
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
	Inline struct {
		Text string `xml:"t"`
	} `xml:"is"`
}

func extractXLSX(zr *zip.Reader) (string, error) {
	shared, err := readSharedStrings(zr)
	if err != nil {
		return "", err
	}

	sheetName, err := firstSheetPath(zr)
	if err != nil {
		return "", err
	}

	raw, err := readZipFile(zr, sheetName)
	if err != nil {
		return "", fmt.Errorf("sheet: read sheet: %w", err)
	}

	var sd xlsxSheetData
	if err := xml.Unmarshal(raw, &sd); err != nil {
		return "", fmt.Errorf("sheet: parse sheet xml: %w", err)
	}

	var rows []string
	for _, row := range sd.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = xlsxCellText(c, shared)
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return strings.Join(rows, "\n"), nil
}

func xlsxCellText(c xlsxCell, shared []string) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(c.Value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.Inline.Text
	case "str", "n", "":
		return c.Value
	default:
		return c.Value
	}
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	raw, err := readZipFile(zr, "xl/sharedStrings.xml")
	if err != nil {
		return nil, nil // absent when the workbook has no shared strings
	}
	var ss sharedStrings
	if err := xml.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("sheet: parse shared strings: %w", err)
	}
	out := make([]string, len(ss.Items))
	for i, it := range ss.Items {
		out[i] = it.text()
	}
	return out, nil
}

// firstSheetPath returns the worksheet part for the first sheet by
// numeric ordering of xl/worksheets/sheetN.xml, since workbook.xml's
// declared sheet order can't always be trusted to match without also
// cross-referencing workbook.xml.rels.
func firstSheetPath(zr *zip.Reader) (string, error) {
	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("sheet: no worksheet parts found")
	}
	sheetNumber := func(name string) int {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "xl/worksheets/sheet"), ".xml"))
		if err != nil {
			return int(^uint(0) >> 1)
		}
		return n
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool { return sheetNumber(names[i]) < sheetNumber(names[j]) })
	return names[0], nil
}

// --- ODS ---

type odsDocument struct {
	Body struct {
		Spreadsheet struct {
			Tables []odsTable `xml:"table"`
		} `xml:"spreadsheet"`
	} `xml:"body"`
}

type odsTable struct {
	Rows []odsRow `xml:"table-row"`
}

type odsRow struct {
	Cells []odsCell `xml:"table-cell"`
}

type odsCell struct {
	ValueType string `xml:"value-type,attr"`
	Value     string `xml:"value,attr"`
	Paragraphs []struct {
		Text string `xml:",chardata"`
	} `xml:"p"`
}

func (c odsCell) text() string {
	var b strings.Builder
	for i, p := range c.Paragraphs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	if b.Len() > 0 {
		return b.String()
	}
	return c.Value
}

func extractODS(zr *zip.Reader) (string, error) {
	raw, err := readZipFile(zr, "content.xml")
	if err != nil {
		return "", fmt.Errorf("sheet: read content.xml: %w", err)
	}
	var doc odsDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("sheet: parse content.xml: %w", err)
	}
	if len(doc.Body.Spreadsheet.Tables) == 0 {
		return "", nil
	}
	table := doc.Body.Spreadsheet.Tables[0]

	var rows []string
	for _, row := range table.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.text()
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return strings.Join(rows, "\n"), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
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
	return nil, fmt.Errorf("sheet: file not found: %s", name)
}
