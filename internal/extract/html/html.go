// Package html extracts plain text from HTML documents for the text
// extraction pipeline (spec C10): strip tags and chrome and decode the
// common named entities. Leading and trailing whitespace is trimmed;
// whitespace left inside the text by removed markup is kept as is.
package html

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extract parses data as HTML and returns its readable text, with
// script/style/nav/header/footer chrome removed.
func Extract(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// StripTags removes markup from a fragment of HTML/XML-ish text and decodes
// the common named entities. It does not attempt full HTML parsing and is
// used for short fragments (feed descriptions, item titles) where a
// goquery document would be overkill.
func StripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return DecodeEntities(b.String())
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// DecodeEntities replaces the common named HTML entities used in feed and
// article content.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
