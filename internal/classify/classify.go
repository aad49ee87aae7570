// Package classify turns fetched bytes into a Feed, a Site (list of
// articles), or a single Article (spec C6). It is a pure function over
// bytes except for the bounded recursive re-fetches used for feed discovery
// and hub/pagination probing, which it performs through an injected fetch
// function so it never owns an HTTP client itself.
package classify

import (
	"context"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	extracthtml "github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract/html"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/urlkey"
)

// Kind is the classification result discriminant.
type Kind string

const (
	KindFeed    Kind = "feed"
	KindSite    Kind = "site"
	KindArticle Kind = "article"
)

// Item is one normalized feed/site entry.
type Item struct {
	GUID           string
	Title          string
	Link           string
	PublishedEpoch int64
	Excerpt        string
	EnclosureURL   string
	EnclosureMIME  string
	DedupKey       string
}

// Result is the classifier's output.
type Result struct {
	Kind  Kind
	Title string
	Items []Item
	// Body is the reader-mode extracted article text, set only for Kind ==
	// Article.
	Body string
}

// Config carries the extraction/discovery knobs from spec §4.5/§4.6.
type Config struct {
	MaxItemsPerFeed int
	MaxExcerptChars int
}

// RefetchFunc lets the classifier recursively ask C5 for candidate feed/hub
// URLs. It must honor cache and cooldown exactly as a direct C5 call would.
type RefetchFunc func(ctx context.Context, url string) ([]byte, error)

const (
	maxExtraRequests  = 8
	burstSize         = 2
	burstPause        = 2000 * time.Millisecond
	minArticlesNoHub  = 12
)

var hubPathPattern = regexp.MustCompile(`(?i)/(blog|news|articles|biblioteca|archivio)/`)

var blockedMarkers = []string{"just a moment", "cf-chl", "attention required"}

// Classify runs the full C6 pipeline: feed parse, HTML feed discovery,
// article-list/hub discovery, pagination probing, and classification.
func Classify(ctx context.Context, body []byte, sourceURL string, cfg Config, refetch RefetchFunc) (*Result, error) {
	if feed, ok := parseFeed(body, cfg); ok {
		return feed, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return lastResortArticle(body, sourceURL), nil
	}

	if refetch != nil {
		if feed, ok := discoverFeedFromHTML(ctx, doc, sourceURL, cfg, refetch); ok {
			return feed, nil
		}
	}

	links := extractArticleLinks(doc, sourceURL)
	budget := maxExtraRequests

	if len(links) < minArticlesNoHub && refetch != nil {
		hubs := discoverHubs(doc, sourceURL)
		links, budget = exploreHubs(ctx, hubs, links, budget, refetch)
	}

	if len(links) > 0 {
		items := normalizeItems(links, cfg)
		return &Result{Kind: KindSite, Title: pageTitle(doc), Items: items}, nil
	}

	if hasOGTypeArticle(doc) {
		return articleFromSelf(doc, sourceURL), nil
	}
	return lastResortArticle(body, sourceURL), nil
}

func parseFeed(body []byte, cfg Config) (*Result, bool) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil || feed == nil || len(feed.Items) == 0 {
		return nil, false
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := feedItemLink(it)
		var publishedEpoch int64
		if it.PublishedParsed != nil {
			publishedEpoch = it.PublishedParsed.Unix()
		}
		enclosureURL, enclosureMIME := feedEnclosure(it)
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		items = append(items, Item{
			GUID:           it.GUID,
			Title:          title,
			Link:           link,
			PublishedEpoch: publishedEpoch,
			Excerpt:        excerpt(it.Description, cfg.MaxExcerptChars),
			EnclosureURL:   enclosureURL,
			EnclosureMIME:  enclosureMIME,
		})
	}
	items = dedupAndCap(items, cfg.MaxItemsPerFeed)
	return &Result{Kind: KindFeed, Title: feed.Title, Items: items}, true
}

// feedItemLink prefers rel="alternate" or the first non-empty href, falling
// back to the entry id when it parses as an absolute URL.
func feedItemLink(it *gofeed.Item) string {
	if it.Link != "" {
		return it.Link
	}
	for _, l := range it.Links {
		if l != "" {
			return l
		}
	}
	if it.GUID != "" {
		if u, err := url.Parse(it.GUID); err == nil && u.IsAbs() {
			return it.GUID
		}
	}
	return ""
}

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac"}

// feedEnclosure prefers an explicitly-audio MIME type, falling back to a
// recognized audio file extension.
func feedEnclosure(it *gofeed.Item) (string, string) {
	for _, enc := range it.Enclosures {
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL, enc.Type
		}
	}
	for _, enc := range it.Enclosures {
		lower := strings.ToLower(enc.URL)
		for _, ext := range audioExtensions {
			if strings.HasSuffix(lower, ext) {
				return enc.URL, enc.Type
			}
		}
	}
	return "", ""
}

// discoverFeedFromHTML scans <link rel="alternate"> declarations and
// recursively invokes C5 (via refetch) for each candidate, returning the
// first successful parse.
func discoverFeedFromHTML(ctx context.Context, doc *goquery.Document, baseURL string, cfg Config, refetch RefetchFunc) (*Result, bool) {
	var candidates []string
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		lower := strings.ToLower(typ)
		if !strings.Contains(lower, "rss") && !strings.Contains(lower, "atom") && !strings.Contains(lower, "json") {
			return
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		candidates = append(candidates, resolve(baseURL, href))
	})

	for _, candidateURL := range candidates {
		body, err := refetch(ctx, candidateURL)
		if err != nil {
			continue
		}
		if result, ok := parseFeed(body, cfg); ok {
			return result, true
		}
	}
	return nil, false
}

func extractArticleLinks(doc *goquery.Document, baseURL string) []rawLink {
	var links []rawLink
	seen := map[string]bool{}
	doc.Find("article a[href], main a[href], a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return
		}
		resolved := resolve(baseURL, href)
		key := urlkey.Canonicalize(resolved)
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, rawLink{title: title, link: resolved})
	})
	return links
}

type rawLink struct {
	title string
	link  string
}

func discoverHubs(doc *goquery.Document, baseURL string) []string {
	var hubs []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if !hubPathPattern.MatchString(href) {
			return
		}
		resolved := resolve(baseURL, href)
		key := urlkey.Canonicalize(resolved)
		if seen[key] {
			return
		}
		seen[key] = true
		hubs = append(hubs, resolved)
	})
	return hubs
}

// exploreHubs fetches hub pages in bursts of 2 with a 2000ms pause, bounded
// to 8 extra requests total, extracting article links from each and probing
// one pagination variant per hub.
func exploreHubs(ctx context.Context, hubs []string, links []rawLink, budget int, refetch RefetchFunc) ([]rawLink, int) {
	for i := 0; i < len(hubs) && budget > 0; i += burstSize {
		end := i + burstSize
		if end > len(hubs) {
			end = len(hubs)
		}
		for _, hub := range hubs[i:end] {
			if budget <= 0 {
				break
			}
			budget--
			body, err := refetch(ctx, hub)
			if err != nil {
				continue
			}
			hubDoc, err := goquery.NewDocumentFromReader(bytesReader(body))
			if err != nil {
				continue
			}
			links = append(links, extractArticleLinks(hubDoc, hub)...)

			if budget > 0 && !alreadyPaginated(hub) {
				budget--
				pageURL := paginationVariant(hub)
				if pbody, perr := refetch(ctx, pageURL); perr == nil {
					if pdoc, derr := goquery.NewDocumentFromReader(bytesReader(pbody)); derr == nil {
						links = append(links, extractArticleLinks(pdoc, pageURL)...)
					}
				}
			}
		}
		if end < len(hubs) && budget > 0 {
			select {
			case <-ctx.Done():
				return links, budget
			case <-time.After(burstPause):
			}
		}
	}
	return links, budget
}

func alreadyPaginated(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "/page/") || strings.Contains(lower, "?page=") || strings.Contains(lower, "?paged=")
}

func paginationVariant(hub string) string {
	if strings.Contains(hub, "?") {
		return hub + "&page=2"
	}
	return strings.TrimSuffix(hub, "/") + "/page/2/"
}

func normalizeItems(links []rawLink, cfg Config) []Item {
	items := make([]Item, 0, len(links))
	for _, l := range links {
		if l.title == "" {
			continue
		}
		items = append(items, Item{Title: l.title, Link: l.link})
	}
	return dedupAndCap(items, cfg.MaxItemsPerFeed)
}

// dedupAndCap applies the §3 dedup-key precedence and caps the list at
// max_items_per_feed.
func dedupAndCap(items []Item, maxItems int) []Item {
	seen := map[string]bool{}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		key := urlkey.DedupKey(it.GUID, it.Link, it.Title, it.PublishedEpoch)
		it.DedupKey = key
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if maxItems > 0 && len(out) >= maxItems {
			break
		}
	}
	return out
}

func excerpt(description string, maxChars int) string {
	text := extracthtml.StripTags(description)
	text = strings.TrimSpace(text)
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func hasOGTypeArticle(doc *goquery.Document) bool {
	found := false
	doc.Find(`meta[property="og:type"], meta[name="og:type"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.EqualFold(strings.TrimSpace(v), "article") {
			found = true
		}
	})
	return found
}

func articleFromSelf(doc *goquery.Document, sourceURL string) *Result {
	title := pageTitle(doc)
	body := readerModeExtract(doc)
	return &Result{
		Kind:  KindArticle,
		Title: title,
		Body:  title + "\n\n" + body,
		Items: []Item{{Title: title, Link: sourceURL}},
	}
}

func lastResortArticle(body []byte, sourceURL string) *Result {
	doc, err := goquery.NewDocumentFromReader(bytesReader(body))
	title := sourceURL
	text := ""
	if err == nil {
		title = pageTitle(doc)
		text = readerModeExtract(doc)
	}
	if isProbablyBlocked(string(body)) {
		return &Result{Kind: KindArticle, Title: title, Body: title, Items: []Item{{Title: title, Link: sourceURL}}}
	}
	return &Result{Kind: KindArticle, Title: title, Body: title + "\n\n" + text, Items: []Item{{Title: title, Link: sourceURL}}}
}

// readerModeExtract concatenates the text of article/main content,
// stripping scripts and nav chrome.
func readerModeExtract(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()
	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("main")
	}
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	return strings.TrimSpace(scope.Text())
}

func isProbablyBlocked(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func resolve(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func bytesReader(b []byte) io.Reader {
	return strings.NewReader(string(b))
}
