package ingest

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const excerptRunes = 200

// Summary is a short description of an ingested document for listings.
type Summary struct {
	Title   string
	Excerpt string
}

// Summarize derives a title and excerpt from rendered HTML.
// Readability output is preferred; the <title> element and the leading
// visible text are used when it has nothing to offer.
func Summarize(rawHTML, sourcePath string) Summary {
	var s Summary

	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(sourcePath)}
	if article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL); err == nil {
		s.Title = strings.TrimSpace(article.Title)
		s.Excerpt = strings.TrimSpace(article.Excerpt)
	}

	if s.Title != "" && s.Excerpt != "" {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return s
	}
	if s.Title == "" {
		s.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if s.Excerpt == "" {
		s.Excerpt = truncate(strings.Join(strings.Fields(extractText(doc)), " "), excerptRunes)
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
