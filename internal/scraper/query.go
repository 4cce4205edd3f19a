package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Query reads text out of a page snapshot. Unparseable markup gives empty
// results rather than errors.
type Query interface {
	// SelectAll returns the text of every element matching selector, in
	// document order
	SelectAll(snapshot, selector string) []string
	// FindScriptContaining returns the first inline script whose text
	// contains marker
	FindScriptContaining(snapshot, marker string) (string, bool)
}

// HTMLQuery implements Query with goquery
type HTMLQuery struct{}

func (HTMLQuery) SelectAll(snapshot, selector string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil
	}

	var texts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts
}

func (HTMLQuery) FindScriptContaining(snapshot, marker string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return "", false
	}

	var found string
	var ok bool
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, marker) {
			found, ok = text, true
			return false
		}
		return true
	})
	return found, ok
}
