package extraction

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy pulls one field out of a rendered page. The boolean reports
// whether the strategy produced a usable value.
type Strategy func(doc *goquery.Document) (string, bool)

// SelectorText reads the text of the first element matching selector.
// Whitespace-only text counts as no match.
func SelectorText(selector string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			return "", false
		}
		text := cleanWhitespace(sel.First().Text())
		return text, text != ""
	}
}

// SelectorStrategies builds one SelectorText strategy per selector, in order.
func SelectorStrategies(selectors []string) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, s := range selectors {
		out = append(out, SelectorText(s))
	}
	return out
}

// FirstOf runs strategies in order and returns the first value produced,
// or nil when none matched.
func FirstOf(doc *goquery.Document, strategies ...Strategy) *string {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return &v
		}
	}
	return nil
}

// cleanWhitespace trims every line and drops blank ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
