package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Accept validates a candidate text read from sel.
type Accept func(text string, sel *goquery.Selection) bool

// Rule is a ranked selector list paired with a validation predicate.
// Selectors are tried in order; the first candidate that passes Accept wins.
type Rule struct {
	Selectors []string

	// EachMatch tries every element a selector matches instead of only the first.
	EachMatch bool

	Accept Accept
}

// Apply evaluates the rule against doc and returns the accepted text, or ""
// when nothing qualifies. It never panics.
func (r Rule) Apply(doc *goquery.Document) (value string) {
	if doc == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			value = ""
		}
	}()

	for _, selector := range r.Selectors {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		if !r.EachMatch {
			matches = matches.First()
		}

		var found string
		matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return true
			}
			if r.Accept == nil || r.Accept(text, s) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// lengthBetween reports whether s has strictly more than min and strictly
// fewer than max characters.
func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n > min && n < max
}

func containsAny(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
