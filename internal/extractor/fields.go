package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selector lists are ordered from the most specific layout variant to the
// most generic one.
var (
	nameSelectors = []string{
		"h1.text-heading-xlarge.inline.t-24.v-align-middle.break-words",
		`h1[class*="text-heading-xlarge"]`,
		".pv-text-details__left-panel h1",
		`h1[data-anonymize="person-name"]`,
		".ph5.pb5 h1",
		"h1.inline.t-24.v-align-middle.break-words",
		".pv-top-card .pv-text-details__left-panel h1",
	}

	bioSelectors = []string{
		".text-body-medium.break-words[data-generated-suggestion-target]",
		"div[data-generated-suggestion-target].text-body-medium.break-words",
		".pv-text-details__left-panel .text-body-medium.break-words",
		".text-body-medium.break-words",
		".pv-top-card .pv-text-details__left-panel .text-body-medium",
		".ph5.pb5 .text-body-medium.break-words",
	}

	locationSelectors = []string{
		".text-body-small.inline.t-black--light.break-words",
		".ph5.pb5 .mt2 .text-body-small",
		".pv-text-details__left-panel .text-body-small.inline",
		"span.text-body-small.inline.t-black--light.break-words",
	}

	countSelector         = ".text-body-small"
	countFallbackSelector = "ul li"
	countBoldSelector     = ".t-bold"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\s\-.']+$`)
	placePattern = regexp.MustCompile(`(?i)\b(India|USA|UK|Canada|Australia|Germany|France|Singapore|Dubai)\b`)

	followersPattern   = regexp.MustCompile(`(?i)(\d[\d,.]*\+?)\s*followers?`)
	connectionsPattern = regexp.MustCompile(`(?i)(\d[\d,.]*\+?)\s*connections?`)
)

// NameRule returns the ranked rule for the profile's display name.
func NameRule() Rule {
	return Rule{
		Selectors: nameSelectors,
		Accept: func(text string, _ *goquery.Selection) bool {
			return lengthBetween(text, 2, 100) && namePattern.MatchString(text)
		},
	}
}

// BioRule returns the ranked rule for the headline below the name.
func BioRule() Rule {
	return Rule{
		Selectors: bioSelectors,
		Accept: func(text string, _ *goquery.Selection) bool {
			return lengthBetween(text, 5, 500) && !containsAny(text, "connection", "follower")
		},
	}
}

// LocationRule returns the ranked rule for the location line. Hyperlinked
// chips share the same classes, so any candidate holding a link is skipped.
func LocationRule() Rule {
	return Rule{
		Selectors: locationSelectors,
		EachMatch: true,
		Accept: func(text string, sel *goquery.Selection) bool {
			if !lengthBetween(text, 2, 100) {
				return false
			}
			if containsAny(text, "contact info", "connection", "follower") {
				return false
			}
			if sel.Find("a").Length() > 0 {
				return false
			}
			return strings.Contains(text, ",") || placePattern.MatchString(text)
		},
	}
}

// Counts holds the audience size strings as displayed on the page.
type Counts struct {
	Connections string
	Followers   string
}

// ExtractCounts scans small-text elements for connection and follower
// counts, falling back to list items when either is still missing.
func ExtractCounts(doc *goquery.Document) (counts Counts) {
	if doc == nil {
		return Counts{}
	}
	defer func() {
		if recover() != nil {
			counts = Counts{}
		}
	}()

	doc.Find(countSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		lower := strings.ToLower(text)

		if counts.Followers == "" && strings.Contains(lower, "follower") {
			counts.Followers = countValue(s, text, followersPattern)
		}
		if counts.Connections == "" && strings.Contains(lower, "connection") {
			counts.Connections = countValue(s, text, connectionsPattern)
		}
	})

	if counts.Connections != "" && counts.Followers != "" {
		return counts
	}

	doc.Find(countFallbackSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if counts.Followers == "" {
			counts.Followers = matchCount(text, followersPattern)
		}
		if counts.Connections == "" {
			counts.Connections = matchCount(text, connectionsPattern)
		}
	})

	return counts
}

// countValue prefers the emphasized child, which holds the bare number.
func countValue(s *goquery.Selection, text string, pattern *regexp.Regexp) string {
	if bold := strings.TrimSpace(s.Find(countBoldSelector).First().Text()); bold != "" {
		return bold
	}
	return matchCount(text, pattern)
}

func matchCount(text string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], ",.")
}
