package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/taglift/pkg/plugin"
)

var (
	emailLinkSelectors = []string{
		`a[href^="mailto:"]`,
		`.pv-contact-info__contact-type a[href^="mailto:"]`,
		`[data-test-contact-type="email"] a`,
		".ci-email a",
	}

	phoneLinkSelectors = []string{
		`a[href^="tel:"]`,
		`.pv-contact-info__contact-type a[href^="tel:"]`,
		`[data-test-contact-type="phone"] a`,
		".ci-phone a",
	}

	modalContentSelector = ".pv-contact-info, .artdeco-modal__content"

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d{1,4}[\s\-]?\(?\d{1,4}\)?[\s\-]?\d{1,4}[\s\-]?\d{1,9}`)
)

// minPhoneDigits rejects dates, years and counts that the loose phone
// pattern would otherwise match.
const minPhoneDigits = 7

// ContactFromDocument reads email and phone from an open contact info modal.
// Direct mailto:/tel: links win; the modal's free text is the fallback.
func ContactFromDocument(doc *goquery.Document, modalSelector string) (c plugin.Contact) {
	if doc == nil {
		return plugin.Contact{}
	}
	defer func() {
		if recover() != nil {
			c = plugin.Contact{}
		}
	}()

	c.Email = firstLink(doc, emailLinkSelectors, emailFromHref)
	c.Phone = firstLink(doc, phoneLinkSelectors, phoneFromHref)
	if c.Email != "" && c.Phone != "" {
		return c
	}

	modal := doc.Find(modalSelector).First()
	if modal.Length() == 0 {
		return c
	}
	section := modal.Find(modalContentSelector).First()
	if section.Length() == 0 {
		section = modal
	}
	text := section.Text()

	if c.Email == "" {
		c.Email = EmailFromText(text)
	}
	if c.Phone == "" {
		c.Phone = PhoneFromText(text)
	}
	return c
}

// EmailFromText returns the first plausible email address in text.
func EmailFromText(text string) string {
	for _, m := range emailPattern.FindAllString(text, -1) {
		if plausibleEmail(m) {
			return m
		}
	}
	return ""
}

// PhoneFromText returns the first phone-like run in text carrying at least
// seven digits.
func PhoneFromText(text string) string {
	for _, m := range phonePattern.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if digitCount(m) >= minPhoneDigits {
			return m
		}
	}
	return ""
}

func firstLink(doc *goquery.Document, selectors []string, read func(href, text string) string) string {
	for _, selector := range selectors {
		var value string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			value = read(strings.TrimSpace(href), strings.TrimSpace(s.Text()))
			return value == ""
		})
		if value != "" {
			return value
		}
	}
	return ""
}

func emailFromHref(href, text string) string {
	email := strings.TrimPrefix(href, "mailto:")
	// Remove query params (e.g., ?subject=...)
	if idx := strings.Index(email, "?"); idx != -1 {
		email = email[:idx]
	}
	email = strings.TrimSpace(email)
	if strings.Contains(email, "@") {
		return email
	}
	return EmailFromText(text)
}

func phoneFromHref(href, text string) string {
	if strings.HasPrefix(href, "tel:") {
		if phone := strings.TrimSpace(strings.TrimPrefix(href, "tel:")); phone != "" {
			return phone
		}
	}
	return PhoneFromText(text)
}

func plausibleEmail(email string) bool {
	lower := strings.ToLower(email)
	for _, suffix := range []string{".png", ".jpg", ".gif", ".css", ".js"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
