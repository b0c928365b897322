package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileHTML = `<html><body>
<main>
  <div class="ph5 pb5">
    <img alt="Jane's photo">
    <h1 class="text-heading-xlarge inline t-24 v-align-middle break-words">Jane O'Neil-Smith</h1>
    <div class="text-body-medium break-words" data-generated-suggestion-target="x">
      Staff Engineer at Example Corp | Distributed systems
    </div>
    <div class="mt2">
      <span class="text-body-small inline t-black--light break-words"><a href="/company">Example Corp</a></span>
      <span class="text-body-small inline t-black--light break-words">Berlin, Germany</span>
      <span class="text-body-small inline t-black--light break-words">
        <a id="top-card-text-details-contact-info" href="/in/jane/overlay/contact-info/">Contact info</a>
      </span>
    </div>
    <ul>
      <li class="text-body-small"><span class="t-bold">1,234</span> followers</li>
      <li class="text-body-small"><span class="t-bold">500+</span> connections</li>
    </ul>
  </div>
</main>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractAllFromProfile(t *testing.T) {
	f := NewSet(nil).ExtractAll(mustDoc(t, profileHTML))

	assert.Equal(t, "Jane O'Neil-Smith", f.Name)
	assert.Equal(t, "Staff Engineer at Example Corp | Distributed systems", f.Bio)
	assert.Equal(t, "Berlin, Germany", f.Location)
	assert.Equal(t, "500+", f.Connections)
	assert.Equal(t, "1,234", f.Followers)
}

func TestExtractAllOnEmptyPage(t *testing.T) {
	f := NewSet(nil).ExtractAll(mustDoc(t, `<html><body><p>nothing here</p></body></html>`))
	assert.Equal(t, Fields{}, f)

	f = NewSet(nil).ExtractAll(nil)
	assert.Equal(t, Fields{}, f)
}

func TestNameRejectsNonNames(t *testing.T) {
	cases := map[string]string{
		"icon text":  `<h1 class="text-heading-xlarge">★★★</h1>`,
		"too short":  `<h1 class="text-heading-xlarge">Jo</h1>`,
		"has digits": `<h1 class="text-heading-xlarge">User 12345</h1>`,
		"too long":   `<h1 class="text-heading-xlarge">` + strings.Repeat("a", 120) + `</h1>`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, NameRule().Apply(mustDoc(t, html)))
		})
	}
}

func TestNameFallsBackToLaterSelector(t *testing.T) {
	html := `<h1 class="text-heading-xlarge">12</h1>
<div class="pv-text-details__left-panel"><h1>José Álvarez</h1></div>`
	assert.Equal(t, "José Álvarez", NameRule().Apply(mustDoc(t, html)))
}

func TestBioRejectsCountText(t *testing.T) {
	html := `<div class="text-body-medium break-words">500+ connections</div>
<div class="pv-top-card"><div class="pv-text-details__left-panel"><div class="text-body-medium">Product designer</div></div></div>`
	assert.Equal(t, "Product designer", BioRule().Apply(mustDoc(t, html)))
}

func TestLocationHeuristics(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "known place without comma",
			html: `<span class="text-body-small inline t-black--light break-words">Singapore</span>`,
			want: "Singapore",
		},
		{
			name: "no comma and unknown place",
			html: `<span class="text-body-small inline t-black--light break-words">Somewhere</span>`,
			want: "",
		},
		{
			name: "boilerplate skipped",
			html: `<span class="text-body-small inline t-black--light break-words">Contact info, more</span>
<span class="text-body-small inline t-black--light break-words">Austin, Texas</span>`,
			want: "Austin, Texas",
		},
		{
			name: "hyperlinked chip skipped",
			html: `<span class="text-body-small inline t-black--light break-words"><a href="/x">Paris, France</a></span>`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LocationRule().Apply(mustDoc(t, tc.html)))
		})
	}
}

func TestCountsRegexWithoutBold(t *testing.T) {
	html := `<span class="text-body-small">12,500 followers</span>
<span class="text-body-small">342 connections</span>`
	c := ExtractCounts(mustDoc(t, html))
	assert.Equal(t, "12,500", c.Followers)
	assert.Equal(t, "342", c.Connections)
}

func TestCountsFallBackToListItems(t *testing.T) {
	html := `<span class="text-body-small">3 followers</span>
<ul><li>See all</li><li>500+ connections</li></ul>`
	c := ExtractCounts(mustDoc(t, html))
	assert.Equal(t, "3", c.Followers)
	assert.Equal(t, "500+", c.Connections)
}

func TestRuleRecoversFromPanickingPredicate(t *testing.T) {
	r := Rule{
		Selectors: []string{"h1"},
		Accept: func(string, *goquery.Selection) bool {
			panic("boom")
		},
	}
	assert.Empty(t, r.Apply(mustDoc(t, `<h1>Jane Doe</h1>`)))
}
