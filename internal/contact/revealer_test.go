package contact

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/stretchr/testify/assert"
)

// fakePage swaps its HTML when a registered selector is clicked.
type fakePage struct {
	mu       sync.Mutex
	html     string
	onClick  map[string]string
	clicks   []string
	escapes  int
	docErr   error
	panicDoc bool
}

func (f *fakePage) URL(context.Context) (string, error) { return "https://example.com/in/jane", nil }

func (f *fakePage) Document(context.Context) (*goquery.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicDoc {
		panic("renderer crashed")
	}
	if f.docErr != nil {
		return nil, f.docErr
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	if next, ok := f.onClick[selector]; ok {
		f.html = next
	}
	return nil
}

func (f *fakePage) PressEscape(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escapes++
	return nil
}

func fastTimings() Timings {
	return Timings{ModalTimeout: 60 * time.Millisecond, OpenSettle: time.Millisecond, CloseSettle: time.Millisecond}
}

const topCard = `<h1>Jane Doe</h1><a id="top-card-text-details-contact-info" href="/in/jane/overlay/contact-info/">Contact info</a>`

func TestRevealReadsModalAndCloses(t *testing.T) {
	p := &fakePage{
		html: topCard,
		onClick: map[string]string{
			"a#top-card-text-details-contact-info": topCard + `<div class="artdeco-modal">
  <button class="artdeco-modal__dismiss">x</button>
  <section class="ci-email"><a href="mailto:jane@example.org">jane@example.org</a></section>
  <section><span>+1 (415) 555-0100</span></section>
</div>`,
			".artdeco-modal__dismiss": topCard,
		},
	}

	c := NewRevealer(fastTimings(), nil).Reveal(context.Background(), p)

	assert.Equal(t, "jane@example.org", c.Email)
	assert.Equal(t, "+1 (415) 555-0100", c.Phone)
	assert.Equal(t, []string{"a#top-card-text-details-contact-info", ".artdeco-modal__dismiss"}, p.clicks)
	assert.Zero(t, p.escapes)
}

func TestRevealWithoutAffordanceIsNoop(t *testing.T) {
	p := &fakePage{html: `<h1>Jane Doe</h1>`}
	c := NewRevealer(fastTimings(), nil).Reveal(context.Background(), p)

	assert.Equal(t, plugin.Contact{}, c)
	assert.Empty(t, p.clicks)
}

func TestRevealModalTimeout(t *testing.T) {
	p := &fakePage{html: topCard}
	start := time.Now()
	c := NewRevealer(fastTimings(), nil).Reveal(context.Background(), p)

	assert.Equal(t, plugin.Contact{}, c)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Len(t, p.clicks, 1)
}

func TestRevealFallsBackToEscapeAndBackdrop(t *testing.T) {
	p := &fakePage{
		html: topCard,
		onClick: map[string]string{
			"a#top-card-text-details-contact-info": topCard +
				`<div class="artdeco-modal__backdrop"></div><div role="dialog"><p>jane@example.org</p></div>`,
		},
	}

	c := NewRevealer(fastTimings(), nil).Reveal(context.Background(), p)

	assert.Equal(t, "jane@example.org", c.Email)
	assert.Equal(t, 1, p.escapes)
	assert.Equal(t, ".artdeco-modal__backdrop", p.clicks[len(p.clicks)-1])
}

func TestRevealSwallowsFailures(t *testing.T) {
	r := NewRevealer(fastTimings(), nil)

	assert.Equal(t, plugin.Contact{}, r.Reveal(context.Background(), &fakePage{docErr: errors.New("detached")}))
	assert.Equal(t, plugin.Contact{}, r.Reveal(context.Background(), &fakePage{panicDoc: true}))
}
