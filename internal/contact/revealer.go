// Package contact opens a profile's contact info modal, reads email and
// phone from it and closes it again.
package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/taglift/internal/extractor"
	"github.com/ramkansal/taglift/internal/page"
	"github.com/ramkansal/taglift/internal/wait"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

var (
	affordanceSelectors = []string{
		"a#top-card-text-details-contact-info",
		`a[href*="contact-info"]`,
		`a[data-control-name="contact_see_more"]`,
		`.pv-s-profile-actions a[href*="contact-info"]`,
		`button[aria-label*="contact"]`,
		`a.link-without-visited-state[href*="contact-info"]`,
	}

	closeSelectors = []string{
		".artdeco-modal__dismiss",
		"[data-test-modal-close-btn]",
		".artdeco-modal__header button",
		`[aria-label*="Dismiss"]`,
		`[aria-label*="Close"]`,
	}

	modalSelector    = `.artdeco-modal, .pv-profile-section, [role="dialog"]`
	backdropSelector = ".artdeco-modal__backdrop"
)

// Timings bounds every wait the revealer performs.
type Timings struct {
	ModalTimeout time.Duration
	OpenSettle   time.Duration
	CloseSettle  time.Duration
}

// DefaultTimings returns the waits tuned for the live site.
func DefaultTimings() Timings {
	return Timings{
		ModalTimeout: 5 * time.Second,
		OpenSettle:   800 * time.Millisecond,
		CloseSettle:  300 * time.Millisecond,
	}
}

// FromDocument reads contact fields from a snapshot whose modal is already
// open, such as a saved page.
func FromDocument(doc *goquery.Document) plugin.Contact {
	return extractor.ContactFromDocument(doc, modalSelector)
}

// Revealer drives the contact info modal.
type Revealer struct {
	timings Timings
	logger  *zap.Logger
}

func NewRevealer(timings Timings, logger *zap.Logger) *Revealer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Revealer{timings: timings, logger: logger}
}

// Reveal returns whatever contact details the modal yields. It always
// returns: missing elements end the attempt quietly and unexpected failures
// are logged, never propagated.
func (r *Revealer) Reveal(ctx context.Context, p plugin.Page) (c plugin.Contact) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Contact extraction failed", zap.Any("panic", rec))
			c = plugin.Contact{}
		}
	}()

	c, err := r.reveal(ctx, p)
	if err != nil {
		r.logger.Warn("Contact extraction failed", zap.Error(err))
	}
	return c
}

func (r *Revealer) reveal(ctx context.Context, p plugin.Page) (plugin.Contact, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return plugin.Contact{}, fmt.Errorf("snapshot: %w", err)
	}

	affordance := firstPresent(doc, affordanceSelectors)
	if affordance == "" {
		r.logger.Debug("Contact button not found")
		return plugin.Contact{}, nil
	}

	if err := p.Click(ctx, affordance); err != nil {
		if errors.Is(err, plugin.ErrNotInteractive) {
			return plugin.Contact{}, nil
		}
		return plugin.Contact{}, fmt.Errorf("open contact info: %w", err)
	}

	found, err := page.WaitFor(ctx, p, modalSelector, r.timings.ModalTimeout)
	if err != nil {
		return plugin.Contact{}, err
	}
	if !found {
		r.logger.Debug("Contact modal did not appear", zap.Duration("timeout", r.timings.ModalTimeout))
		return plugin.Contact{}, nil
	}

	if err := wait.Sleep(ctx, r.timings.OpenSettle); err != nil {
		return plugin.Contact{}, err
	}

	doc, err = p.Document(ctx)
	if err != nil {
		return plugin.Contact{}, fmt.Errorf("snapshot modal: %w", err)
	}
	c := extractor.ContactFromDocument(doc, modalSelector)

	r.dismiss(ctx, p, doc)

	if err := wait.Sleep(ctx, r.timings.CloseSettle); err != nil {
		return c, err
	}

	r.logger.Debug("Contact info read",
		zap.Bool("email", c.Email != ""),
		zap.Bool("phone", c.Phone != ""))
	return c, nil
}

// dismiss closes the modal: a close button if there is one, otherwise
// Escape plus a backdrop click.
func (r *Revealer) dismiss(ctx context.Context, p plugin.Page, doc *goquery.Document) {
	if sel := firstPresent(doc, closeSelectors); sel != "" {
		if err := p.Click(ctx, sel); err == nil {
			return
		}
	}

	if err := p.PressEscape(ctx); err != nil {
		r.logger.Debug("Escape dispatch failed", zap.Error(err))
	}
	if doc.Find(backdropSelector).Length() > 0 {
		if err := p.Click(ctx, backdropSelector); err != nil {
			r.logger.Debug("Backdrop click failed", zap.Error(err))
		}
	}
}

func firstPresent(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}
