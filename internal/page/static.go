package page

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/taglift/internal/wait"
	"github.com/ramkansal/taglift/pkg/plugin"
)

// Static is a read-only plugin.Page over saved HTML. It cannot be clicked,
// so the contact info modal is never reached.
type Static struct {
	url  string
	html string
}

func NewStatic(pageURL, html string) *Static {
	return &Static{url: pageURL, html: html}
}

// LoadFile reads a saved profile page from disk.
func LoadFile(path, pageURL string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if pageURL == "" {
		pageURL = "file://" + path
	}
	return NewStatic(pageURL, string(data)), nil
}

func (s *Static) URL(context.Context) (string, error) { return s.url, nil }

func (s *Static) Document(context.Context) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

func (s *Static) Click(context.Context, string) error { return plugin.ErrNotInteractive }

func (s *Static) PressEscape(context.Context) error { return plugin.ErrNotInteractive }

// WaitFor waits up to timeout for selector to match something on p.
// A timeout yields false, nil.
func WaitFor(ctx context.Context, p plugin.Page, selector string, timeout time.Duration) (bool, error) {
	return wait.Until(ctx, timeout, wait.DefaultInterval, func(ctx context.Context) (bool, error) {
		doc, err := p.Document(ctx)
		if err != nil {
			return false, err
		}
		return doc.Find(selector).Length() > 0, nil
	})
}
