// Package notify surfaces extraction progress to the user: toasts and a
// summary panel injected into the live page, or log lines on the console.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// Scripter runs JavaScript in the page. *page.Live satisfies it.
type Scripter interface {
	Eval(ctx context.Context, js string, args ...any) error
}

// Toast background per level.
var levelColors = map[plugin.Level]string{
	plugin.LevelSuccess: "#28a745",
	plugin.LevelError:   "#dc3545",
	plugin.LevelWarning: "#f59e0b",
	plugin.LevelInfo:    "#0A66C2",
}

const (
	// DefaultDuration is how long a toast stays up when none is given.
	DefaultDuration = 3 * time.Second
	// PanelDuration is how long the summary panel stays up.
	PanelDuration = 4 * time.Second

	renderTimeout = 5 * time.Second
)

// Toasts stack downward from the top right corner; each one removes itself.
const toastJS = `(message, background, duration) => {
  const stack = document.querySelectorAll('[data-taglift-toast]').length;
  const el = document.createElement('div');
  el.setAttribute('data-taglift-toast', '');
  el.style.cssText = [
    'position: fixed', 'right: 20px', 'top: ' + (20 + stack * 56) + 'px',
    'background: ' + background, 'color: white', 'padding: 12px 16px',
    'border-radius: 6px', 'z-index: 9999', 'font-size: 13px', 'font-weight: 500',
    'font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif',
    'box-shadow: 0 4px 20px rgba(0,0,0,0.15)', 'max-width: 280px',
    'transform: translateX(100%)', 'transition: transform 0.2s ease-out'
  ].join(';');
  el.textContent = message;
  document.body.appendChild(el);
  requestAnimationFrame(() => { el.style.transform = 'translateX(0)'; });
  setTimeout(() => {
    el.style.transform = 'translateX(100%)';
    setTimeout(() => el.remove(), 200);
  }, duration);
}`

const panelJS = `(fields, tags, duration) => {
  const panel = document.createElement('div');
  panel.setAttribute('data-taglift-panel', '');
  panel.style.cssText = [
    'position: fixed', 'top: 50%', 'left: 50%', 'transform: translate(-50%, -50%)',
    'background: white', 'border: 2px solid #0A66C2', 'border-radius: 12px',
    'padding: 20px', 'z-index: 10000', 'font-size: 14px',
    'font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif',
    'box-shadow: 0 8px 32px rgba(0,0,0,0.2)', 'max-width: 400px',
    'max-height: 500px', 'overflow-y: auto'
  ].join(';');

  const title = document.createElement('h3');
  title.textContent = 'Extracted Profile Data';
  title.style.cssText = 'margin: 0 0 15px 0; color: #0A66C2; border-bottom: 1px solid #eee; padding-bottom: 10px;';
  panel.appendChild(title);

  for (const f of fields) {
    const row = document.createElement('div');
    row.style.marginBottom = '10px';
    const label = document.createElement('strong');
    label.textContent = f.label + ': ';
    label.style.color = '#333';
    const value = document.createElement('span');
    value.textContent = f.value;
    value.style.color = '#666';
    row.append(label, value);
    panel.appendChild(row);
  }

  if (tags.length > 0) {
    const box = document.createElement('div');
    box.style.cssText = 'margin-top: 15px; padding-top: 15px; border-top: 1px solid #eee;';
    const label = document.createElement('strong');
    label.textContent = 'Tags: ';
    label.style.color = '#333';
    box.appendChild(label);
    const chips = document.createElement('div');
    chips.style.cssText = 'margin-top: 8px; display: flex; flex-wrap: wrap; gap: 6px;';
    for (const t of tags) {
      const chip = document.createElement('span');
      chip.textContent = t.name;
      chip.style.cssText = 'background: ' + t.color + '20; color: ' + t.color +
        '; border: 1px solid ' + t.color + '; padding: 3px 8px; border-radius: 12px; font-size: 12px; font-weight: 500;';
      chips.appendChild(chip);
    }
    box.appendChild(chips);
    panel.appendChild(box);
  }

  document.body.appendChild(panel);
  setTimeout(() => panel.remove(), duration);
}`

type panelField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Overlay renders notifications inside the live page. Every call returns
// immediately; rendering happens on its own goroutine.
type Overlay struct {
	page   Scripter
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewOverlay(page Scripter, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overlay{page: page, logger: logger}
}

func (o *Overlay) Notify(message string, level plugin.Level, d time.Duration) {
	if d <= 0 {
		d = DefaultDuration
	}
	color, ok := levelColors[level]
	if !ok {
		color = levelColors[plugin.LevelInfo]
	}
	o.render("toast", toastJS, message, color, d.Milliseconds())
}

func (o *Overlay) PresentRecord(rec *plugin.ProfileRecord) {
	if rec == nil {
		return
	}
	o.render("panel", panelJS, recordFields(rec), tagChips(rec.Tags), PanelDuration.Milliseconds())
}

// Wait blocks until every pending render has finished.
func (o *Overlay) Wait() {
	o.wg.Wait()
}

func (o *Overlay) render(kind, js string, args ...any) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Warn("Overlay render panicked", zap.String("kind", kind), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()
		if err := o.page.Eval(ctx, js, args...); err != nil {
			o.logger.Debug("Overlay render failed", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

func recordFields(rec *plugin.ProfileRecord) []panelField {
	all := []panelField{
		{"Name", rec.Name},
		{"Bio", rec.Bio},
		{"Email", rec.Email},
		{"Phone", rec.Phone},
		{"Location", rec.Location},
		{"Connections", rec.Connections},
		{"Followers", rec.Followers},
		{"Profile URL", rec.ProfileURL},
	}
	fields := make([]panelField, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func tagChips(tags []plugin.Tag) []map[string]string {
	chips := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		chips = append(chips, map[string]string{"name": t.Name, "color": t.Color})
	}
	return chips
}
