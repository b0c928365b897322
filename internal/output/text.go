package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ramkansal/taglift/pkg/plugin"
)

// fieldOrder is the order fields appear in the panel.
var fieldOrder = []struct {
	label string
	value func(*plugin.ProfileRecord) string
}{
	{"Name", func(r *plugin.ProfileRecord) string { return r.Name }},
	{"Bio", func(r *plugin.ProfileRecord) string { return r.Bio }},
	{"Email", func(r *plugin.ProfileRecord) string { return r.Email }},
	{"Phone", func(r *plugin.ProfileRecord) string { return r.Phone }},
	{"Location", func(r *plugin.ProfileRecord) string { return r.Location }},
	{"Connections", func(r *plugin.ProfileRecord) string { return r.Connections }},
	{"Followers", func(r *plugin.ProfileRecord) string { return r.Followers }},
}

// RenderRecord formats rec as the plain-text summary panel. Empty fields
// are omitted.
func RenderRecord(rec *plugin.ProfileRecord) string {
	var b strings.Builder

	b.WriteString("  Profile extracted\n")
	b.WriteString("  " + strings.Repeat("-", 50) + "\n")
	for _, f := range fieldOrder {
		if v := f.value(rec); v != "" {
			b.WriteString(fmt.Sprintf("    %-12s %s\n", f.label+":", v))
		}
	}
	if tags := tagList(rec.Tags); tags != "" {
		b.WriteString(fmt.Sprintf("    %-12s %s\n", "Tags:", tags))
	}
	b.WriteString(fmt.Sprintf("    %-12s %s\n", "URL:", rec.ProfileURL))
	return b.String()
}

// TextWriter appends extracted records to a plain text archive file.
type TextWriter struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewTextWriter creates a new plain-text archive writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path, now: time.Now}
}

func (w *TextWriter) Name() string { return "text" }

// WriteRecord appends rec to the archive along with how long extraction took.
func (w *TextWriter) WriteRecord(rec *plugin.ProfileRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n  [%s] session %s (%s)\n",
		rec.ExtractedAt.UTC().Format(time.RFC3339),
		rec.SessionID,
		fmtDur(w.now().Sub(rec.ExtractedAt))))
	b.WriteString(RenderRecord(rec))

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Close()
}

// ---------- helpers ----------

func tagList(tags []plugin.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Color != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", t.Name, t.Color))
		} else {
			parts = append(parts, t.Name)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func fmtDur(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
