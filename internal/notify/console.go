package notify

import (
	"io"
	"sync"
	"time"

	"github.com/ramkansal/taglift/internal/output"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// Console reports notifications as log lines and prints the record panel
// to out.
type Console struct {
	logger *zap.Logger
	mu     sync.Mutex
	out    io.Writer
}

func NewConsole(logger *zap.Logger, out io.Writer) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger, out: out}
}

func (c *Console) Notify(message string, level plugin.Level, _ time.Duration) {
	switch level {
	case plugin.LevelError:
		c.logger.Error(message)
	case plugin.LevelWarning:
		c.logger.Warn(message)
	default:
		c.logger.Info(message, zap.String("level", string(level)))
	}
}

func (c *Console) PresentRecord(rec *plugin.ProfileRecord) {
	if rec == nil || c.out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, output.RenderRecord(rec))
}

// Multi fans every call out to each notifier in order.
type Multi []plugin.Notifier

func (m Multi) Notify(message string, level plugin.Level, d time.Duration) {
	for _, n := range m {
		n.Notify(message, level, d)
	}
}

func (m Multi) PresentRecord(rec *plugin.ProfileRecord) {
	for _, n := range m {
		n.PresentRecord(rec)
	}
}

// Archive writes each presented record to an output.TextWriter. It ignores
// plain notifications.
type Archive struct {
	writer *output.TextWriter
	logger *zap.Logger
}

func NewArchive(w *output.TextWriter, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{writer: w, logger: logger}
}

func (a *Archive) Notify(string, plugin.Level, time.Duration) {}

func (a *Archive) PresentRecord(rec *plugin.ProfileRecord) {
	if rec == nil {
		return
	}
	if err := a.writer.WriteRecord(rec); err != nil {
		a.logger.Warn("Failed to archive record", zap.Error(err))
	}
}
