package agent

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"golang.org/x/time/rate"
)

// ErrNotProfilePage is returned by Fire for URLs that are not profile pages.
var ErrNotProfilePage = errors.New("not a profile page")

// DefaultUserAgents are rotated across scrapeProfile triggers.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// WarningWait is shown when a trigger is throttled.
const WarningWait = "Please wait before extracting another profile"

// TriggerConfig controls trigger pacing.
type TriggerConfig struct {
	ProfilePattern string
	MinGap         time.Duration
	MaxPerSession  int
	IdleReset      time.Duration
	UserAgents     []string
}

// DefaultTriggerConfig returns the pacing used by the browser surface.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		ProfilePattern: `linkedin\.com/in/`,
		MinGap:         time.Minute,
		MaxPerSession:  20,
		IdleReset:      30 * time.Minute,
		UserAgents:     DefaultUserAgents,
	}
}

// Trigger turns user activations into scrapeProfile messages. Activations
// closer together than MinGap, or beyond MaxPerSession in one session, turn
// into a showWarning instead. A session idle for IdleReset starts over with
// a fresh id.
type Trigger struct {
	cfg     TriggerConfig
	pattern *regexp.Regexp
	limiter *rate.Limiter

	mu        sync.Mutex
	sessionID string
	count     int
	last      time.Time

	now  func() time.Time
	pick func(n int) int
}

func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	def := DefaultTriggerConfig()
	if cfg.ProfilePattern == "" {
		cfg.ProfilePattern = def.ProfilePattern
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = def.MinGap
	}
	if cfg.MaxPerSession <= 0 {
		cfg.MaxPerSession = def.MaxPerSession
	}
	if cfg.IdleReset <= 0 {
		cfg.IdleReset = def.IdleReset
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = def.UserAgents
	}

	pattern, err := regexp.Compile(cfg.ProfilePattern)
	if err != nil {
		return nil, fmt.Errorf("profile pattern: %w", err)
	}

	return &Trigger{
		cfg:       cfg,
		pattern:   pattern,
		limiter:   rate.NewLimiter(rate.Every(cfg.MinGap), 1),
		sessionID: uuid.New().String(),
		now:       time.Now,
		pick:      rand.IntN,
	}, nil
}

// SessionID returns the current correlation id.
func (t *Trigger) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Fire decides what an activation on pageURL turns into. Non-profile pages
// yield ErrNotProfilePage.
func (t *Trigger) Fire(pageURL string) (Message, error) {
	if !t.pattern.MatchString(pageURL) {
		return Message{}, ErrNotProfilePage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) > t.cfg.IdleReset {
		t.count = 0
		t.sessionID = uuid.New().String()
	}

	if !t.limiter.AllowN(now, 1) {
		return Message{Action: ActionShowWarning, Message: WarningWait}, nil
	}
	t.count++
	t.last = now
	if t.count > t.cfg.MaxPerSession {
		return Message{Action: ActionShowWarning, Message: WarningWait}, nil
	}

	return Message{
		Action:    ActionScrapeProfile,
		SessionID: t.sessionID,
		UserAgent: t.cfg.UserAgents[t.pick(len(t.cfg.UserAgents))],
	}, nil
}

// ---------- tags ----------

const (
	maxTagName   = 50
	maxTags      = 10
	defaultColor = "#0A66C2"
)

// ParseTags turns "name" or "name:color" specs into tags, enforcing the
// same limits as the popup: names of 1 to 50 characters, at most 10 tags.
func ParseTags(specs []string) ([]plugin.Tag, error) {
	if len(specs) > maxTags {
		return nil, apperrors.NewValidationError(fmt.Sprintf("at most %d tags allowed", maxTags), "tags", len(specs))
	}
	tags := make([]plugin.Tag, 0, len(specs))
	for _, spec := range specs {
		name, color := spec, defaultColor
		if i := strings.LastIndexByte(spec, ':'); i > 0 {
			name, color = spec[:i], spec[i+1:]
		}
		if n := len([]rune(name)); n < 1 || n > maxTagName {
			return nil, apperrors.NewValidationError(fmt.Sprintf("tag name must be 1-%d characters", maxTagName), "tags", spec)
		}
		if color == "" {
			color = defaultColor
		}
		tags = append(tags, plugin.Tag{Name: name, Color: color})
	}
	return tags, nil
}
