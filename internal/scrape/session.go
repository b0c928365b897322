// Package scrape sequences one profile extraction: readiness wait, field
// extractors, contact reveal, validation and delivery.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ramkansal/taglift/internal/contact"
	"github.com/ramkansal/taglift/internal/delivery"
	"github.com/ramkansal/taglift/internal/extractor"
	"github.com/ramkansal/taglift/internal/page"
	"github.com/ramkansal/taglift/internal/wait"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// State is where a session is in its extraction lifecycle.
type State int32

const (
	StateIdle State = iota
	StateExtracting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Policy holds the switches that differ between deployments.
type Policy struct {
	// ImmediateBypassesGuard lets an immediate request start while another
	// extraction is running.
	ImmediateBypassesGuard bool

	// CheckDuplicates asks the server before a synchronous delivery whether
	// the profile was already saved. Immediate requests never check.
	CheckDuplicates bool
}

// Timings bounds the readiness wait.
type Timings struct {
	HeadingTimeout time.Duration
	Settle         time.Duration
}

// Config holds the tunables of a Session.
type Config struct {
	SessionID string
	UserAgent string
	Policy    Policy
	Timings   Timings
	Contact   contact.Timings
}

// DefaultConfig returns the configuration tuned for the live site.
func DefaultConfig() Config {
	return Config{
		Timings: Timings{
			HeadingTimeout: 2 * time.Second,
			Settle:         500 * time.Millisecond,
		},
		Contact: contact.DefaultTimings(),
	}
}

// Deliverer is the synchronous delivery path.
type Deliverer interface {
	Send(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta delivery.RequestMeta) (*delivery.Response, error)
	IsDuplicate(ctx context.Context, rec *plugin.ProfileRecord, creds plugin.Credentials, meta delivery.RequestMeta) (bool, error)
}

// Enqueuer is the fire-and-forget delivery path.
type Enqueuer interface {
	Enqueue(ctx context.Context, job delivery.Job) error
}

// Deps are the collaborators a Session calls. Store, Deliverer and
// Enqueuer may be nil: without a store only request credentials are used,
// and without a delivery path records are extracted but not sent.
type Deps struct {
	Page      plugin.Page
	Notifier  plugin.Notifier
	Store     plugin.CredentialStore
	Deliverer Deliverer
	Enqueuer  Enqueuer
	Logger    *zap.Logger
}

// Request is one scrapeProfile call.
type Request struct {
	SessionID   string
	UserAgent   string
	Credentials plugin.Credentials
	Tags        []plugin.Tag
	Immediate   bool
}

// Result is a successful extraction.
type Result struct {
	Record *plugin.ProfileRecord

	// Response is the server reply on the synchronous path.
	Response *delivery.Response

	// Queued is true when the record was handed to the background path.
	Queued bool
}

// Session owns the extraction state of one page context.
type Session struct {
	id        string
	userAgent string
	config    Config

	page       plugin.Page
	notifier   plugin.Notifier
	store      plugin.CredentialStore
	deliverer  Deliverer
	enqueuer   Enqueuer
	extractors *extractor.Set
	revealer   *contact.Revealer
	logger     *zap.Logger

	active atomic.Int32
	state  atomic.Int32
	now    func() time.Time
}

// NewSession creates a session bound to deps.Page. An empty
// cfg.SessionID gets a random one.
func NewSession(cfg Config, deps Deps) *Session {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", cfg.SessionID))

	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Session{
		id:         cfg.SessionID,
		userAgent:  cfg.UserAgent,
		config:     cfg,
		page:       deps.Page,
		notifier:   notifier,
		store:      deps.Store,
		deliverer:  deps.Deliverer,
		enqueuer:   deps.Enqueuer,
		extractors: extractor.NewSet(logger),
		revealer:   contact.NewRevealer(cfg.Contact, logger),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Session) ID() string { return s.id }

// State returns the outcome of the latest extraction, or StateExtracting
// while one runs.
func (s *Session) State() State { return State(s.state.Load()) }

// Busy reports whether an extraction is running.
func (s *Session) Busy() bool { return s.active.Load() > 0 }

// Notifier returns the notifier the session reports through.
func (s *Session) Notifier() plugin.Notifier { return s.notifier }

// Extract runs one extraction. Every call that passes the re-entrancy guard
// ends with exactly one terminal notification.
func (s *Session) Extract(ctx context.Context, req Request) (*Result, error) {
	bypass := req.Immediate && s.config.Policy.ImmediateBypassesGuard
	if s.active.Add(1) > 1 && !bypass {
		s.active.Add(-1)
		s.logger.Debug("Extraction rejected, another is running")
		s.notifier.Notify("Extraction already in progress", plugin.LevelWarning, 0)
		return nil, apperrors.NewInProgress()
	}
	defer s.active.Add(-1)

	creds, err := s.credentials(ctx, req.Credentials)
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.logger.Info("Extraction aborted", zap.Error(err))
		s.notifier.Notify("Please login first. Click the extension icon to set up credentials.", plugin.LevelError, 6*time.Second)
		return nil, err
	}

	s.state.Store(int32(StateExtracting))
	start := s.now()

	res, err := s.run(ctx, req, creds, start)
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.logger.Warn("Profile extraction failed", zap.Error(err))
		s.notifier.Notify("Failed to process profile: "+err.Error(), plugin.LevelError, 0)
		return nil, err
	}

	s.state.Store(int32(StateSuccess))
	s.logger.Info("Profile extracted",
		zap.String("profile_url", res.Record.ProfileURL),
		zap.Bool("queued", res.Queued),
		zap.Duration("duration", s.now().Sub(start)))
	s.notifier.Notify("Profile extraction completed!", plugin.LevelSuccess, 0)
	s.notifier.PresentRecord(res.Record)
	return res, nil
}

// credentials prefers complete request credentials, then the store.
func (s *Session) credentials(ctx context.Context, given plugin.Credentials) (plugin.Credentials, error) {
	if given.Complete() {
		return given, nil
	}
	if s.store == nil {
		return plugin.Credentials{}, apperrors.NewUnauthenticated()
	}
	stored, err := s.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, plugin.ErrNoCredentials) {
			s.logger.Warn("Credential lookup failed", zap.Error(err))
		}
		return plugin.Credentials{}, apperrors.NewUnauthenticated().WithCause(err)
	}
	if !stored.Complete() {
		return plugin.Credentials{}, apperrors.NewUnauthenticated()
	}
	return stored, nil
}

func (s *Session) run(ctx context.Context, req Request, creds plugin.Credentials, start time.Time) (*Result, error) {
	s.notifier.Notify(fmt.Sprintf("Extracting profile for %s...", creds.Username), plugin.LevelInfo, 0)

	found, err := page.WaitFor(ctx, s.page, "h1", s.config.Timings.HeadingTimeout)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Debug("Heading did not appear, extracting anyway")
	}
	if err := wait.Sleep(ctx, s.config.Timings.Settle); err != nil {
		return nil, err
	}

	meta := s.meta(req)
	pageURL, err := s.page.URL(ctx)
	if err != nil {
		s.logger.Debug("Page URL unavailable", zap.Error(err))
	}
	rec := plugin.NewProfileRecord(pageURL, meta.SessionID, start)

	if doc, err := s.page.Document(ctx); err != nil {
		s.logger.Warn("Page snapshot failed", zap.Error(err))
	} else {
		s.extractors.ExtractAll(doc).ApplyTo(rec)
	}

	if req.Tags != nil {
		rec.Tags = req.Tags
	}

	s.notifier.Notify("Getting contact info...", plugin.LevelInfo, 0)
	c := s.revealer.Reveal(ctx, s.page)
	rec.Email = c.Email
	rec.Phone = c.Phone

	if !rec.Valid() {
		return nil, apperrors.NewInsufficientData()
	}

	res := &Result{Record: rec}
	if req.Immediate {
		s.deliverLater(ctx, res, creds, meta)
		return res, nil
	}
	if err := s.deliverNow(ctx, res, creds, meta); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Session) meta(req Request) delivery.RequestMeta {
	meta := delivery.RequestMeta{SessionID: req.SessionID, UserAgent: req.UserAgent}
	if meta.SessionID == "" {
		meta.SessionID = s.id
	}
	if meta.UserAgent == "" {
		meta.UserAgent = s.userAgent
	}
	return meta
}

// deliverLater hands the record to the background path. Its outcome only
// produces a transient notification.
func (s *Session) deliverLater(ctx context.Context, res *Result, creds plugin.Credentials, meta delivery.RequestMeta) {
	if s.enqueuer == nil {
		s.logger.Debug("No background delivery configured")
		return
	}
	s.notifier.Notify("Saving to database...", plugin.LevelInfo, 0)

	job := delivery.Job{
		Record:      res.Record,
		Credentials: creds,
		Meta:        meta,
		OnDone:      s.reportOutcome,
	}
	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		s.logger.Warn("Background delivery not scheduled", zap.Error(err))
		return
	}
	res.Queued = true
}

func (s *Session) reportOutcome(o delivery.Outcome) {
	switch {
	case o.Err == nil:
		s.notifier.Notify("✓ Saved to database", plugin.LevelSuccess, 2*time.Second)
	case o.AuthRejected:
		// redirectToLogin has already been sent
	case o.Response != nil:
		s.notifier.Notify("⚠ Database save failed", plugin.LevelWarning, 2*time.Second)
	default:
		s.notifier.Notify("⚠ Database connection error", plugin.LevelWarning, 2*time.Second)
	}
}

func (s *Session) deliverNow(ctx context.Context, res *Result, creds plugin.Credentials, meta delivery.RequestMeta) error {
	if s.deliverer == nil {
		s.logger.Debug("No delivery configured")
		return nil
	}

	if s.config.Policy.CheckDuplicates {
		dup, err := s.deliverer.IsDuplicate(ctx, res.Record, creds, meta)
		switch {
		case apperrors.HasCode(err, apperrors.CodeAuthRejected):
			return err
		case err != nil:
			s.logger.Warn("Duplicate check failed, sending anyway", zap.Error(err))
		case dup:
			return apperrors.NewDuplicate(res.Record.ProfileURL)
		}
	}

	s.notifier.Notify("Saving to database...", plugin.LevelInfo, 0)
	resp, err := s.deliverer.Send(ctx, res.Record, creds, meta)
	if err != nil {
		return err
	}
	res.Response = resp
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, plugin.Level, time.Duration) {}
func (nopNotifier) PresentRecord(*plugin.ProfileRecord) {}
