package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"time"

	"github.com/ramkansal/taglift/internal/agent"
	"github.com/ramkansal/taglift/internal/config"
	"github.com/ramkansal/taglift/internal/credential"
	"github.com/ramkansal/taglift/internal/delivery"
	"github.com/ramkansal/taglift/internal/notify"
	"github.com/ramkansal/taglift/internal/output"
	"github.com/ramkansal/taglift/internal/page"
	"github.com/ramkansal/taglift/internal/scrape"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// dispatchDelay is how long a background delivery waits before its attempt.
const dispatchDelay = 100 * time.Millisecond

// app carries the loaded configuration into every command and opens shared
// resources on first use.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store plugin.CredentialStore
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &app{cfg: cfg, logger: logger}
}

// signalContext is cancelled on Ctrl+C.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals()...)
}

func (a *app) credentials() (plugin.CredentialStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := credential.Open(credential.Config{
		Backend:    a.cfg.Credential.Backend,
		Service:    a.cfg.Credential.Service,
		RedisHost:  a.cfg.Redis.Host,
		RedisPort:  a.cfg.Redis.Port,
		RedisPass:  a.cfg.Redis.Password,
		RedisDB:    a.cfg.Redis.DB,
		SessionTTL: a.cfg.Session.TTL,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// loggedIn returns the stored credentials or a hint to run auth set.
func (a *app) loggedIn(ctx context.Context) (plugin.Credentials, error) {
	store, err := a.credentials()
	if err != nil {
		return plugin.Credentials{}, err
	}
	creds, err := store.Load(ctx)
	if err != nil {
		return plugin.Credentials{}, fmt.Errorf("not logged in (run `taglift auth set`): %w", err)
	}
	return creds, nil
}

func (a *app) client(messenger plugin.Messenger) *delivery.Client {
	return delivery.NewClient(delivery.ClientConfig{
		BaseURL:     a.cfg.API.BaseURL,
		Timeout:     a.cfg.API.RequestTimeout,
		MaxAttempts: a.cfg.API.MaxAttempts,
		Proxy:       a.cfg.API.Proxy,
	}, messenger, a.logger)
}

// tagClient is the client used outside a browser session. A rejected token
// clears the stored credentials.
func (a *app) tagClient() *delivery.Client {
	return a.client(agent.NewRelay(a.store, nil, a.logger))
}

func (a *app) sessionConfig() scrape.Config {
	cfg := scrape.DefaultConfig()
	cfg.UserAgent = agent.DefaultUserAgents[0]
	cfg.Policy = scrape.Policy{
		ImmediateBypassesGuard: a.cfg.Session.ImmediateBypassesGuard,
		CheckDuplicates:        a.cfg.Session.CheckDuplicates,
	}
	return cfg
}

func (a *app) triggerConfig() agent.TriggerConfig {
	return agent.TriggerConfig{
		ProfilePattern: a.cfg.Trigger.ProfilePattern,
		MinGap:         a.cfg.Trigger.MinGap,
		MaxPerSession:  a.cfg.Trigger.MaxPerSession,
	}
}

func (a *app) openBrowser(ctx context.Context, targetURL string) (*page.Browser, *page.Live, error) {
	browser, err := page.NewBrowser(page.BrowserConfig{
		Timeout:   a.cfg.Browser.Timeout,
		UserAgent: agent.DefaultUserAgents[0],
		Headless:  a.cfg.Browser.Headless,
		Bin:       a.cfg.Browser.Bin,
	})
	if err != nil {
		return nil, nil, err
	}
	live, err := browser.Open(ctx, targetURL)
	if err != nil {
		_ = browser.Close()
		return nil, nil, err
	}
	return browser, live, nil
}

// pipeline is everything bound to one live tab.
type pipeline struct {
	session    *scrape.Session
	store      plugin.CredentialStore
	dispatcher *delivery.Dispatcher
	overlay    *notify.Overlay
}

// buildPipeline wires a session to live. Outbound messages pass through a
// relay that clears credentials on redirectToLogin before reaching
// downstream, which may be nil.
func (a *app) buildPipeline(live *page.Live, downstream plugin.Messenger, out io.Writer) (*pipeline, error) {
	store, err := a.credentials()
	if err != nil {
		return nil, err
	}

	client := a.client(agent.NewRelay(store, downstream, a.logger))
	dispatcher := delivery.NewDispatcher(client, dispatchDelay, a.logger)

	overlay := notify.NewOverlay(live, a.logger)
	notifiers := notify.Multi{overlay, notify.NewConsole(a.logger, out)}
	if a.cfg.Archive.Path != "" {
		notifiers = append(notifiers, notify.NewArchive(output.NewTextWriter(a.cfg.Archive.Path), a.logger))
	}

	session := scrape.NewSession(a.sessionConfig(), scrape.Deps{
		Page:      live,
		Notifier:  notifiers,
		Store:     store,
		Deliverer: client,
		Enqueuer:  dispatcher,
		Logger:    a.logger,
	})

	return &pipeline{session: session, store: store, dispatcher: dispatcher, overlay: overlay}, nil
}

// Close waits for queued deliveries and pending overlay renders.
func (p *pipeline) Close() {
	p.dispatcher.Close()
	p.overlay.Wait()
}
