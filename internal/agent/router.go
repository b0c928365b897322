// Package agent connects host surfaces to a scrape session: it routes
// inbound messages, relays outbound ones and paces extraction triggers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ramkansal/taglift/internal/scrape"
	apperrors "github.com/ramkansal/taglift/pkg/errors"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// Inbound message actions.
const (
	ActionScrapeProfile = "scrapeProfile"
	ActionShowWarning   = "showWarning"
	ActionCheckLoaded   = "checkLoaded"
	ActionSetAuthData   = "setAuthData"
)

// Message is an inbound request from a host surface. Action selects which
// of the other fields apply.
type Message struct {
	Action string `json:"action"`

	// scrapeProfile
	SessionID string       `json:"sessionId,omitempty"`
	UserAgent string       `json:"userAgent,omitempty"`
	Tags      []plugin.Tag `json:"tags,omitempty"`
	Immediate bool         `json:"immediate,omitempty"`

	// scrapeProfile and setAuthData
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`

	// showWarning
	Message string `json:"message,omitempty"`
}

// Response answers a Message.
type Response struct {
	Success        bool                  `json:"success"`
	Loaded         bool                  `json:"loaded,omitempty"`
	Message        string                `json:"message,omitempty"`
	Code           string                `json:"code,omitempty"`
	Data           *plugin.ProfileRecord `json:"data,omitempty"`
	ServerResponse json.RawMessage       `json:"serverResponse,omitempty"`
	Queued         bool                  `json:"queued,omitempty"`
}

// Extractor is the part of scrape.Session the router drives.
type Extractor interface {
	Extract(ctx context.Context, req scrape.Request) (*scrape.Result, error)
}

// Router dispatches inbound messages.
type Router struct {
	extractor Extractor
	store     plugin.CredentialStore
	notifier  plugin.Notifier
	logger    *zap.Logger
}

func NewRouter(extractor Extractor, store plugin.CredentialStore, notifier plugin.Notifier, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{extractor: extractor, store: store, notifier: notifier, logger: logger}
}

// Handle processes msg and returns the reply. scrapeProfile blocks until
// the extraction finishes.
func (r *Router) Handle(ctx context.Context, msg Message) Response {
	r.logger.Debug("Message received", zap.String("action", msg.Action))

	switch msg.Action {
	case ActionScrapeProfile:
		return r.scrape(ctx, msg)
	case ActionShowWarning:
		if r.notifier != nil {
			r.notifier.Notify(msg.Message, plugin.LevelWarning, 0)
		}
		return Response{Success: true}
	case ActionCheckLoaded:
		return Response{Success: true, Loaded: true}
	case ActionSetAuthData:
		return r.setAuth(ctx, msg)
	default:
		return Response{Success: false, Message: fmt.Sprintf("unknown action: %q", msg.Action)}
	}
}

func (r *Router) scrape(ctx context.Context, msg Message) Response {
	res, err := r.extractor.Extract(ctx, scrape.Request{
		SessionID:   msg.SessionID,
		UserAgent:   msg.UserAgent,
		Credentials: plugin.Credentials{Username: msg.Username, Token: msg.Token},
		Tags:        msg.Tags,
		Immediate:   msg.Immediate,
	})
	if err != nil {
		return Response{Success: false, Message: err.Error(), Code: apperrors.CodeOf(err)}
	}

	resp := Response{Success: true, Data: res.Record, Queued: res.Queued}
	if res.Response != nil && json.Valid(res.Response.Body) {
		resp.ServerResponse = res.Response.Body
	}
	return resp
}

func (r *Router) setAuth(ctx context.Context, msg Message) Response {
	creds := plugin.Credentials{Username: msg.Username, Token: msg.Token}
	if !creds.Complete() {
		return Response{Success: false, Message: "Invalid auth data", Code: apperrors.CodeValidation}
	}
	if r.store == nil {
		return Response{Success: false, Message: "Failed to store auth data"}
	}
	if err := r.store.Save(ctx, creds); err != nil {
		r.logger.Warn("Failed to store auth data", zap.Error(err))
		return Response{Success: false, Message: "Failed to store auth data", Code: apperrors.CodeOf(err)}
	}
	r.logger.Info("Authentication data set", zap.String("username", creds.Username))
	return Response{Success: true}
}
