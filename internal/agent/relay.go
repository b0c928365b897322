package agent

import (
	"context"

	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// Relay handles outbound messages on behalf of the host: a redirectToLogin
// clears the stored credentials before the message is forwarded.
type Relay struct {
	store  plugin.CredentialStore
	next   plugin.Messenger
	logger *zap.Logger
}

// NewRelay forwards to next, which may be nil.
func NewRelay(store plugin.CredentialStore, next plugin.Messenger, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{store: store, next: next, logger: logger}
}

func (r *Relay) Send(ctx context.Context, msg plugin.OutboundMessage) error {
	if msg.Action == plugin.ActionRedirectToLogin && r.store != nil {
		if err := r.store.Clear(ctx); err != nil {
			r.logger.Warn("Failed to clear credentials", zap.Error(err))
		} else {
			r.logger.Info("Session expired, credentials cleared", zap.String("reason", msg.Reason))
		}
	}
	if r.next == nil {
		return nil
	}
	return r.next.Send(ctx, msg)
}
