package provider

import (
	"context"

	"loyalty-topup/config"
	"loyalty-topup/internal/core/domain"

	"github.com/rs/zerolog"
)

// PushNotifier implements ports.Notifier by posting to a push gateway, which
// owns message formatting.
type PushNotifier struct {
	api jsonClient
}

// NewPushNotifier creates a notifier posting to cfg.URL.
func NewPushNotifier(cfg config.NotifyConfig, client HTTPClient) *PushNotifier {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	return &PushNotifier{api: newJSONClient("notify gateway", cfg.URL, cfg.Token, client)}
}

func (n *PushNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	return n.api.post(ctx, "", msg, nil)
}

// LogNotifier only logs notifications. Used when no gateway is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.log.Info().
		Str("recipient", msg.RecipientRef).
		Str("kind", string(msg.Kind)).
		Interface("context", msg.Context).
		Msg("notification (no gateway configured)")
	return nil
}
