package notify

import (
	"context"

	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"
)

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log observability.Logger
}

func NewLogNotifier(log observability.Logger) *LogNotifier {
	if log == nil {
		log = observability.NopLogger()
	}
	return &LogNotifier{log: log.With(observability.F("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, email, subject, body string) error {
	logctx.FromOr(ctx, n.log).Info("notification_logged",
		observability.F("to", email),
		observability.F("subject", subject),
		observability.F("body_bytes", len(body)),
	)
	return nil
}
