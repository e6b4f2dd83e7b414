package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier is the stub transport: it "delivers" by writing the message to
// the log. It never fails.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case ChannelSMS:
		n.log.InfoContext(ctx, "notification.sms",
			"kind", msg.Kind,
			"to", msg.To,
			"message", msg.Body,
		)
	default:
		n.log.InfoContext(ctx, "notification.email",
			"kind", msg.Kind,
			"to", msg.To,
			"subject", msg.Subject,
			"body", msg.Body,
		)
	}
	return nil
}
