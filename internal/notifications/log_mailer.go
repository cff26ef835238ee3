package notifications

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogMailer logs instead of sending. Used in dev and when MAIL_DRIVER=log.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer { return &LogMailer{log: log} }

func (n *LogMailer) Send(ctx context.Context, msg Message) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return errors.New("provider down (simulated)")
	}

	if msg.To == "" {
		return ErrNoRecipient
	}

	n.log.InfoContext(ctx, "notification.report_batch",
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.Attachment.Filename,
		"bytes", len(msg.Attachment.Data),
	)
	return nil
}
