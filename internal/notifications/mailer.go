package notifications

import (
	"context"
	"errors"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment Attachment
}

// Mailer delivers one message. Errors are passed back to the caller as-is.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("no recipient configured")
