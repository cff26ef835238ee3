package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	FromName string
}

var ErrSMTPNotConfigured = errors.New("SMTP credentials not configured: set SMTP_USER and SMTP_PASSWORD (for Gmail use an App Password)")

// SMTPMailer sends through an authenticated, STARTTLS-mandatory SMTP relay.
// The sender address is the SMTP user.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.User == "" || m.cfg.Password == "" {
		return ErrSMTPNotConfigured
	}
	if msg.To == "" {
		return ErrNoRecipient
	}

	out, err := m.build(msg)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	err = c.DialAndSendWithContext(ctx, out)
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()

	if err := out.FromFormat(m.cfg.FromName, m.cfg.User); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}

	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)

	if len(msg.Attachment.Data) > 0 {
		contentType := msg.Attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		err := out.AttachReader(msg.Attachment.Filename, bytes.NewReader(msg.Attachment.Data),
			mail.WithFileContentType(mail.ContentType(contentType)),
		)
		if err != nil {
			return nil, fmt.Errorf("smtp attach: %w", err)
		}
	}

	return out, nil
}
