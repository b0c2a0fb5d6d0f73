package notify

import (
	"context"
	"errors"
	"fmt"

	"spacebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPMailer sends status notices over SMTP.
type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
	logger   *zerolog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zerolog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not initialize smtp client: %w", err)
	}

	return &SMTPMailer{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}, nil
}

func (m *SMTPMailer) SendStatusChange(ctx context.Context, n StatusChange) error {
	msg, err := m.buildMessage(n)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send status email to %s: %w", n.Email, err)
	}
	m.logger.Info().Int64("reservation_id", n.ReservationID).Str("status", n.Status).Msg("Status email sent")
	return nil
}

func (m *SMTPMailer) buildMessage(n StatusChange) (*mail.Msg, error) {
	subject, body, err := Render(n)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if m.fromName != "" {
		err = msg.FromFormat(m.fromName, m.from)
	} else {
		err = msg.From(m.from)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.To(n.Email); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
