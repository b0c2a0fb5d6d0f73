package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender records notices instead of delivering them; used when SMTP is off.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendStatusChange(_ context.Context, n StatusChange) error {
	subject, _, err := Render(n)
	if err != nil {
		return err
	}
	s.logger.Info().
		Int64("reservation_id", n.ReservationID).
		Str("email", n.Email).
		Str("status", n.Status).
		Str("subject", subject).
		Msg("Status notification (smtp disabled)")
	return nil
}
