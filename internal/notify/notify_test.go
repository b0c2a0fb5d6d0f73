package notify

import (
	"bytes"
	"context"
	"io"
	"testing"

	"spacebook/internal/config"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChange(status string) StatusChange {
	return StatusChange{
		ReservationID: 12,
		Email:         "ana@example.com",
		UserName:      "Ana",
		SpaceName:     "Room A",
		Date:          "2025-01-06",
		StartTime:     "09:00",
		EndTime:       "10:00",
		Reason:        "Thesis <defense>",
		Status:        status,
		ReviewerName:  "admin",
	}
}

func TestRender(t *testing.T) {
	subject, body, err := Render(sampleChange(models.StatusApproved))
	require.NoError(t, err)
	assert.Equal(t, "Reservation approved - Spacebook", subject)
	assert.Contains(t, body, "Room A")
	assert.Contains(t, body, "09:00 - 10:00")
	assert.Contains(t, body, "Reviewed by")
	assert.Contains(t, body, "Thesis &lt;defense&gt;")
	assert.NotContains(t, body, "recurring series")

	n := sampleChange(models.StatusRejected)
	n.IsRecurring = true
	n.ReviewerName = ""
	subject, body, err = Render(n)
	require.NoError(t, err)
	assert.Equal(t, "Reservation rejected - Spacebook", subject)
	assert.Contains(t, body, "recurring series")
	assert.NotContains(t, body, "Reviewed by")

	_, _, err = Render(sampleChange(models.StatusPending))
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := NewLogSender(&logger)

	require.NoError(t, s.SendStatusChange(context.Background(), sampleChange(models.StatusApproved)))
	assert.Contains(t, buf.String(), `"reservation_id":12`)
	assert.Contains(t, buf.String(), "Reservation approved")

	assert.Error(t, s.SendStatusChange(context.Background(), sampleChange("unknown")))
}

func TestSMTPMailer(t *testing.T) {
	logger := zerolog.New(io.Discard)

	_, err := NewSMTPMailer(config.SMTPConfig{}, &logger)
	assert.Error(t, err)

	m, err := NewSMTPMailer(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "noreply@example.com",
		FromName: "Spacebook",
	}, &logger)
	require.NoError(t, err)

	msg, err := m.buildMessage(sampleChange(models.StatusApproved))
	require.NoError(t, err)
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, rcpts)

	bad := sampleChange(models.StatusApproved)
	bad.Email = "not an address"
	_, err = m.buildMessage(bad)
	assert.Error(t, err)
}
