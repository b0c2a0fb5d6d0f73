package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"spacebook/internal/models"
)

// StatusChange is everything a status notice needs, detached from the store.
type StatusChange struct {
	ReservationID int64  `json:"reservation_id"`
	Email         string `json:"email"`
	UserName      string `json:"user_name"`
	SpaceName     string `json:"space_name"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	ReviewerName  string `json:"reviewer_name"`
	IsRecurring   bool   `json:"is_recurring"`
}

// Sender delivers a rendered status notice.
type Sender interface {
	SendStatusChange(ctx context.Context, n StatusChange) error
}

type statusCopy struct {
	Subject string
	Title   string
	Message string
	Color   string
}

var statusCopies = map[string]statusCopy{
	models.StatusApproved: {
		Subject: "Reservation approved",
		Title:   "Your reservation has been approved",
		Message: "We are pleased to let you know that your reservation has been approved.",
		Color:   "#4caf50",
	},
	models.StatusRejected: {
		Subject: "Reservation rejected",
		Title:   "Your reservation has been rejected",
		Message: "We regret to inform you that your reservation has been rejected.",
		Color:   "#f44336",
	},
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Copy.Title}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="border-top: 4px solid {{.Copy.Color}}; padding: 24px;">
    <h2>{{.Copy.Title}}</h2>
    <p>Hello{{if .N.UserName}} {{.N.UserName}}{{end}},</p>
    <p>{{.Copy.Message}}</p>
    <table>
      <tr><td><strong>Space</strong></td><td>{{.N.SpaceName}}</td></tr>
      <tr><td><strong>Date</strong></td><td>{{.N.Date}}</td></tr>
      <tr><td><strong>Time</strong></td><td>{{.N.StartTime}} - {{.N.EndTime}}</td></tr>
      <tr><td><strong>Reason</strong></td><td>{{.N.Reason}}</td></tr>
      {{if .N.ReviewerName}}<tr><td><strong>Reviewed by</strong></td><td>{{.N.ReviewerName}}</td></tr>{{end}}
    </table>
    {{if .N.IsRecurring}}<p>This decision applies to every occurrence of the recurring series.</p>{{end}}
    <p style="font-size: 12px; color: #666;">This is a system-generated message. Do not reply to this email.</p>
  </div>
</body>
</html>
`))

// Render returns the subject and HTML body for n.
func Render(n StatusChange) (string, string, error) {
	c, ok := statusCopies[n.Status]
	if !ok {
		return "", "", fmt.Errorf("no template for status %q", n.Status)
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, struct {
		Copy statusCopy
		N    StatusChange
	}{c, n}); err != nil {
		return "", "", fmt.Errorf("render status email: %w", err)
	}
	return c.Subject + " - Spacebook", buf.String(), nil
}
