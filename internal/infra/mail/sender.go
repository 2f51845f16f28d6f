package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/route2rise-console/internal/infra/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

var followUpTemplate = template.Must(template.ParseFS(templateFS, "templates/followup.html"))

func NewEmailSender(host string, port int, user, password, from, consoleURL string) *EmailSender {
	return &EmailSender{
		Host:       host,
		Port:       port,
		User:       user,
		Password:   password,
		From:       from,
		ConsoleURL: consoleURL,
	}
}

// RenderFollowUp builds the subject and HTML body of a reminder.
func (s *EmailSender) RenderFollowUp(payload queue.FollowUpPayload) (string, string, error) {
	data := FollowUpEmailData{
		Founder:     payload.AssignedTo,
		CompanyName: payload.CompanyName,
		Sector:      payload.Sector,
		Status:      payload.Status,
		When:        payload.FollowUpAt.Format("Mon, 02 Jan 2006 15:04"),
		ConsoleURL:  s.ConsoleURL,
	}

	var body bytes.Buffer
	if err := followUpTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render follow-up template: %w", err)
	}

	subject := fmt.Sprintf("Follow-up with %s on %s", payload.CompanyName, payload.FollowUpAt.Format("02 Jan"))
	return subject, body.String(), nil
}

func (s *EmailSender) SendFollowUpReminder(_ context.Context, payload queue.FollowUpPayload) error {
	if payload.Recipient == "" {
		return fmt.Errorf("follow-up for lead %s has no recipient", payload.LeadID)
	}

	subject, body, err := s.RenderFollowUp(payload)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", payload.Recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send smtp: %w", err)
	}
	return nil
}
