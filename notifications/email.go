package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/playforge/esports-platform/services"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

// EmailSender доставляет уведомления по SMTP.
type EmailSender struct {
	cfg       SMTPConfig
	templates map[string]emailTemplate
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		templates: map[string]emailTemplate{
			services.TemplateRegistrationSubmitted: {
				subject: "Registration received",
				body: template.Must(template.New("submitted").Parse(
					`<p>Team <b>{{.team_name}}</b> is registered for {{.tournament_name}}.</p>` +
						`<p>Upload verification screenshots for all four players to complete the registration.</p>`,
				)),
			},
			services.TemplateRegistrationVerified: {
				subject: "Registration verified",
				body: template.Must(template.New("verified").Parse(
					`<p>Team <b>{{.team_name}}</b> has been verified. See you in the lobby!</p>`,
				)),
			},
			services.TemplateRegistrationRejected: {
				subject: "Registration rejected",
				body: template.Must(template.New("rejected").Parse(
					`<p>Team <b>{{.team_name}}</b> was rejected.</p><p>Reason: {{.reason}}</p>`,
				)),
			},
		},
	}
}

func (s *EmailSender) Send(ctx context.Context, templateID, recipient string, params map[string]string) (string, error) {
	tmpl, ok := s.templates[templateID]
	if !ok {
		return "", fmt.Errorf("unknown notification template: %s", templateID)
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, params); err != nil {
		return "", fmt.Errorf("failed to render notification body: %w", err)
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", tmpl.subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{recipient}, msg.Bytes()); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}
	return uuid.NewString(), nil
}
