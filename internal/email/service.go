package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/redmonkez12/wheels-api/internal/config"
	"github.com/redmonkez12/wheels-api/internal/logging"
)

// ErrNotConfigured is returned when the Gmail credentials are missing. The
// check happens per send so the process can start without them.
var ErrNotConfigured = errors.New("GMAIL_USER / GMAIL_APP_PASSWORD not set")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service delivers reset codes through Gmail SMTP
type Service struct {
	smtpHost    string
	smtpPort    string
	user        string
	appPassword string
	fromEmail   string
	appName     string
	sendMail    sendMailFunc
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		smtpHost:    cfg.SMTPHost,
		smtpPort:    cfg.SMTPPort,
		user:        cfg.User,
		appPassword: cfg.AppPassword,
		fromEmail:   cfg.FromAddress(),
		appName:     cfg.AppName,
		sendMail:    smtp.SendMail,
	}
}

// SendResetCode mails the plaintext recovery code to the account holder
func (s *Service) SendResetCode(ctx context.Context, toEmail, code string) error {
	logger := logging.GetLoggerFromContext(ctx)

	if s.user == "" || s.appPassword == "" {
		return ErrNotConfigured
	}

	subject := fmt.Sprintf("%s password reset code", s.appName)
	body, err := renderResetCodeTemplate(s.appName, code)
	if err != nil {
		logger.Error("failed to render reset code email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, subject, body); err != nil {
		logger.Error("failed to send reset code email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("reset code email sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.user, s.appPassword, s.smtpHost)

	msg := buildMessage(s.fromEmail, to, subject, body)

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return s.sendMail(addr, auth, s.fromEmail, []string{to}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))
}

var resetCodeTemplate = template.Must(template.New("resetCode").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body>
    <div style="font-family: Arial, sans-serif; line-height: 1.6; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
        <h2 style="margin: 0 0 12px;">{{.AppName}}</h2>
        <p style="margin: 0 0 8px;">Use this verification code to reset your password:</p>
        <div style="font-size: 24px; font-weight: 700; letter-spacing: 3px; margin: 12px 0;">{{.Code}}</div>
        <p style="margin: 0 0 8px;">This code expires in <b>10 minutes</b>.</p>
        <p style="margin: 0; color: #666;">If you didn't request this, ignore this email.</p>
    </div>
</body>
</html>
`))

func renderResetCodeTemplate(appName, code string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		AppName string
		Code    string
	}{
		AppName: appName,
		Code:    code,
	}

	if err := resetCodeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
