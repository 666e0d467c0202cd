package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/rs/zerolog"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

// EmailService sends account notifications.
type EmailService interface {
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendStorageAlert(ctx context.Context, user *models.User, percentage float64) error
}

// EmailConfig configures the SMTP transport.
type EmailConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Username  string `json:"username" mapstructure:"username"`
	Password  string `json:"password" mapstructure:"password"`
	FromEmail string `json:"from_email" mapstructure:"from_email"`
	FromName  string `json:"from_name" mapstructure:"from_name"`
}

// SMTPEmailService sends mail over SMTP, preferring TLS and falling back
// to plain SMTP when the server does not accept a TLS connection.
type SMTPEmailService struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	fromName  string
	templates map[string]*template.Template
	logger    zerolog.Logger
}

// NewSMTPEmailService creates a new SMTP email service.
func NewSMTPEmailService(config *EmailConfig, logger zerolog.Logger) EmailService {
	s := &SMTPEmailService{
		host:      config.Host,
		port:      config.Port,
		username:  config.Username,
		password:  config.Password,
		fromEmail: config.FromEmail,
		fromName:  config.FromName,
		templates: make(map[string]*template.Template),
		logger:    logger.With().Str("service", "email").Logger(),
	}
	s.loadTemplates()
	return s
}

func (s *SMTPEmailService) loadTemplates() {
	welcome := `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
    <h2>Welcome to SkyVault, {{.Name}}!</h2>
    <p>Your account is ready. You have {{.Limit}} of storage waiting for your files.</p>
    <p>Happy uploading,<br>The SkyVault team</p>
</body>
</html>`

	alert := `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
    <h2>Hi {{.Name}},</h2>
    <p>Your SkyVault storage is <strong>{{printf "%.0f" .Percentage}}% full</strong>
    ({{.Used}} of {{.Limit}}).</p>
    <p>Free up space by emptying your trash or removing files you no longer
    need, or your uploads will start failing once the limit is reached.</p>
    <p>The SkyVault team</p>
</body>
</html>`

	s.templates["welcome"] = template.Must(template.New("welcome").Parse(welcome))
	s.templates["storage_alert"] = template.Must(template.New("storage_alert").Parse(alert))
}

// SendWelcomeEmail greets a new account.
func (s *SMTPEmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	body, err := s.render("welcome", map[string]interface{}{
		"Name":  name,
		"Limit": pkg.Files.FormatFileSize(models.DefaultStorageLimit),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, email, "Welcome to SkyVault", body)
}

// SendStorageAlert warns a user that their account crossed a usage
// threshold.
func (s *SMTPEmailService) SendStorageAlert(ctx context.Context, user *models.User, percentage float64) error {
	body, err := s.render("storage_alert", map[string]interface{}{
		"Name":       user.Name,
		"Percentage": percentage,
		"Used":       pkg.Files.FormatFileSize(user.StorageUsed),
		"Limit":      pkg.Files.FormatFileSize(user.StorageLimit),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your SkyVault storage is %.0f%% full", percentage)
	return s.send(ctx, user.Email, subject, body)
}

func (s *SMTPEmailService) render(name string, data map[string]interface{}) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template: %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

func (s *SMTPEmailService) send(ctx context.Context, to, subject, htmlBody string) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.fromName, s.fromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := s.sendWithTLS(addr, auth, to, msg.Bytes()); err != nil {
		s.logger.Warn().Err(err).Msg("TLS send failed, retrying without TLS")
		if err := smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg.Bytes()); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func (s *SMTPEmailService) sendWithTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.fromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	return w.Close()
}

// NopEmailService drops all mail. Used when SMTP is not configured and
// in tests.
type NopEmailService struct{}

func (NopEmailService) SendWelcomeEmail(ctx context.Context, email, name string) error { return nil }

func (NopEmailService) SendStorageAlert(ctx context.Context, user *models.User, percentage float64) error {
	return nil
}
