// Package mail renders and delivers the account emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig mirrors the EMAIL_* settings.
type SMTPConfig struct {
	From     string
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("mail: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mail: to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// no SMTP host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// Recipient is the addressee of an account email.
type Recipient struct {
	Name  string
	Email string
}

func (r Recipient) FirstName() string {
	first, _, _ := strings.Cut(strings.TrimSpace(r.Name), " ")
	return first
}

// Mailer composes the welcome and password-reset emails.
type Mailer struct {
	sender    Sender
	templates *template.Template
}

func NewMailer(sender Sender) (*Mailer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &Mailer{sender: sender, templates: tmpl}, nil
}

func (m *Mailer) SendWelcome(ctx context.Context, to Recipient, url string) error {
	text := fmt.Sprintf("Hi %s,\n\nWelcome to Natours, we're glad to have you!\n"+
		"Upload your user photo here: %s\n", to.FirstName(), url)
	return m.send(ctx, to, "welcome", "Welcome to the Natours Family!", text, url)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to Recipient, url string) error {
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and "+
		"passwordConfirm to: %s.\nIf you didn't forget your password, please ignore this email!\n", url)
	return m.send(ctx, to, "password_reset", "Your password reset token (valid for only 10 minutes)", text, url)
}

func (m *Mailer) send(ctx context.Context, to Recipient, name, subject, text, url string) error {
	var html bytes.Buffer
	data := struct {
		FirstName string
		URL       string
	}{FirstName: to.FirstName(), URL: url}
	if err := m.templates.ExecuteTemplate(&html, name, data); err != nil {
		return fmt.Errorf("mail: render %s: %w", name, err)
	}

	return m.sender.Send(ctx, Message{
		To:      to.Email,
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	})
}
