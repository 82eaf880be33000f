package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/email"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
)

//go:embed templates
var templatesFS embed.FS

// Config holds branding used in notifications.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"accountkit"`
}

type kindTemplates struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// Mailer renders account notifications and hands them to an email sender.
type Mailer struct {
	sender    email.EmailSender
	appName   string
	logger    *slog.Logger
	templates map[auth.MessageKind]kindTemplates
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mailer) {
		if l != nil {
			m.logger = l
		}
	}
}

// New parses the embedded templates and returns a Mailer.
func New(sender email.EmailSender, cfg Config, opts ...Option) (*Mailer, error) {
	m := &Mailer{
		sender:    sender,
		appName:   cfg.AppName,
		logger:    logger.Discard(),
		templates: make(map[auth.MessageKind]kindTemplates),
	}
	if m.appName == "" {
		m.appName = "accountkit"
	}
	for _, opt := range opts {
		opt(m)
	}

	subjects := map[auth.MessageKind]string{
		auth.MessageActivation:    "Activate your %s account",
		auth.MessagePasswordReset: "Reset your %s password",
		auth.MessageEmailChanged:  "Your %s email address was changed",
	}
	for kind, subject := range subjects {
		html, err := htmltemplate.ParseFS(templatesFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("mailer: parse %s html: %w", kind, err)
		}
		text, err := texttemplate.ParseFS(templatesFS, "templates/"+string(kind)+".txt")
		if err != nil {
			return nil, fmt.Errorf("mailer: parse %s text: %w", kind, err)
		}
		m.templates[kind] = kindTemplates{
			subject: fmt.Sprintf(subject, m.appName),
			html:    html,
			text:    text,
		}
	}
	return m, nil
}

type templateData struct {
	AppName   string
	Subject   string
	Name      string
	Link      string
	ExpiresIn string
	NewEmail  string
}

// Send implements auth.Mailer.
func (m *Mailer) Send(ctx context.Context, msg auth.Message) error {
	tpl, ok := m.templates[msg.Kind]
	if !ok {
		return fmt.Errorf("mailer: no template for %q", msg.Kind)
	}

	name := msg.Name
	if name == "" {
		name = "there"
	}
	data := templateData{
		AppName:   m.appName,
		Subject:   tpl.subject,
		Name:      name,
		Link:      msg.Link,
		ExpiresIn: humanDuration(msg.ExpiresIn),
		NewEmail:  msg.NewEmail,
	}

	var html, text bytes.Buffer
	if err := tpl.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return fmt.Errorf("mailer: render %s: %w", msg.Kind, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return fmt.Errorf("mailer: render %s: %w", msg.Kind, err)
	}

	err := m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.To,
		Subject:  tpl.subject,
		BodyHTML: html.String(),
		BodyText: text.String(),
		Tag:      string(msg.Kind),
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "notification sent",
		logger.Event(string(msg.Kind)),
		slog.String("to", sanitizer.MaskEmail(msg.To)),
	)
	return nil
}

// humanDuration renders link lifetimes such as "24 hours" or "10 minutes".
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0 && d >= 48*time.Hour:
		return fmt.Sprintf("%d days", d/(24*time.Hour))
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var _ auth.Mailer = (*Mailer)(nil)
