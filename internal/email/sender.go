package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"recap/internal/config"
	"recap/internal/services"
)

// Summary is the payload of one delivery.
type Summary struct {
	VideoID     string
	Title       string
	ChannelName string
	Body        string
}

// Sender delivers a summary to the configured recipient.
type Sender interface {
	Send(ctx context.Context, summary Summary) error
}

// SMTPSender is the production Sender backed by go-mail.
type SMTPSender struct {
	cfg config.Email
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender builds a sender from the email configuration section.
func NewSMTPSender(cfg config.Email) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send composes and delivers the summary email. Validation problems are
// permanent; connection and protocol failures are transient.
func (s *SMTPSender) Send(ctx context.Context, summary Summary) error {
	if strings.TrimSpace(summary.Body) == "" {
		return services.Wrap(services.ErrValidation, "email", "send", "summary body required", nil)
	}
	if s.cfg.SMTPHost == "" || s.cfg.From == "" || s.cfg.To == "" {
		return services.Wrap(services.ErrConfiguration, "email", "send", "smtp host, from, and to must be configured", nil)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return services.Wrap(services.ErrConfiguration, "email", "send", "invalid from address", err)
	}
	if err := msg.To(s.cfg.To); err != nil {
		return services.Wrap(services.ErrConfiguration, "email", "send", "invalid to address", err)
	}
	msg.Subject(Subject(summary))
	msg.SetBodyString(mail.TypeTextPlain, Body(summary))

	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.TimeoutSeconds > 0 {
		opts = append(opts, mail.WithTimeout(time.Duration(s.cfg.TimeoutSeconds)*time.Second))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "email", "send", "build smtp client", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "email", "send", "smtp delivery", err)
	}
	return nil
}

// Subject renders the subject line for a summary.
func Subject(summary Summary) string {
	title := strings.TrimSpace(summary.Title)
	if title == "" {
		title = summary.VideoID
	}
	if channel := strings.TrimSpace(summary.ChannelName); channel != "" {
		return fmt.Sprintf("[recap] %s: %s", channel, title)
	}
	return "[recap] " + title
}

// Body renders the plain-text body for a summary.
func Body(summary Summary) string {
	var b strings.Builder
	if title := strings.TrimSpace(summary.Title); title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	if channel := strings.TrimSpace(summary.ChannelName); channel != "" {
		b.WriteString(channel)
		b.WriteString("\n")
	}
	b.WriteString("https://www.youtube.com/watch?v=")
	b.WriteString(summary.VideoID)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(summary.Body))
	b.WriteString("\n")
	return b.String()
}
