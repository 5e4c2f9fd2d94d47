package notify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/wneessen/go-mail"

	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

// ErrDisabled is returned by Send when SMTP is not configured
var ErrDisabled = errors.New("mail delivery disabled")

// Message is one outgoing email
type Message struct {
	Subject     string
	Body        string
	Attachments []string // file paths
}

// Mailer delivers messages over SMTP
// ⭐ SSOT: 메일 발송은 여기서만
type Mailer struct {
	cfg    config.SMTPConfig
	logger *logger.Logger
}

// NewMailer creates a mailer; it stays disabled without SMTP_HOST, SMTP_FROM and SMTP_TO
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: log.WithComponent("mailer"),
	}
}

// Enabled reports whether Send will attempt delivery
func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled()
}

// Send delivers msg to every configured recipient
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	mm, err := m.build(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"subject":     msg.Subject,
		"recipients":  len(m.cfg.To),
		"attachments": len(msg.Attachments),
	}).Info("Mail sent")
	return nil
}

// build assembles the MIME message
func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := mm.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	subject := msg.Subject
	if subject == "" {
		subject = "执行结果"
	}
	mm.Subject(subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, path := range msg.Attachments {
		mm.AttachFile(path, mail.WithFileName(filepath.Base(path)))
	}
	return mm, nil
}

// clientOptions picks STARTTLS when requested or on port 587, implicit TLS otherwise
func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}

	if m.cfg.UseTLS || m.cfg.Port == 587 {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithSSL())
	}

	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}
