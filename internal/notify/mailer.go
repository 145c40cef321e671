// Package notify delivers completion notices: an email to the project's
// recipient with the uploaded images attached, and an optional webhook post
// to a team channel.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/textproto"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/uploadrelay/uploadrelay/internal/attachment"
)

// DefaultMaxMessageBytes caps the summed attachment payload. Most transactional
// relays reject messages over 10 MiB, so refuse locally before dialing.
const DefaultMaxMessageBytes = 10 << 20

// FailureKind classifies why a delivery did not happen.
type FailureKind int

const (
	// TooLarge means the attachments exceeded the size ceiling. Nothing was
	// sent to the relay.
	TooLarge FailureKind = iota
	// AuthFailed means the relay rejected our credentials.
	AuthFailed
	// TransportFailed covers every other dial or send failure.
	TransportFailed
)

func (k FailureKind) String() string {
	switch k {
	case TooLarge:
		return "too large"
	case AuthFailed:
		return "auth failed"
	default:
		return "transport failed"
	}
}

// DeliveryError reports a failed email delivery with its classification.
type DeliveryError struct {
	Kind FailureKind
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("email delivery failed: %s", e.Kind)
	}

	return fmt.Sprintf("email delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// MailSender is the transport behind the Mailer. *mail.Client satisfies it.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailerConfig carries the SMTP settings for building a Mailer.
type MailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Sender     string
	SenderName string
	// MaxMessageBytes caps total attachment size; DefaultMaxMessageBytes
	// when zero, unlimited when negative.
	MaxMessageBytes int64
}

// Mailer sends status notification emails over SMTP.
type Mailer struct {
	sender   MailSender
	from     string
	fromName string
	maxBytes int64
	logger   *slog.Logger
}

// NewMailer builds a Mailer with a real SMTP client from cfg.
func NewMailer(cfg MailerConfig, logger *slog.Logger) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return newMailer(cfg, client, logger), nil
}

func newMailer(cfg MailerConfig, sender MailSender, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}

	maxBytes := cfg.MaxMessageBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxMessageBytes
	}

	return &Mailer{
		sender:   sender,
		from:     cfg.Sender,
		fromName: cfg.SenderName,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Notice is the content of one status notification email.
type Notice struct {
	Recipient   string
	ProjectID   string
	Status      string
	Attachments []attachment.Attachment
}

// Send delivers the notice. When the attachments exceed the size ceiling it
// returns a DeliveryError with Kind TooLarge without contacting the relay.
func (m *Mailer) Send(ctx context.Context, n Notice) error {
	total := attachment.TotalSize(n.Attachments)
	if m.maxBytes > 0 && total > m.maxBytes {
		m.logger.Warn("email exceeds size ceiling, not sending",
			slog.String("project_id", n.ProjectID),
			slog.Int64("total_bytes", total),
			slog.Int64("max_bytes", m.maxBytes),
		)

		return &DeliveryError{
			Kind: TooLarge,
			Err:  fmt.Errorf("attachments total %d bytes, ceiling %d", total, m.maxBytes),
		}
	}

	msg, err := m.buildMessage(n)
	if err != nil {
		return &DeliveryError{Kind: TransportFailed, Err: err}
	}

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		kind := TransportFailed
		if isAuthError(err) {
			kind = AuthFailed
		}

		return &DeliveryError{Kind: kind, Err: err}
	}

	m.logger.Info("notification email sent",
		slog.String("recipient", n.Recipient),
		slog.String("project_id", n.ProjectID),
		slog.String("status", n.Status),
		slog.Int("attachments", len(n.Attachments)),
	)

	return nil
}

// isAuthError reports whether err is a credential rejection. go-mail runs
// SMTP AUTH during the dial and wraps the failure as a plain error chain, so
// look for the server's 5xx auth reply code and fall back to the wrapper's
// message.
func isAuthError(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return true
		}
	}

	return strings.Contains(err.Error(), "SMTP AUTH failed")
}

func (m *Mailer) buildMessage(n Notice) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}

	if err := msg.To(n.Recipient); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}

	msg.Subject(fmt.Sprintf("Order %s - %s update", n.ProjectID, statusLabel(n.Status)))
	msg.SetBodyString(mail.TypeTextHTML, noticeBody(n))

	for _, att := range n.Attachments {
		if err := msg.AttachReader(att.Name, bytes.NewReader(att.Data),
			mail.WithFileContentType(mail.ContentType(att.ContentType))); err != nil {
			return nil, fmt.Errorf("attaching %q: %w", att.Name, err)
		}
	}

	return msg, nil
}

func noticeBody(n Notice) string {
	var b strings.Builder

	b.WriteString("<html><body>")
	b.WriteString("<p>Hello,</p>")
	fmt.Fprintf(&b, "<p>Your order <strong>%s</strong> has reached the <strong>%s</strong> stage.</p>",
		html.EscapeString(n.ProjectID), html.EscapeString(statusLabel(n.Status)))

	if len(n.Attachments) == 1 {
		b.WriteString("<p>1 image is attached.</p>")
	} else {
		fmt.Fprintf(&b, "<p>%d images are attached.</p>", len(n.Attachments))
	}

	b.WriteString("<p>Thank you.</p>")
	b.WriteString("</body></html>")

	return b.String()
}

func statusLabel(status string) string {
	s := strings.ToLower(status)
	if s == "" {
		return status
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
