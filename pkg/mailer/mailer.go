// Package mailer delivers greeting emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// TLSMode selects how the connection to the SMTP server is secured.
type TLSMode string

const (
	// TLSAuto uses implicit TLS on port 465 and opportunistic STARTTLS elsewhere.
	TLSAuto TLSMode = ""
	// TLSImplicit wraps the connection in TLS before the SMTP greeting (SMTPS).
	TLSImplicit TLSMode = "tls"
	// TLSStartTLS requires the server to offer STARTTLS.
	TLSStartTLS TLSMode = "starttls"
	// TLSOpportunistic upgrades with STARTTLS when offered and continues in plain text otherwise.
	TLSOpportunistic TLSMode = "opportunistic"
	// TLSNone never upgrades the connection.
	TLSNone TLSMode = "none"
)

const implicitTLSPort = 465

// ParseTLSMode normalises a configured TLS mode. Unknown values fall back to TLSAuto.
func ParseTLSMode(raw string) TLSMode {
	switch mode := TLSMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case TLSImplicit, TLSStartTLS, TLSOpportunistic, TLSNone:
		return mode
	case "ssl", "smtps":
		return TLSImplicit
	default:
		return TLSAuto
	}
}

// Settings are the SMTP credentials in effect for one delivery.
type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	TLSMode  TLSMode
	Timeout  time.Duration
}

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outgoing email.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, settings Settings, msg Message) error
}

// SMTPSender sends mail through go-mail.
type SMTPSender struct {
	now       func() time.Time
	tlsConfig func(host string) *tls.Config
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender() *SMTPSender {
	return &SMTPSender{now: time.Now, tlsConfig: tlsConfig}
}

// Send connects to the server and delivers msg. The context bounds the dial and the whole exchange.
func (s *SMTPSender) Send(ctx context.Context, settings Settings, msg Message) error {
	if settings.Host == "" || settings.From == "" {
		return fmt.Errorf("smtp host and sender address required")
	}
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}
	m, err := newMsg(settings.From, msg, s.now())
	if err != nil {
		return err
	}
	client, err := mail.NewClient(settings.Host, s.clientOptions(settings)...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) clientOptions(settings Settings) []mail.Option {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	port := settings.Port
	if port <= 0 {
		port = mail.DefaultPort
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSConfig(s.tlsConfig(settings.Host)),
	}

	switch resolveTLSMode(settings.TLSMode, port) {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSStartTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if settings.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.User),
			mail.WithPassword(settings.Password),
		)
	}
	return opts
}

func resolveTLSMode(mode TLSMode, port int) TLSMode {
	if mode != TLSAuto {
		return mode
	}
	if port == implicitTLSPort {
		return TLSImplicit
	}
	return TLSOpportunistic
}

// Build renders msg as a MIME message: a text/HTML alternative body plus attachments.
func Build(from string, msg Message, date time.Time) ([]byte, error) {
	m, err := newMsg(from, msg, date)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}

func newMsg(from string, msg Message, date time.Time) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(date)
	m.SetMessageIDWithValue(uuid.NewString() + "@" + domainOf(from))

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Data), opts...); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}
	return m, nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return strings.Trim(address[at+1:], "> ")
	}
	return "localhost"
}
