// Package mail sends notification emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Config describes the SMTP account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Message is a provider-independent email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mail transport not configured")

// Transport holds one SMTP connection, dialed on first use and reused until
// it fails with a connection or authentication error. It is safe for
// concurrent use; sends are serialized.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client *gomail.Client
}

// NewTransport creates a Transport. Nothing is dialed until the first Send.
func NewTransport(cfg Config, logger *slog.Logger) *Transport {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FromName == "" {
		cfg.FromName = "Hijo Electricity Website"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{cfg: cfg, logger: logger}
}

func (t *Transport) options() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(t.cfg.Port),
		gomail.WithTimeout(t.cfg.Timeout),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(t.cfg.Password),
		)
	}
	if t.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	return opts
}

// connect dials a new client. Callers hold mu.
func (t *Transport) connect(ctx context.Context) error {
	if t.cfg.Host == "" {
		return ErrNotConfigured
	}
	client, err := gomail.NewClient(t.cfg.Host, t.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}
	t.client = client
	t.logger.Debug("smtp connection established", "host", t.cfg.Host, "port", t.cfg.Port)
	return nil
}

// reset drops the current client. Callers hold mu.
func (t *Transport) reset() {
	if t.client == nil {
		return
	}
	if err := t.client.Close(); err != nil {
		t.logger.Debug("smtp close after failure", "error", err)
	}
	t.client = nil
}

// Send delivers m. A reused connection that turns out to be dead is
// replaced and the message is tried once more.
func (t *Transport) Send(ctx context.Context, m *Message) error {
	if t.cfg.Host == "" {
		return ErrNotConfigured
	}
	msg, err := t.build(m)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	reused := t.client != nil
	if !reused {
		if err := t.connect(ctx); err != nil {
			return err
		}
	}
	err = t.client.Send(msg)
	if err != nil && connectionClass(err) {
		t.reset()
		if !reused {
			return fmt.Errorf("send mail: %w", err)
		}
		if err := t.connect(ctx); err != nil {
			return err
		}
		err = t.client.Send(msg)
		if err != nil && connectionClass(err) {
			t.reset()
		}
	}
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (t *Transport) build(m *Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	from := t.cfg.From
	if from == "" {
		from = t.cfg.Username
	}
	if err := msg.FromFormat(t.cfg.FromName, from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply-to address: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

// Close closes the pooled connection, if any.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// connectionClass reports whether err means the connection or the login is
// no longer usable.
func connectionClass(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection", "broken pipe", "eof", "timeout", "timed out",
		"auth", "not connected", "535", "421",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
