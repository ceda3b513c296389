// Package notify sends contact notifications in the background so the
// request that stored the contact never waits on SMTP.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hijo-electricity/hijo/internal/mail"
	"github.com/hijo-electricity/hijo/internal/model"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned by Dispatch when the queue has no room.
var ErrQueueFull = errors.New("notification queue full")

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, m *mail.Message) error
}

// Config controls a Dispatcher.
type Config struct {
	AdminAddress string
	QueueSize    int
	// SendTimeout bounds each message, dial included.
	SendTimeout time.Duration
}

// Dispatcher sends the admin notification and the visitor confirmation for
// each dispatched contact from a single worker goroutine.
type Dispatcher struct {
	mailer  Mailer
	cfg     Config
	logger  *slog.Logger
	observe func(kind, result string)

	queue chan *model.Contact
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver registers fn to be told each send outcome, with kind "admin"
// or "visitor" and result "sent" or "failed".
func WithObserver(fn func(kind, result string)) Option {
	return func(d *Dispatcher) { d.observe = fn }
}

// New starts a Dispatcher. Close must be called to stop its worker.
func New(mailer Mailer, cfg Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		mailer:  mailer,
		cfg:     cfg,
		logger:  logger,
		observe: func(string, string) {},
		queue:   make(chan *model.Contact, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Dispatch queues c without blocking. The contact is copied.
func (d *Dispatcher) Dispatch(c *model.Contact) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	cp := *c
	select {
	case d.queue <- &cp:
		return nil
	default:
		d.logger.Warn("notification dropped, queue full", "contact_id", c.ID)
		d.observe("queue", "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for c := range d.queue {
		d.deliver(c)
	}
}

func (d *Dispatcher) deliver(c *model.Contact) {
	if d.cfg.AdminAddress != "" {
		if m, err := mail.AdminNotification(c, d.cfg.AdminAddress); err != nil {
			d.logger.Error("render admin notification", "contact_id", c.ID, "error", err)
		} else {
			d.send("admin", c, m)
		}
	}
	if m, err := mail.VisitorConfirmation(c); err != nil {
		d.logger.Error("render visitor confirmation", "contact_id", c.ID, "error", err)
	} else {
		d.send("visitor", c, m)
	}
}

func (d *Dispatcher) send(kind string, c *model.Contact, m *mail.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	if err := d.mailer.Send(ctx, m); err != nil {
		d.logger.Error("notification failed", "kind", kind, "contact_id", c.ID, "to", m.To, "error", err)
		d.observe(kind, "failed")
		return
	}
	d.logger.Info("notification sent", "kind", kind, "contact_id", c.ID, "to", m.To)
	d.observe(kind, "sent")
}

// Close stops accepting contacts and waits for the queue to drain or ctx
// to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard is a Mailer that only logs, used when mail is disabled.
type Discard struct {
	Logger *slog.Logger
}

func (m Discard) Send(ctx context.Context, msg *mail.Message) error {
	if m.Logger != nil {
		m.Logger.Debug("mail disabled, message not sent", "to", msg.To, "subject", msg.Subject)
	}
	return nil
}
