// Package ratelimit provides per-client fixed-window request limits built on
// go-chi/httprate.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/hijo-electricity/hijo/internal/apierr"
)

// Scope is one independently counted limit.
type Scope struct {
	Name    string
	Window  time.Duration
	Limit   int
	Message string
	// SkipSuccessful refunds requests that end with a 2xx status, so only
	// failures count.
	SkipSuccessful bool
}

var (
	General = Scope{
		Name:    "general",
		Window:  15 * time.Minute,
		Limit:   100,
		Message: "Too many requests. Please try again later.",
	}
	Login = Scope{
		Name:           "login",
		Window:         time.Hour,
		Limit:          5,
		Message:        "Too many login attempts. Please try again in an hour.",
		SkipSuccessful: true,
	}
	Contact = Scope{
		Name:    "contact",
		Window:  time.Hour,
		Limit:   10,
		Message: "Too many contact form submissions. Please try again later.",
	}
	Upload = Scope{
		Name:    "upload",
		Window:  time.Hour,
		Limit:   20,
		Message: "Too many upload requests. Please try again later.",
	}
)

// ClientKey identifies the caller by remote address, then by the first
// X-Forwarded-For entry, then as "unknown".
func ClientKey(r *http.Request) (string, error) {
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host, nil
		}
		return r.RemoteAddr, nil
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first, nil
		}
	}
	return "unknown", nil
}

// counterKey is the key httprate stores counts under: every key func's
// result followed by a colon.
func counterKey(r *http.Request) string {
	key, _ := ClientKey(r)
	return key + ":"
}

// Limiter enforces one Scope.
type Limiter struct {
	scope   Scope
	counter httprate.LimitCounter
	rl      *httprate.RateLimiter
	logger  *slog.Logger
	onLimit func(scope string)
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// OnLimit registers fn to be called with the scope name whenever a request
// is rejected.
func OnLimit(fn func(scope string)) Option {
	return func(l *Limiter) { l.onLimit = fn }
}

// WithLogger sets the logger used for counter failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New builds a Limiter for scope. A nil counter selects an in-process
// FixedWindowCounter.
func New(scope Scope, counter httprate.LimitCounter, opts ...Option) *Limiter {
	if counter == nil {
		counter = NewFixedWindowCounter()
	}
	l := &Limiter{
		scope:   scope,
		counter: counter,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.rl = httprate.NewRateLimiter(scope.Limit, scope.Window,
		httprate.WithKeyFuncs(ClientKey),
		httprate.WithLimitCounter(counter),
		httprate.WithLimitHandler(l.reject),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			l.logger.Error("rate limit counter failed", "scope", scope.Name, "error", err)
			apierr.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		}),
	)
	return l
}

func (l *Limiter) reject(w http.ResponseWriter, r *http.Request) {
	if l.onLimit != nil {
		l.onLimit(l.scope.Name)
	}
	apierr.WriteMessage(w, http.StatusTooManyRequests, l.scope.Message)
}

// Handler is the limiter as middleware.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	if !l.scope.SkipSuccessful {
		return l.rl.Handler(next)
	}
	return l.rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if status := ww.Status(); status >= 200 && status < 300 {
			l.refund(r)
		}
	}))
}

func (l *Limiter) refund(r *http.Request) {
	window := l.now().UTC().Truncate(l.scope.Window)
	if err := l.counter.IncrementBy(counterKey(r), window, -1); err != nil {
		l.logger.Warn("rate limit refund failed", "scope", l.scope.Name, "error", err)
	}
}

// Set holds the limiter of every scope.
type Set struct {
	General *Limiter
	Login   *Limiter
	Contact *Limiter
	Upload  *Limiter
}

// NewSet builds all scopes. With a nil client the counters are in-process;
// otherwise every scope keeps its windows in Redis under "hijo:rl:<scope>".
func NewSet(client redis.UniversalClient, opts ...Option) *Set {
	build := func(scope Scope) *Limiter {
		var counter httprate.LimitCounter
		if client != nil {
			counter = NewRedisCounter(client, "hijo:rl:"+scope.Name)
		}
		return New(scope, counter, opts...)
	}
	return &Set{
		General: build(General),
		Login:   build(Login),
		Contact: build(Contact),
		Upload:  build(Upload),
	}
}
