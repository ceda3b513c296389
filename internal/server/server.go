package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/handler"
	"github.com/hijo-electricity/hijo/internal/metrics"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/openapi"
	"github.com/hijo-electricity/hijo/internal/ratelimit"
	"github.com/hijo-electricity/hijo/internal/server/middleware"
	"github.com/hijo-electricity/hijo/internal/service"
	"github.com/hijo-electricity/hijo/internal/storage"
	"github.com/hijo-electricity/hijo/internal/store"
	"github.com/hijo-electricity/hijo/internal/upload"
	"github.com/hijo-electricity/hijo/internal/validate"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	BodyLimit       int64 // JSON and urlencoded bodies, bytes
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy  bool
	Development bool
	Version     string
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		BodyLimit:       middleware.DefaultBodyLimit,
		Version:         "dev",
	}
}

// Deps are the components the routes are wired to.
type Deps struct {
	Store    *store.Store
	Auth     *service.AuthService
	Provider storage.Provider
	Uploads  *upload.Handler
	Notifier handler.Notifier
	Limits   *ratelimit.Set
	// Metrics is optional; nil disables /metrics and request metrics.
	Metrics *metrics.Metrics
}

// Server is the top-level HTTP server. It owns the chi router and runs the
// shutdown hooks once the listener has drained.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	tr         *apierr.Translator
	httpServer *http.Server
	logger     *slog.Logger
	hooks      []shutdownHook
}

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

// New creates a Server with every route and middleware mounted.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Limits == nil {
		deps.Limits = ratelimit.NewSet(nil, ratelimit.WithLogger(logger))
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		tr:     apierr.NewTranslator(cfg.Development, deps.Uploads.MaxSize(), logger),
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	v := validate.New()
	tr := s.tr
	limits := s.deps.Limits

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recover(tr, s.logger))
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.SecurityHeaders(s.cfg.Development))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(middleware.SkipCompression)
	r.Use(chimw.Compress(6))
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(middleware.Sanitize(tr, s.cfg.BodyLimit))

	r.NotFound(tr.NotFound)
	r.MethodNotAllowed(tr.NotFound)

	doc, err := openapi.Generate("", s.cfg.Version)
	if err != nil {
		s.logger.Error("openapi document incomplete", "error", err)
	}
	system := handler.NewSystemHandler(s.deps.Store, doc, s.cfg.Version)

	// --- Health and exposition ---
	r.Get("/healthz", system.Health)
	r.Get("/readyz", system.Ready)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	// --- Stored images ---
	uploads := handler.NewUploadsHandler(s.deps.Provider, tr, s.logger)
	r.Method(http.MethodGet, "/uploads/*", uploads)
	r.Method(http.MethodHead, "/uploads/*", uploads)

	requireAdmin := middleware.RequireAdmin(s.deps.Auth, tr, s.logger)
	paramID := middleware.ParamID(tr)
	receive := middleware.Upload(s.deps.Uploads, tr)

	auth := handler.NewAuthHandler(s.deps.Auth, tr)
	projects := handler.NewProjectHandler(s.deps.Store, s.deps.Uploads, v, tr, s.logger)
	contacts := handler.NewContactHandler(s.deps.Store, s.deps.Notifier, tr, s.logger)

	// --- API routes ---
	// Per route: limiter, validation, auth, upload, handler.
	r.Route("/api", func(r chi.Router) {
		r.Use(limits.General.Handler)

		r.Get("/openapi.json", system.OpenAPI)
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/api/openapi.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("list"),
		))

		r.Route("/auth", func(r chi.Router) {
			r.With(limits.Login.Handler, middleware.ValidateBody[model.LoginInput](v, tr)).
				Post("/login", auth.Login)
			r.With(requireAdmin).Get("/verify", auth.Verify)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projects.List)
			r.With(paramID).Get("/{id}", projects.Get)
			r.With(limits.Upload.Handler, requireAdmin, receive).Post("/", projects.Create)
			r.With(limits.Upload.Handler, paramID, requireAdmin, receive).Put("/{id}", projects.Update)
			r.With(paramID, requireAdmin).Delete("/{id}", projects.Delete)
		})

		r.Route("/contact", func(r chi.Router) {
			r.With(limits.Contact.Handler, middleware.ValidateBody[model.ContactInput](v, tr)).
				Post("/", contacts.Create)
			r.With(requireAdmin).Get("/", contacts.List)
			r.With(paramID, requireAdmin).Get("/{id}", contacts.Get)
			r.With(paramID, requireAdmin).Delete("/{id}", contacts.Delete)
		})
	})

	s.router = r
}

// OnShutdown registers fn to run after the HTTP listener has drained. Hooks
// run in registration order and share the shutdown deadline.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.hooks = append(s.hooks, shutdownHook{name: name, fn: fn})
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// a SIGINT or SIGTERM is received. It then drains in-flight requests and
// runs the shutdown hooks.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "development", s.cfg.Development)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.runHooks(context.Background())
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.runHooks(shutdownCtx)
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) runHooks(ctx context.Context) {
	for _, h := range s.hooks {
		if err := h.fn(ctx); err != nil {
			s.logger.Error("shutdown step failed", "step", h.name, "error", err)
			continue
		}
		s.logger.Debug("shutdown step done", "step", h.name)
	}
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
