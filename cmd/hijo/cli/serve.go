package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hijo-electricity/hijo/internal/config"
	"github.com/hijo-electricity/hijo/internal/janitor"
	"github.com/hijo-electricity/hijo/internal/mail"
	"github.com/hijo-electricity/hijo/internal/metrics"
	"github.com/hijo-electricity/hijo/internal/notify"
	"github.com/hijo-electricity/hijo/internal/ratelimit"
	"github.com/hijo-electricity/hijo/internal/server"
	"github.com/hijo-electricity/hijo/internal/service"
	"github.com/hijo-electricity/hijo/internal/upload"
)

const banner = `
 _   _ ___    _  ___
| | | |_ _|  | |/ _ \
| |_| || |_  | | | | |
|  _  || | |_| | |_| |
|_| |_|___\___/ \___/
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP server for the public site API, the admin API and stored images.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dev {
				viper.Set("mode", config.ModeDevelopment)
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntP("port", "p", 3000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, error detail in responses)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(s)

	fmt.Print(banner)
	fmt.Println()

	// 1. Database
	st, err := openStore(s)
	if err != nil {
		return err
	}
	logger.Info("database ready", "driver", st.Driver())

	// 2. Upload storage
	provider, err := openProvider(s)
	if err != nil {
		st.Close()
		return err
	}
	logger.Info("upload storage ready", "backend", s.Upload.Backend)

	var m *metrics.Metrics
	if s.Metrics.Enabled {
		m = metrics.New()
	}

	// 3. Auth
	tokens := service.NewTokenService(s.Auth.JWTSecret, s.Auth.TokenTTL)
	authSvc := service.NewAuthService(st, tokens)
	if hasAdmin, err := st.HasAnyAdmin(ctx); err != nil {
		logger.Warn("failed to check for admin", "error", err)
	} else if !hasAdmin {
		logger.Warn("no admin account found - run: hijo admin create")
	}

	// 4. Uploads
	var upOpts []upload.Option
	if m != nil {
		upOpts = append(upOpts, upload.WithObserver(m.Upload))
	}
	uploads := upload.New(provider, s.Upload.MaxSize, logger, upOpts...)

	// 5. Rate limiting, shared through Redis when configured
	limitOpts := []ratelimit.Option{ratelimit.WithLogger(logger)}
	if m != nil {
		limitOpts = append(limitOpts, ratelimit.OnLimit(m.RateLimited))
	}
	var rdb *redis.Client
	if s.RateLimit.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     s.RateLimit.RedisAddr,
			Password: s.RateLimit.RedisPassword,
			DB:       s.RateLimit.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-process rate-limit counters", "addr", s.RateLimit.RedisAddr, "error", err)
			rdb.Close()
			rdb = nil
		} else {
			logger.Info("rate-limit counters shared through redis", "addr", s.RateLimit.RedisAddr)
		}
	}
	var limits *ratelimit.Set
	if rdb != nil {
		limits = ratelimit.NewSet(rdb, limitOpts...)
	} else {
		limits = ratelimit.NewSet(nil, limitOpts...)
	}

	// 6. Contact notifications
	var mailer notify.Mailer = notify.Discard{Logger: logger}
	var transport *mail.Transport
	if s.Mail.Enabled {
		transport = mail.NewTransport(mail.Config{
			Host:     s.Mail.Host,
			Port:     s.Mail.Port,
			Username: s.Mail.Username,
			Password: s.Mail.Password,
			From:     s.Mail.From,
			FromName: s.Mail.FromName,
			Timeout:  s.Mail.Timeout,
		}, logger)
		mailer = transport
	} else {
		logger.Warn("mail disabled, contact notifications are only logged")
	}
	var notifyOpts []notify.Option
	if m != nil {
		notifyOpts = append(notifyOpts, notify.WithObserver(m.Notification))
	}
	dispatcher := notify.New(mailer, notify.Config{
		AdminAddress: s.Mail.AdminAddress,
		QueueSize:    s.Mail.QueueSize,
		SendTimeout:  s.Mail.Timeout,
	}, logger, notifyOpts...)

	// 7. Orphaned-upload janitor
	var janitorOpts []janitor.Option
	if m != nil {
		janitorOpts = append(janitorOpts, janitor.OnRemove(m.OrphansRemoved))
	}
	jan := janitor.New(st, provider, janitor.Config{
		Schedule: s.Janitor.Schedule,
		Grace:    s.Janitor.Grace,
	}, logger, janitorOpts...)
	if err := jan.Start(ctx); err != nil {
		dispatcher.Close(ctx)
		if rdb != nil {
			rdb.Close()
		}
		st.Close()
		return err
	}

	// 8. HTTP server
	srv := server.New(server.Config{
		Host:            s.Server.Host,
		Port:            s.Server.Port,
		ShutdownTimeout: s.Server.ShutdownTimeout,
		CORSOrigins:     s.Server.CORSOrigins,
		BodyLimit:       s.Server.BodyLimit,
		TrustProxy:      s.Server.TrustProxy,
		Development:     s.IsDevelopment(),
		Version:         versionString(),
	}, server.Deps{
		Store:    st,
		Auth:     authSvc,
		Provider: provider,
		Uploads:  uploads,
		Notifier: dispatcher,
		Limits:   limits,
		Metrics:  m,
	}, logger)

	srv.OnShutdown("janitor", func(context.Context) error {
		jan.Stop()
		return nil
	})
	srv.OnShutdown("notifications", dispatcher.Close)
	if transport != nil {
		srv.OnShutdown("mail", func(context.Context) error { return transport.Close() })
	}
	if rdb != nil {
		srv.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	}
	srv.OnShutdown("database", func(context.Context) error { return st.Close() })

	base := fmt.Sprintf("http://%s:%d", s.Server.Host, s.Server.Port)
	fmt.Printf("→ Hijo %s (%s)\n", versionString(), s.Mode)
	fmt.Printf("→ Listening on %s\n", base)
	fmt.Printf("→ API docs:   %s/api/docs/index.html\n", base)
	fmt.Printf("→ Health:     %s/healthz\n", base)
	if m != nil {
		fmt.Printf("→ Metrics:    %s/metrics\n", base)
	}
	fmt.Println()

	return srv.ListenAndServe(ctx)
}
