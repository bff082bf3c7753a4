package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/familyfunds/internal/api"
	"github.com/mmynk/familyfunds/internal/auth"
	"github.com/mmynk/familyfunds/internal/config"
	"github.com/mmynk/familyfunds/internal/notify"
	"github.com/mmynk/familyfunds/internal/realtime"
	"github.com/mmynk/familyfunds/internal/service"
	"github.com/mmynk/familyfunds/internal/storage/sqlite"
	"github.com/mmynk/familyfunds/pkg/logging"
)

const (
	shutdownTimeout    = 15 * time.Second
	defaultSweepPeriod = time.Hour
)

type serveCmd struct {
	sweepEvery time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "start the HTTP API and realtime server" }
func (*serveCmd) Usage() string {
	return `serve [-sweep <interval>]

  Serves the REST API, the /ws realtime endpoint and /metrics on PORT.
  Overdue invitations are marked expired every sweep interval.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.sweepEvery, "sweep", defaultSweepPeriod, "How often to expire overdue invitations (0 disables).")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		return subcommands.ExitUsageError
	}
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set; signing tokens with the development secret")
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		return subcommands.ExitFailure
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	var mailer notify.Mailer
	if cfg.MailEnabled() {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.AppBaseURL)
		logger.Info("Invitation email enabled", "smtp_host", cfg.SMTPHost, "smtp_port", cfg.SMTPPort)
	} else {
		mailer = notify.NewLogMailer(cfg.AppBaseURL, logger)
		logger.Info("SMTP_HOST not set; invitation links will be logged")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	hub := realtime.NewHub(nil, logger)

	families := service.NewFamilyService(store, mailer, hub,
		service.WithInviteTTL(cfg.InviteTTL),
		service.WithEmailMatch(cfg.InviteRequireEmailMatch),
	)
	hub.SetMembershipChecker(families)

	router := api.NewRouter(api.Deps{
		Auth:          service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger),
		Families:      families,
		Expenses:      service.NewExpenseService(store, hub),
		Goals:         service.NewGoalService(store, hub),
		JWT:           jwtManager,
		Users:         store,
		Realtime:      realtime.NewHandler(hub, jwtManager, cfg.AllowedOrigin),
		AllowedOrigin: cfg.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.sweepEvery > 0 {
		go sweepInvitations(ctx, families, c.sweepEvery, logger)
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr), "env", cfg.Env)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func sweepInvitations(ctx context.Context, families *service.FamilyService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := families.ExpireInvitations(ctx); err != nil {
				logger.Error("Invitation sweep failed", "error", err)
			}
		}
	}
}
