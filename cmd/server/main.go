package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/anivouch/anivouch/internal/anilist"
	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/config"
	"github.com/anivouch/anivouch/internal/event"
	"github.com/anivouch/anivouch/internal/logging"
	"github.com/anivouch/anivouch/internal/mail"
	"github.com/anivouch/anivouch/internal/metrics"
	"github.com/anivouch/anivouch/internal/ratelimit"
	"github.com/anivouch/anivouch/internal/service"
	"github.com/anivouch/anivouch/internal/storage/postgres"
	httpTransport "github.com/anivouch/anivouch/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("application error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("running database migrations")
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("connecting to database")
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected")

	repos := db.Repositories()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:       cfg.JWTSecretKey,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          "anivouch",
		Audience:        []string{},
	})

	var googleVerifier *auth.GoogleVerifier
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		googleVerifier, err = auth.NewGoogleVerifier(ctx, auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		if err != nil {
			return fmt.Errorf("setup Google verifier: %w", err)
		}
		logger.Info("Google sign-in enabled")
	} else {
		logger.Info("Google sign-in disabled: no client credentials configured")
	}

	var publisher event.Publisher = event.NewLoggingPublisher(logger)
	defer publisher.Close()

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	anilistClient := anilist.NewClient(cfg.AnilistURL, cfg.AnilistRequestsPerMinute)

	verificationService := service.NewVerificationService(
		repos.Users,
		repos.Sessions,
		repos.Verifications,
		mailer,
		publisher,
		cfg.FrontendURL,
		cfg.VerifyTokenTTL,
		cfg.OTPTTL,
	)
	authService := service.NewAuthService(
		repos.Users,
		repos.Sessions,
		jwtManager,
		googleVerifier,
		verificationService,
		publisher,
	)
	userService := service.NewUserService(repos.Users, publisher)
	animeService := service.NewAnimeService(anilistClient, m)

	normalizer := apperrors.NewNormalizer(logger, cfg.IsDevelopment())

	authLimiter := ratelimit.New(cfg.RateLimitWindow, cfg.AuthRateLimitMax, cfg.RateLimitSweepInterval)
	defer authLimiter.Stop()
	apiLimiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitSweepInterval)
	defer apiLimiter.Stop()

	errChan := make(chan error, 1)

	httpServer := httpTransport.NewServer(
		cfg,
		authService,
		userService,
		verificationService,
		animeService,
		normalizer,
		authLimiter,
		apiLimiter,
		m,
		registry,
		logger,
	)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// Expired sessions and verifications pile up otherwise.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := authService.CleanupExpiredSessions(ctx); err != nil {
					logger.Error("session cleanup failed", zap.Error(err))
				}
				if _, err := verificationService.CleanupExpired(ctx); err != nil {
					logger.Error("verification cleanup failed", zap.Error(err))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.Stringer("signal", sig))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
		return err
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()

	logger.Info("shutdown complete")
	return nil
}
