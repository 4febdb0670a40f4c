package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/ratelimit"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/secret"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-identity-go")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, sugar)
	defer closeStore()

	issuer, err := session.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		sugar.Fatalf("session issuer: %v", err)
	}

	limiter, closeLimiter := openLimiter(cfg, sugar)
	defer closeLimiter()

	auditLog := audit.New(lg)
	svc := user.NewService(user.Deps{
		Store:    store,
		Codec:    secret.NewCodec(secret.HashCost),
		Issuer:   issuer,
		Mailer:   newMailer(cfg, sugar),
		Composer: mail.NewComposer(cfg.BaseURL),
		Audit:    auditLog,
		Logger:   sugar,
	})

	handler := router.RegisterRoutes(sugar, router.Options{
		Users:       user.NewHandler(svc, sugar),
		Issuer:      issuer,
		Limiter:     limiter,
		Audit:       auditLog,
		AllowOrigin: cfg.CORSOrigin,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var redirect *http.Server
	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.RedirectAddr != "" {
			redirect = &http.Server{
				Addr:              cfg.RedirectAddr,
				Handler:           router.RedirectToHTTPS(""),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				if err := redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					sugar.Errorf("redirect server failed: %v", err)
				}
			}()
		}
	}

	go func() {
		var err error
		if cfg.TLSEnabled() {
			sugar.Infow("listening", "addr", cfg.Addr, "tls", true)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			sugar.Infow("listening", "addr", cfg.Addr, "tls", false)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if redirect != nil {
		if err := redirect.Shutdown(doneCtx); err != nil {
			sugar.Warnf("redirect server shutdown failed: %v", err)
		}
	}
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func openStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (user.Store, func()) {
	if cfg.StoreDriver == "memory" {
		sugar.Warn("using in-memory account store; data is lost on exit")
		return repo.NewMemoryRepo(), func() {}
	}

	sqlDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	if err := database.Migrate(ctx, sqlDB); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}
	// wrap with sqlx for convenience in repos
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	return repo.NewUserRepo(sqlxDB), func() {
		if err := sqlxDB.Close(); err != nil {
			sugar.Warnf("db close: %v", err)
		}
	}
}

func openLimiter(cfg *config.Config, sugar *zap.SugaredLogger) (ratelimit.Limiter, func()) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(), func() {}
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		sugar.Fatalf("redis url: %v", err)
	}
	client := redis.NewClient(opts)
	return ratelimit.NewRedisLimiter(client, "identity:rl"), func() { _ = client.Close() }
}

func newMailer(cfg *config.Config, sugar *zap.SugaredLogger) mail.Sender {
	if cfg.SMTP.Host == "" {
		sugar.Warn("SMTP_HOST not set; emails are logged, not delivered")
		return mail.NewLogSender(sugar)
	}
	return mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.Sender)
}
