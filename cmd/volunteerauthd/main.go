// Command volunteerauthd exposes the authentication engine over HTTP for the
// volunteer-activity backend. Accounts live in PostgreSQL, OTP state in
// Redis, passcodes go out over SMTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/volunteerhub/authcore"
	"github.com/volunteerhub/authcore/internal/pgstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("volunteerauthd: %v", err)
	}
}

func run() error {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	databaseURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return err
	}
	sessionSecret, err := requireEnv("SESSION_SECRET")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	mailer := &authcore.SMTPSender{
		Host:     envOr("SMTP_HOST", "localhost"),
		Port:     envOr("SMTP_PORT", "465"),
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
	}

	cfg := authcore.DefaultConfig()
	cfg.Session.Secret = []byte(sessionSecret)
	cfg.Session.Issuer = envOr("SESSION_ISSUER", "volunteerhub")

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(pgstore.New(pool)).
		WithMailSender(mailer).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	srv := &server{engine: engine}
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", srv.handleRegister)
		r.Post("/check-existing", srv.handleCheckExisting)
		r.Post("/login", srv.handleLogin)
		r.Post("/forgot-password", srv.handleForgotPassword)
		r.Post("/verify-otp", srv.handleVerifyOTP)
		r.Post("/logout", srv.handleLogout)
		r.With(srv.requireSession).Get("/me", srv.handleMe)
	})

	httpSrv := &http.Server{
		Addr:              envOr("LISTEN_ADDR", ":8080"),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("volunteerauthd: listening on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if n := engine.AuditDropped(); n > 0 {
		log.Printf("volunteerauthd: %d audit entries dropped during run", n)
	}
	return nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", errors.New(key + " is not set")
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
