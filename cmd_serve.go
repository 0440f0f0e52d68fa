package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/gateway"
	"github.com/symeon158/CVF-Survey-App/internal/handler"
	"github.com/symeon158/CVF-Survey-App/internal/router"
	"github.com/symeon158/CVF-Survey-App/internal/service"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the survey HTTP server",
	Long: `Runs the JSON API, the admin endpoints and the server-rendered form.

Environment:
  SURVEY_ADDR, SURVEY_CATALOG, SURVEY_STEP, SURVEY_TZ
  SURVEY_GATEWAY (memory|sheets|xlsx|sqlite|postgres|oxidb)
  SHEETS_SPREADSHEET_ID, SHEETS_RANGE, GOOGLE_CREDENTIALS, GOOGLE_CREDENTIALS_FILE
  XLSX_PATH, SQLITE_PATH, DATABASE_URL
  OXIDB_HOST, OXIDB_PORT, OXIDB_POOL_SIZE
  REDIS_URL, SESSION_TTL_SECONDS
  SURVEY_JWT_SECRET, SURVEY_ADMIN_EMAIL, SURVEY_ADMIN_PASS_HASH
  SURVEY_CSRF_KEY, SURVEY_SECURE_COOKIES, CORS_ORIGIN, GELF_ADDR`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	backend, err := gateway.Open(ctx, cfg, cat, logger)
	if err != nil {
		return fmt.Errorf("open %s gateway: %w", cfg.Gateway, err)
	}
	defer backend.Close()
	logger.Info("gateway ready", zap.String("gateway", backend.Name()))

	// Index builds can be slow on a large collection; serve while they run.
	if ox, ok := backend.(*gateway.OxiDB); ok {
		go func() {
			start := time.Now()
			if err := ox.EnsureIndexes(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("oxidb index creation failed", zap.Error(err))
				return
			}
			logger.Info("oxidb indexes ready", zap.Duration("took", time.Since(start).Round(time.Millisecond)))
		}()
	}

	store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := csrfKey()
	if err != nil {
		return err
	}

	form := survey.NewForm(cat, backend, survey.WithLocation(loc))
	surveySvc := service.NewSurveyService(form, store, logger)
	adminSvc := service.NewAdminService(cfg.AdminEmail, cfg.AdminPassHash, cfg.JWTSecret, backend, cat, logger)

	sessions := handler.Sessions{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL, Secure: cfg.SecureCookies}
	r := router.New(router.Options{
		JWTSecret:     cfg.JWTSecret,
		CSRFKey:       key,
		SecureCookies: cfg.SecureCookies,
		CORSOrigin:    cfg.CORSOrigin,
	}, logger,
		handler.NewSurveyHandler(surveySvc, sessions, logger),
		handler.NewAdminHandler(adminSvc, logger),
		handler.NewPageHandler(surveySvc, sessions, logger),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("cvf survey server starting", zap.String("addr", cfg.HTTPAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openSessionStore(ctx context.Context) (session.Store, error) {
	if cfg.RedisURL == "" {
		logger.Info("session store: memory", zap.Duration("ttl", cfg.SessionTTL))
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	store, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info("session store: redis", zap.Duration("ttl", cfg.SessionTTL))
	return store, nil
}

// csrfKey returns SURVEY_CSRF_KEY, or a random key that does not survive a
// restart.
func csrfKey() ([]byte, error) {
	if cfg.CSRFKey != "" {
		if len(cfg.CSRFKey) < 32 {
			return nil, errors.New("SURVEY_CSRF_KEY must be at least 32 bytes")
		}
		return []byte(cfg.CSRFKey), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	logger.Warn("SURVEY_CSRF_KEY not set; using an ephemeral key")
	return key, nil
}
