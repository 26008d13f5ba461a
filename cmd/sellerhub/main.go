package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/sellerhub/internal/adapter/fsm"
	"github.com/neomorfeo/sellerhub/internal/adapter/mail"
	oteladapter "github.com/neomorfeo/sellerhub/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/sellerhub/internal/adapter/river"
	"github.com/neomorfeo/sellerhub/internal/adapter/sqlite"
	"github.com/neomorfeo/sellerhub/internal/app"

	handler "github.com/neomorfeo/sellerhub/internal/adapter/http"
)

const serviceName = "sellerhub"

func main() {
	if err := run(); err != nil {
		slog.Error("sellerhub stopped", "error", err)
		os.Exit(1)
	}
}

// config is read from the environment once at startup.
type config struct {
	Port         string
	DatabasePath string
	SupportEmail string
	APITokens    string
	LogFormat    string
	Provisioning app.ProvisionerConfig
}

func loadConfig() (config, error) {
	prov := app.DefaultProvisionerConfig()
	prov.DefaultZone = os.Getenv("DEFAULT_ZONE")
	prov.CurrencyCode = envOrDefault("CHANNEL_CURRENCY", prov.CurrencyCode)
	prov.LanguageCode = envOrDefault("CHANNEL_LANGUAGE", prov.LanguageCode)

	extend, err := strconv.ParseBool(envOrDefault("EXTEND_SUPERADMIN", strconv.FormatBool(prov.ExtendSuperadmin)))
	if err != nil {
		return config{}, fmt.Errorf("EXTEND_SUPERADMIN: %w", err)
	}
	prov.ExtendSuperadmin = extend

	return config{
		Port:         envOrDefault("PORT", "8080"),
		DatabasePath: envOrDefault("DATABASE_PATH", "sellerhub.db"),
		SupportEmail: os.Getenv("SUPPORT_EMAIL"),
		APITokens:    os.Getenv("API_TOKENS"),
		LogFormat:    envOrDefault("LOG_FORMAT", "text"),
		Provisioning: prov,
	}, nil
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	otelCfg, err := oteladapter.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers, err := oteladapter.Setup(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Provisioning.DefaultZone != "" {
		zone, err := store.Channels().EnsureZone(ctx, uuid.NewString(), cfg.Provisioning.DefaultZone)
		if err != nil {
			return fmt.Errorf("seeding default zone: %w", err)
		}
		logger.Info("default zone ready", "zone_id", zone.ID, "zone", zone.Name)
	}

	notifyWorker := &riveradapter.NotificationWorker{}
	provisionWorker := &riveradapter.ProvisionWorker{}
	client, err := riveradapter.Setup(ctx, db, notifyWorker, provisionWorker)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}

	notifier := oteladapter.NewTracingNotifier(riveradapter.NewPublisher(client))
	queue := oteladapter.NewTracingQueue(riveradapter.NewQueue(client))
	sellers := oteladapter.NewTracingRepository(store.Sellers())

	// --- Application ---
	provisioner, err := oteladapter.NewTracingProvisioner(app.NewProvisioner(app.ProvisionerDeps{
		Sellers:   sellers,
		Identity:  store.Identity(),
		Channels:  store.Channels(),
		Trail:     store.Trail(),
		Notifier:  notifier,
		Validator: fsm.New(),
	}, cfg.Provisioning, logger))
	if err != nil {
		return fmt.Errorf("provisioner: %w", err)
	}

	notifyWorker.Mail = mail.NewDispatcher(mail.NewLogSender(logger), store.Identity(), cfg.SupportEmail)
	provisionWorker.Sellers = sellers
	provisionWorker.Provisioner = provisioner

	tokens, err := handler.ParseTokens(cfg.APITokens)
	if err != nil {
		return fmt.Errorf("API_TOKENS: %w", err)
	}

	router := newRouter(handler.Services{
		Registration: app.NewRegistrationService(store, notifier, logger),
		Sellers:      app.NewSellerService(sellers, store.Identity(), queue, notifier, logger),
		Access:       app.NewAccessService(sellers, store.Identity(), store.Channels(), store.Trail()),
		Tokens:       tokens,
	})

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("sellerhub listening", "port", cfg.Port, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := client.Stop(shutdownCtx); err != nil {
		logger.Error("river shutdown", "error", err)
	}

	logger.Info("stopped")
	return runErr
}

// newRouter builds the HTTP stack: tracing and recovery middleware, then the
// seller API and the health probe.
func newRouter(svc handler.Services) *chi.Mux {
	router := chi.NewMux()
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(serviceName, "0.1.0"))
	handler.Register(api, svc)
	handler.RegisterHealth(api)

	return router
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
