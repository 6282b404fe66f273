package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/application"
	appanalysis "github.com/SnowballHQ/geo-optimizer-sub002/internal/application/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/config"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/ai"
	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/ai/anthropic"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/ai/openai"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/ai/perplexity"
	mysqlp "github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/db/mysql"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/db/postgres"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/db/sqlite"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/httpserver"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/notify"
	minioStore "github.com/SnowballHQ/geo-optimizer-sub002/internal/infra/storage"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := cfg.InitLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	repo, closeDB, err := openRepository(ctx, cfg, checkers)
	if err != nil {
		return err
	}
	defer closeDB()

	svc := &appanalysis.Service{
		Repo:      repo,
		Analyst:   openai.NewClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.Model, cfg.AI.OpenAI.BaseURL),
		Responder: newResponder(cfg),
		Clock:     application.SystemClock{},
		Options: appanalysis.Options{
			PromptsPerCategory: cfg.AI.PromptsPerCategory,
			MaxPrompts:         cfg.AI.MaxPrompts,
			Concurrency:        cfg.AI.Concurrency,
			RequestsPerSecond:  cfg.AI.RequestsPerSecond,
		},
	}

	if cfg.MinioEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return eris.Wrap(err, "minio init")
		}
		svc.Reports = store
		checkers["storage"] = middleware.CheckFunc(store.Check)
	}
	if cfg.Slack.WebhookURL != "" {
		svc.Notifier = &notify.Slack{WebhookURL: cfg.Slack.WebhookURL, DashboardURL: cfg.Slack.DashboardURL}
	}

	opts := httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthCheckers: checkers,
		EventPoll:      cfg.Server.EventPoll,
	}
	if cfg.Server.RateLimit > 0 {
		opts.RateLimiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateRefill)
		defer opts.RateLimiter.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening",
			zap.String("addr", addr),
			zap.String("database", cfg.Database.Driver),
			zap.String("responder", svc.Responder.Platform()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return eris.Wrap(err, "server")
	case <-stop:
	}
	zap.L().Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zap.L().Warn("shutdown", zap.Error(err))
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, checkers map[string]middleware.HealthChecker) (domain.Repository, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: repo.DB()}
		return repo, func() { repo.Close() }, nil

	case "postgres":
		if db, err = postgres.Connect(ctx, cfg.PostgresDSN()); err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return postgres.NewAnalysisRepository(db), func() { db.Close() }, nil

	default:
		if db, err = mysqlp.Connect(ctx, cfg.MySQLDSN()); err != nil {
			return nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return mysqlp.NewAnalysisRepository(db), func() { db.Close() }, nil
	}
}

func newResponder(cfg *config.Config) ai.Responder {
	switch cfg.AI.Responder {
	case "anthropic":
		return anthropic.NewClient(cfg.AI.Anthropic.APIKey, cfg.AI.Anthropic.Model, cfg.AI.Anthropic.BaseURL)
	case "openai":
		return openai.NewClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.Model, cfg.AI.OpenAI.BaseURL)
	default:
		opts := []perplexity.Option{perplexity.WithModel(cfg.AI.Perplexity.Model)}
		if cfg.AI.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(cfg.AI.Perplexity.BaseURL))
		}
		return perplexity.NewClient(cfg.AI.Perplexity.APIKey, opts...)
	}
}
