// Package app assembles the application from configuration.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"BulletinTracker/internal/analytics"
	"BulletinTracker/internal/config"
	"BulletinTracker/internal/forecast"
	"BulletinTracker/internal/infrastructure/fetcher"
	"BulletinTracker/internal/infrastructure/parser"
	"BulletinTracker/internal/infrastructure/scheduler"
	"BulletinTracker/internal/infrastructure/storage"
	"BulletinTracker/internal/logging"
	"BulletinTracker/internal/normalize"
	"BulletinTracker/internal/planner"
	"BulletinTracker/internal/usecase"
)

// Application wires configuration to use cases and owns adapter lifecycles.
type Application struct {
	Config     config.Config
	Logger     *slog.Logger
	Repository *storage.SQLRepository
	Collector  *usecase.Collector
	Analyzer   *analytics.Analyzer
	Forecaster *forecast.Forecaster
	Scheduler  *usecase.Scheduler
}

// New opens storage and constructs every component of the application.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.LogLevel)
	}

	repository, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second}

	plan := planner.New(cfg.Source.BaseURL, client, cfg.HTTP.UserAgent)
	fetch := fetcher.New(client, fetcher.Options{
		MaxWorkers: cfg.HTTP.MaxWorkers,
		Timeout:    time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		Retries:    cfg.HTTP.Retries,
		UserAgent:  cfg.HTTP.UserAgent,
	}, baseLogger)

	collector := usecase.NewCollector(usecase.CollectorDeps{
		Planner:    plan,
		Fetcher:    fetch,
		Parser:     parser.New(baseLogger),
		Normalizer: normalize.New(cfg.Quality.DateParseMinRate),
		Repository: repository,
		Logger:     baseLogger.With("component", "collector"),
	})

	refresh := usecase.NewScheduler(
		scheduler.NewRefreshScheduler(24*time.Hour), collector)

	return &Application{
		Config:     cfg,
		Logger:     baseLogger,
		Repository: repository,
		Collector:  collector,
		Analyzer:   analytics.New(repository),
		Forecaster: forecast.New(repository, baseLogger),
		Scheduler:  refresh,
	}, nil
}

// Close releases the storage connection.
func (a *Application) Close() error {
	if a.Repository == nil {
		return nil
	}
	return a.Repository.Close()
}
