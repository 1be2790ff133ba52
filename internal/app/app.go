// Package app provides application-level wiring and dependency injection
// for the question answering service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"courtql/internal/api"
	"courtql/internal/catalog"
	"courtql/internal/config"
	"courtql/internal/entity"
	"courtql/internal/exec"
	"courtql/internal/llm"
	"courtql/internal/pipeline"
	"courtql/internal/respond"
	"courtql/internal/schema"
	"courtql/internal/sqlgen"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application. The cron scheduler is nil when
// no catalog refresh schedule is configured.
type App struct {
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Catalog
	Executor *exec.Executor
	Handler  *api.Handler

	cron   *cron.Cron
	logger *slog.Logger
}

// New wires the catalog, completion client, pipeline stages, and API
// handler from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	desc, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("load schema descriptor: %w", err)
	}

	// === Catalog ===
	cat := catalog.New(deps.ReadDB, cfg.TableName, cfg.SimilarityThreshold, logger)
	if err := cat.Refresh(ctx); err != nil {
		// Entity resolution degrades to unresolved names until the next
		// refresh succeeds.
		logger.Warn("initial catalog refresh failed", "error", err)
	}

	// === Completion backend ===
	var completer llm.Completer
	if cfg.AnthropicAPIKey != "" {
		client, err := llm.NewAnthropic(llm.AnthropicOptions{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.ModelName,
			Timeout: cfg.CompletionTimeout,
			Retries: cfg.CompletionRetries,
			RPS:     cfg.CompletionRPS,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("completion client: %w", err)
		}
		completer = client
	} else {
		logger.Warn("no API key configured, question answering runs on fallback strategies only")
	}

	// === Pipeline stages ===
	executor := exec.New(deps.ReadDB, cfg.TableName, cfg.QueryTimeout, cfg.RowCap, logger)
	resolver := entity.New(completer, cat, cfg.MaxTokens, logger)
	generator := sqlgen.New(sqlgen.GeneratorOptions{
		Completer: completer,
		DryRunner: executor,
		Schema:    desc,
		Table:     cfg.TableName,
		Attempts:  cfg.GenerationAttempts,
		MaxTokens: cfg.MaxTokens,
		Registry:  sqlgen.Registry(),
		Logger:    logger,
	})
	formatter := respond.New(completer, cfg.MaxTokens, logger)

	p := pipeline.New(pipeline.Options{
		Resolver:  resolver,
		Generator: generator,
		Executor:  executor,
		Formatter: formatter,
		Schema:    desc,
		Table:     cfg.TableName,
		Logger:    logger,
	})

	a := &App{
		Pipeline: p,
		Catalog:  cat,
		Executor: executor,
		Handler:  api.NewHandler(p, deps.ReadDB, cfg.TableName, completer != nil, logger),
		logger:   logger,
	}

	// === Scheduled catalog refresh ===
	if cfg.CatalogRefreshCron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.CatalogRefreshCron, func() {
			if err := cat.Refresh(context.Background()); err != nil {
				logger.Warn("scheduled catalog refresh failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("catalog refresh schedule %q: %w", cfg.CatalogRefreshCron, err)
		}
		a.cron = c
	}

	return a, nil
}

// Start launches background jobs. Safe to call when none are configured.
func (a *App) Start() {
	if a.cron != nil {
		a.cron.Start()
		a.logger.Info("catalog refresh scheduler started")
	}
}

// Stop halts background jobs and waits for running ones to finish.
func (a *App) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}
