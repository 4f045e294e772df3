// Package app wires folio's components from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/folio/internal/config"
	"github.com/mesh-intelligence/folio/internal/execution"
	"github.com/mesh-intelligence/folio/internal/generation"
	"github.com/mesh-intelligence/folio/internal/jobs"
	"github.com/mesh-intelligence/folio/internal/llm"
	"github.com/mesh-intelligence/folio/internal/provider"
	"github.com/mesh-intelligence/folio/internal/secrets"
	"github.com/mesh-intelligence/folio/internal/store"
	"github.com/mesh-intelligence/folio/internal/telemetry"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// Options replace default collaborators. Zero values keep the defaults.
type Options struct {
	Chunker execution.Chunker
	Models  generation.ModelFactory
}

// App holds the wired components. Close releases them.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      *store.Store
	Secrets    secrets.Resolver
	Catalog    *provider.Catalog
	Executions *execution.Service
	Runner     *generation.Runner
	Registry   *jobs.Registry
}

// New opens the store, builds the process-wide secret resolver and wires
// the services on top of them.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	if err := telemetry.Err(); err != nil {
		logger.Warn().Err(err).Msg("Metrics unavailable")
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	resolver, err := secrets.Default(ctx, cfg.SecretsOptions())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open secrets: %w", err)
	}

	models := opts.Models
	if models == nil {
		models = llm.NewFactory()
	}
	catalog := provider.NewCatalog(st, resolver)
	runner := generation.NewRunner(st, catalog, models, generation.Options{
		DefaultLLM:     cfg.DefaultLLM,
		RecursionLimit: cfg.GenerationRecursionLimit,
	}, logger)

	registry := jobs.NewRegistry()
	registry.Register(types.JobTypeGeneration, runner.Handle)

	logger.Debug().Str("dialect", st.Dialect().String()).Str("secrets", cfg.SecretsProvider).Msg("Application wired")
	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Secrets:    resolver,
		Catalog:    catalog,
		Executions: execution.NewService(st, opts.Chunker, logger),
		Runner:     runner,
		Registry:   registry,
	}, nil
}

// Pool returns a worker pool over the app's store and registry, sized by
// the configuration.
func (a *App) Pool() *jobs.Pool {
	return jobs.NewPool(a.Store, a.Registry, jobs.Options{
		Workers:      a.Config.JobWorkerCount,
		PollInterval: a.Config.JobPollInterval,
	}, a.Logger)
}

// Enqueue queues a generation run.
func (a *App) Enqueue(ctx context.Context, p types.GenerationPayload) (*types.Job, error) {
	return generation.Enqueue(ctx, a.Store, p)
}

// Close closes the store and the process-wide secret resolver.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), secrets.Close())
}
