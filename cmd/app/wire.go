package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"product-content-ai/internal/config"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/domain/ports/repository"
	aiAdapters "product-content-ai/internal/infra/adapters/ai"
	tele "product-content-ai/internal/infra/adapters/telegram"
	"product-content-ai/internal/infra/cache"
	pg "product-content-ai/internal/infra/db/postgres"
	"product-content-ai/internal/infra/db/sqlite"
	"product-content-ai/internal/infra/logging"
	"product-content-ai/internal/infra/publisher"
	red "product-content-ai/internal/infra/redis"
	"product-content-ai/internal/infra/source"
	"product-content-ai/internal/usecase"
)

// app holds everything a command needs. Built once per process.
type app struct {
	cfg      *config.Config
	log      *zerolog.Logger
	registry *aiAdapters.Registry
	ledger   *usecase.Ledger
	tasks    *usecase.TaskExecutor
	source   repository.ItemSource
	runs     usecase.RunUseCase
	generate *usecase.GenerateUseCase
	store    repository.RunStatusStore
	redis    *red.Client

	closers []io.Closer
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

// buildApp wires the provider core and its collaborators from cfg.
func buildApp(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = c
		a.closers = append(a.closers, c)
	}

	// ---- Providers ----
	opts := []aiAdapters.Option{
		aiAdapters.WithLogger(log),
		aiAdapters.WithEstimator(aiAdapters.NewTiktokenEstimator(log)),
		aiAdapters.WithRetryPolicy(retryPolicy(cfg.Retry)),
	}
	if a.redis != nil {
		opts = append(opts, aiAdapters.WithCallWindow(red.NewRateLimiter(a.redis)))
	}
	reg, err := aiAdapters.NewRegistry(cfg.Providers, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = reg

	// ---- Raw input source ----
	src, err := a.buildSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Source.CacheTTL > 0 {
		src = cache.NewSourceCacheDecorator(src, cfg.Source.CacheTTL)
	}
	a.source = src

	// ---- Run status store + notifier ----
	if a.redis != nil {
		a.store = red.NewRunStatusStore(a.redis, cfg.Redis.TTL)
	} else {
		a.store = cache.NewRunStatusStore(cfg.Redis.TTL)
	}
	var notifier adapter.RunNotifier
	if cfg.Telegram.Token != "" {
		n, err := tele.NewRunNotifier(cfg.Telegram, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = n
	}

	// ---- Core ----
	a.ledger = usecase.NewLedger(log)
	router := usecase.NewTaskRouter(reg, a.ledger, cfg.Routing.ReferenceInputUnits, log)
	a.tasks = usecase.NewTaskExecutor(router, reg, a.ledger, log)

	pipeline := usecase.NewPipeline(a.source, a.tasks, publisher.NewMarkdownTransformer(), a.buildPublisher(),
		usecase.PublishLimits{Title: cfg.Publisher.TitleLimit, Description: cfg.Publisher.DescriptionLimit}, log)
	a.runs = usecase.NewRunScheduler(pipeline, a.ledger, cfg.Limits, cfg.Scheduler.Workers, a.store, notifier, log)
	a.generate = usecase.NewGenerateUseCase(a.source, a.tasks, a.ledger, cfg.Limits, log)
	return a, nil
}

func (a *app) buildSource(ctx context.Context) (repository.ItemSource, error) {
	switch a.cfg.Source.Kind {
	case "postgres":
		pool, err := pg.Connect(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, closerFunc(func() error { pool.Close(); return nil }))
		return pg.NewPostgresProductSource(pool, a.cfg.Source.Table), nil
	case "sqlite":
		db, err := sqlite.Open(a.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		src, err := sqlite.NewProductSource(db, a.cfg.Source.Table)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return source.NewFileSource(a.cfg.Source.Path), nil
	}
}

func (a *app) buildPublisher() adapter.Publisher {
	if a.cfg.Publisher.Kind == "http" {
		return publisher.NewHTTPPublisher(a.cfg.Publisher.URL, a.cfg.Publisher.Token, a.cfg.Publisher.Timeout, nil)
	}
	return publisher.NewLogPublisher(a.log)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func retryPolicy(c config.RetryConfig) aiAdapters.RetryPolicy {
	p := aiAdapters.DefaultRetryPolicy()
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.RateLimitMultiplier > 0 {
		p.RateLimitMultiplier = c.RateLimitMultiplier
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	return p
}

// allSlugs resolves the slug list for a run: args when given, else the whole source.
func allSlugs(ctx context.Context, src repository.ItemSource, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return src.List(ctx)
}

// describeRun is the one-line summary printed by run and logged by serve.
func describeRun(run *model.RunState) string {
	c := run.Counts()
	return fmt.Sprintf("run %s: %d published, %d failed, %d skipped, spent %s",
		run.ID, c[model.OutcomePublished], c[model.OutcomeFailed], c[model.OutcomeSkipped], model.FormatMicros(run.CommittedMicros))
}
