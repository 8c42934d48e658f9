package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"product-content-ai/internal/infra/api"
	"product-content-ai/internal/infra/cache"
	red "product-content-ai/internal/infra/redis"
	"product-content-ai/internal/infra/scheduler"
)

const (
	watchDebounce = 500 * time.Millisecond
	runLockTTL    = 2 * time.Hour
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and run the pipeline on schedule, on demand, or on source changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return errors.New("admin.jwt_secret is required in serve mode")
			}
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var locker red.Locker
			if a.redis != nil {
				locker = red.NewLocker(a.redis)
			}

			job := func(ctx context.Context, reason string) error {
				if locker != nil {
					token, err := locker.TryLock(ctx, red.RunLockKey, runLockTTL)
					if errors.Is(err, red.ErrLocked) {
						log.Info().Str("reason", reason).Msg("run already in progress elsewhere; skipping")
						return nil
					}
					if err != nil {
						return err
					}
					defer func() {
						if err := locker.Unlock(context.WithoutCancel(ctx), red.RunLockKey, token); err != nil {
							log.Warn().Err(err).Msg("release run lock")
						}
					}()
				}
				run, err := runOnce(ctx, a, nil)
				if err != nil {
					return err
				}
				log.Info().Str("reason", reason).Msg(describeRun(run))
				return nil
			}

			sched, err := scheduler.NewScheduler(cfg.Scheduler.Cron, job, log)
			if err != nil {
				return err
			}
			auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
			srv := api.NewServer(a.store, a.registry, sched.Trigger, auth, log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Admin.Port) })
			g.Go(func() error { return sched.Run(gctx) })
			if cfg.Scheduler.WatchSource && cfg.Source.Kind == "file" {
				g.Go(func() error {
					return scheduler.WatchFile(gctx, cfg.Source.Path, watchDebounce, func() {
						cache.Flush(a.source)
						sched.Trigger("watch")
					}, log)
				})
			}

			log.Info().Int("port", cfg.Admin.Port).Str("cron", cfg.Scheduler.Cron).
				Bool("watch", cfg.Scheduler.WatchSource).Msg("serving")
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("shutdown complete")
			return nil
		},
	}
}
