package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/howmuchclaude/claudeusage/internal/discovery"
	"github.com/howmuchclaude/claudeusage/internal/watcher"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch log directories and refresh continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			mgr, cleanup, err := buildManager(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			mgr.PerformInitialLoad(ctx)
			if err := printJSON(mgr.Snapshot()); err != nil {
				return err
			}

			disc := discovery.New(cfg.LogDirs, log)
			w := watcher.New(time.Duration(cfg.DebounceMillis)*time.Millisecond, log)
			if err := w.Start(disc.ProjectDirs()); err != nil {
				log.Warn().Err(err).Msg("file watching unavailable, relying on timer")
			}
			defer w.Stop()

			interval := time.Duration(cfg.RefreshIntervalSeconds) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					log.Info().Msg("shutting down")
					return nil
				case batch := <-w.Events():
					log.Debug().Int("events", len(batch)).Msg("file change batch")
					mgr.Refresh(ctx)
				case <-ticker.C:
					mgr.Refresh(ctx)
				}
			}
		},
	}
}
