package main

import (
	"github.com/spf13/cobra"

	"github.com/howmuchclaude/claudeusage/internal/config"
	"github.com/howmuchclaude/claudeusage/internal/history"
	"github.com/howmuchclaude/claudeusage/internal/usage"
)

func historyDBPath(cfg config.Config) (string, error) {
	if cfg.HistoryDBPath != "" {
		return cfg.HistoryDBPath, nil
	}
	return history.DefaultDBPath()
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show persisted usage totals and recent entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path, err := historyDBPath(cfg)
			if err != nil {
				return err
			}
			store, err := history.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			totals, err := store.Totals(ctx)
			if err != nil {
				return err
			}
			recent, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}

			return printJSON(struct {
				Totals history.Totals `json:"totals"`
				Recent []usage.Entry  `json:"recent"`
			}{totals, recent})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent entries to show")
	return cmd
}
