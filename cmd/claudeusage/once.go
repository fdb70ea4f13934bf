package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/howmuchclaude/claudeusage/internal/quota"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run one full load cycle and print the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			mgr, cleanup, err := buildManager(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			mgr.PerformInitialLoad(context.Background())
			return printJSON(mgr.Snapshot())
		},
	}
}

func newQuotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Fetch current API quota utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			client := quota.NewClient(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, log)
			quotas := client.FetchQuotas(context.Background())
			return printJSON(quotas)
		},
	}
}
