package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/howmuchclaude/claudeusage/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagConfigPath != "" {
				if err := config.SaveTo(flagConfigPath, cfg); err != nil {
					return err
				}
				fmt.Println("wrote", flagConfigPath)
				return nil
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Println("wrote", config.ConfigPath())
			return nil
		},
	})

	return cmd
}
