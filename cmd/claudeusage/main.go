package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/howmuchclaude/claudeusage/internal/config"
	"github.com/howmuchclaude/claudeusage/internal/discovery"
	"github.com/howmuchclaude/claudeusage/internal/history"
	"github.com/howmuchclaude/claudeusage/internal/quota"
	"github.com/howmuchclaude/claudeusage/internal/stats"
	"github.com/howmuchclaude/claudeusage/internal/version"
)

var (
	flagConfigPath string
	flagVerbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "claudeusage",
		Short:         "Aggregate Claude Code usage logs and remote quota data",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to settings file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(), newOnceCmd(), newQuotaCmd(), newHistoryCmd(), newConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if flagConfigPath != "" {
		return config.LoadFrom(flagConfigPath)
	}
	return config.Load()
}

func newLogger(cfg config.Config) zerolog.Logger {
	level := zerolog.WarnLevel
	if cfg.Verbose || flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// buildManager wires discovery, the quota client and the optional
// history store into a stats manager.
func buildManager(cfg config.Config, log zerolog.Logger) (*stats.Manager, func(), error) {
	disc := discovery.New(cfg.LogDirs, log)
	client := quota.NewClient(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, log)

	var (
		store   *history.Store
		cleanup = func() {}
	)
	if cfg.HistoryDBPath != "" {
		var err error
		store, err = history.OpenStore(cfg.HistoryDBPath)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = store.Close() }
	}

	mgr := stats.NewManager(disc, client, log, stats.Options{History: store})
	return mgr, cleanup, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
