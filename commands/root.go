package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kpiwatch/config"
	"kpiwatch/logger"
	"kpiwatch/timezone"
)

var rootCmd = &cobra.Command{
	Use:   "kpiwatch",
	Short: "kpiwatch records Qiita and Hatena Bookmark KPIs of one author, one row per run.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			logger.Flush(current.log.Logger)
		}
	},
	SilenceUsage: true,
}

// current is set up once per invocation by PersistentPreRunE.
var current *app

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("set up logger: %w", err)
	}
	loc, err := timezone.Load(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return &app{cfg: cfg, log: log, loc: loc}, nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
