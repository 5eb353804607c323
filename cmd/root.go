package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/inovacc/gitsafe/internal/application"
	"github.com/inovacc/gitsafe/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFlag    string
	dataDirFlag   string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Mirror Git repositories on a schedule",
	Long: `gitsafe keeps local mirrors of remote Git repositories.

Repositories are cloned once and then fetched on a cron schedule, stored
either as working directories or as compact .tar.gz archives. Repeated
failures disable a repository and are reported to the configured webhooks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		logger, err := newLogger(logLevelFlag, logFormatFlag)
		if err != nil {
			return err
		}

		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file (default $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for sync history and the server info file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "text", "Log format: text or json")
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
