package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/config"
	"github.com/inovacc/gitsafe/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const masked = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Long: `Print the effective configuration, after GITSAFE__ environment
overrides, with the encryption key, JWT secret and credential secrets
masked.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.store.Snapshot()
		cfg.Server.EncryptionKey = masked
		cfg.Server.JWTSecret = masked

		for i := range cfg.Users {
			cfg.Users[i].PasswordHash = masked
		}

		view := struct {
			Path         string                 `yaml:"path"`
			Server       model.ServerConfig     `yaml:"server"`
			Storage      model.StorageConfig    `yaml:"storage"`
			Scheduler    model.SchedulerConfig  `yaml:"scheduler"`
			Repositories int                    `yaml:"repositories"`
			Credentials  []model.CredentialView `yaml:"credentials"`
			Users        []model.User           `yaml:"users"`
		}{
			Path:         a.configPath,
			Server:       cfg.Server,
			Storage:      cfg.Storage,
			Scheduler:    cfg.Scheduler,
			Repositories: len(cfg.Repositories),
			Credentials:  a.manager.ListCredentials(),
			Users:        cfg.Users,
		}

		out, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		_, _ = os.Stdout.Write(out)

		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := filepath.Abs(config.ResolvePath(configFlag))
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(os.Stdout, path)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file without changing it",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := config.ResolvePath(configFlag)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		cfg, err := config.Parse(data)
		if err != nil {
			return err
		}

		if err := config.ApplyEnv(cfg, os.Environ()); err != nil {
			return err
		}

		if err := config.Validate(cfg); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "%s: %d repositories, %d credentials, schedule %q\n",
			successStyle.Render("valid"), len(cfg.Repositories), len(cfg.Credentials), cfg.Scheduler.CronExpression)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configValidateCmd)
}
