package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/application"
	"github.com/inovacc/gitsafe/internal/config"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var (
	serviceStart     bool
	serviceStop      bool
	serviceInstall   bool
	serviceUninstall bool
	serviceStatus    bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the gitsafe server as a system service",
	Long: `Install, uninstall, start, stop, or check the status of the gitsafe
server as a system service.

On Windows, this creates/manages a Windows Service.
On Linux/macOS, this creates/manages a systemd/launchd service.

The service runs with the configuration file and data directory given at
install time.`,
	RunE: runService,
}

var serviceRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run under the service manager",
	Hidden: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		s, err := newService()
		if err != nil {
			return err
		}

		return s.Run()
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceRunCmd)

	serviceCmd.Flags().BoolVar(&serviceStart, "start", false, "Start the gitsafe service")
	serviceCmd.Flags().BoolVar(&serviceStop, "stop", false, "Stop the gitsafe service")
	serviceCmd.Flags().BoolVar(&serviceInstall, "install", false, "Install gitsafe as a system service")
	serviceCmd.Flags().BoolVar(&serviceUninstall, "uninstall", false, "Uninstall the gitsafe system service")
	serviceCmd.Flags().BoolVar(&serviceStatus, "status", false, "Check the gitsafe service status")
}

// program implements service.Interface around serve.
type program struct {
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		p.done <- serve(ctx, false)
	}()

	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}

	p.cancel()

	return <-p.done
}

func newService() (service.Service, error) {
	configPath, err := filepath.Abs(config.ResolvePath(configFlag))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	dataDir, err := application.EnsureDirectory(dataDirFlag)
	if err != nil {
		return nil, err
	}

	svcConfig := &service.Config{
		Name:             application.ServiceName,
		DisplayName:      application.ServiceDisplayName,
		Description:      "Mirrors Git repositories on a cron schedule",
		Arguments:        []string{"service", "run", "--config", configPath, "--data-dir", dataDir, "--log-format", logFormatFlag, "--log-level", logLevelFlag},
		WorkingDirectory: filepath.Dir(configPath),
	}

	s, err := service.New(&program{}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return s, nil
}

func runService(_ *cobra.Command, _ []string) error {
	flagCount := 0

	for _, set := range []bool{serviceStart, serviceStop, serviceInstall, serviceUninstall, serviceStatus} {
		if set {
			flagCount++
		}
	}

	if flagCount == 0 {
		return fmt.Errorf("please specify one of: --start, --stop, --install, --uninstall, --status")
	}

	if flagCount > 1 {
		return fmt.Errorf("please specify only one operation at a time")
	}

	s, err := newService()
	if err != nil {
		return err
	}

	switch {
	case serviceInstall:
		if err := s.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "Service installed successfully")
		_, _ = fmt.Fprintln(os.Stdout, "Start it with: gitsafe service --start")
	case serviceUninstall:
		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "Service uninstalled successfully")
	case serviceStart:
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "Service started successfully")
	case serviceStop:
		if err := s.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}

		_, _ = fmt.Fprintln(os.Stdout, "Service stopped successfully")
	case serviceStatus:
		status, err := s.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}

		_, _ = fmt.Fprintf(os.Stdout, "Service status: %s\n", statusString(status))
	}

	return nil
}

func statusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return successStyle.Render("running")
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
