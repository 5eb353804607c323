package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inovacc/gitsafe/internal/application"
	"github.com/inovacc/gitsafe/internal/config"
	"github.com/inovacc/gitsafe/internal/daemon"
	"github.com/inovacc/gitsafe/internal/process"
	"github.com/inovacc/gitsafe/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	serverSyncOnStart bool
	serverStopTimeout time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Run the sync scheduler in the foreground and manage a running instance.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync scheduler",
	Long: `Start the sync scheduler in the foreground.

The cron expression is read once at startup. Every tick syncs all enabled
repositories. The server runs until interrupted with Ctrl+C or SIGTERM,
then waits for in-flight syncs and flushes the configuration.`,
	RunE: runServerStart,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE:  runServerStop,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE:  runServerStatus,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)

	serverStartCmd.Flags().BoolVar(&serverSyncOnStart, "sync-now", false, "Sync all repositories once before the first scheduled tick")
	serverStopCmd.Flags().DurationVar(&serverStopTimeout, "timeout", 30*time.Second, "Timeout waiting for the server to stop")
}

func runServerStart(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, serverSyncOnStart)
}

// serve runs the scheduler until ctx is done. It is shared by the foreground
// command and the system service.
func serve(ctx context.Context, syncNow bool) error {
	a, err := openApp(appOptions{history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if info := daemon.Running(a.dataDir); info != nil {
		return fmt.Errorf("server already running (PID %d)", info.PID)
	}

	cfg := a.store.Snapshot()

	sched, err := scheduler.New(cfg.Scheduler.CronExpression, func(ctx context.Context) {
		a.manager.SyncAll(ctx)
	}, scheduler.WithLogger(a.logger))
	if err != nil {
		return err
	}

	info := &daemon.Info{
		PID:            os.Getpid(),
		StartedAt:      time.Now(),
		ConfigPath:     a.configPath,
		ArchiveDir:     a.engine.ArchiveDir(),
		CronExpression: sched.Expression(),
	}

	if err := daemon.Write(a.dataDir, info); err != nil {
		a.logger.Warn("failed to write server info file", slog.Any("error", err))
	}
	defer daemon.Remove(a.dataDir)

	a.logger.Info("gitsafe server started",
		slog.Int("pid", info.PID),
		slog.String("config", a.configPath),
		slog.String("archive_dir", info.ArchiveDir),
		slog.Int("repositories", len(cfg.Repositories)),
	)

	if syncNow {
		a.manager.SyncAll(ctx)
	}

	sched.Start()

	<-ctx.Done()

	a.logger.Info("received shutdown signal, waiting for running syncs")
	sched.Stop()
	a.manager.Wait()

	a.logger.Info("running syncs finished, shutting down")

	return nil
}

func runServerStop(_ *cobra.Command, _ []string) error {
	dataDir, err := application.EnsureDirectory(dataDirFlag)
	if err != nil {
		return err
	}

	info := daemon.Running(dataDir)
	if info == nil {
		_, _ = fmt.Fprintln(os.Stdout, "Server is not running")
		return nil
	}

	_, _ = fmt.Fprintf(os.Stdout, "Stopping server (PID: %d)...\n", info.PID)

	if err := process.Terminate(info.PID); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := process.WaitForExit(info.PID, serverStopTimeout); err != nil {
		return fmt.Errorf("server did not stop within timeout: %w", err)
	}

	_, _ = fmt.Fprintln(os.Stdout, "Server stopped successfully")

	return nil
}

func runServerStatus(_ *cobra.Command, _ []string) error {
	dataDir, err := application.EnsureDirectory(dataDirFlag)
	if err != nil {
		return err
	}

	info := daemon.Running(dataDir)
	if info == nil {
		_, _ = fmt.Fprintln(os.Stdout, "Server status: stopped")
		return nil
	}

	printField("Server status", successStyle.Render("running"))
	printField("PID", fmt.Sprintf("%d", info.PID))
	printField("Started", info.StartedAt.Format(time.RFC3339))
	printField("Uptime", info.Uptime().String())
	printField("Config", info.ConfigPath)
	printField("Archives", info.ArchiveDir)
	printField("Schedule", info.CronExpression)

	if schedule, err := config.CronParser.Parse(info.CronExpression); err == nil {
		printField("Next run", schedule.Next(time.Now()).Format(time.RFC3339))
	}

	return nil
}
