package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/inovacc/gitsafe/internal/core"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [id]",
	Short: "Sync one repository, or all enabled ones with --all",
	Long: `Sync a repository now.

The sync goes through the same attempt accounting as scheduled runs: a
failure uses up one attempt and fires the error webhooks.

Examples:
  gitsafe sync github_com-example-repo1
  gitsafe sync --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		if all == (len(args) == 1) {
			return fmt.Errorf("pass either a repository id or --all")
		}

		a, err := openApp(appOptions{history: true, mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if all {
			summary := a.manager.SyncAll(cmd.Context())

			printField("Repositories", fmt.Sprintf("%d", summary.Total))
			printField("Synced", successStyle.Render(fmt.Sprintf("%d", summary.Synced)))
			printField("Up to date", fmt.Sprintf("%d", summary.Skipped))
			printField("Failed", errorStyle.Render(fmt.Sprintf("%d", summary.Failed)))
			printField("Disabled", fmt.Sprintf("%d", summary.Disabled))
			printField("Duration", summary.Duration.Round(time.Millisecond).String())

			if summary.Failed > 0 || summary.Errored > 0 {
				return fmt.Errorf("%d of %d repositories failed", summary.Failed+summary.Errored, summary.Total)
			}

			return nil
		}

		res, err := a.manager.SyncRepository(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, core.ErrOutOfAttempts) {
				_, _ = fmt.Fprintln(os.Stderr, warnStyle.Render("Repository disabled after running out of attempts"))
			}

			return err
		}

		_, _ = fmt.Fprintln(os.Stdout, res.Status)
		printField("Commit", res.CommitHash)
		printField("Message", res.CommitMessage)
		printField("Size", formatBytes(res.Size))
		printField("Path", res.Path)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("all", false, "Sync every enabled repository")
}
