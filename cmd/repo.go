package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inovacc/gitsafe/internal/core"
	"github.com/inovacc/gitsafe/internal/model"
	"github.com/inovacc/gitsafe/internal/retry"
	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:     "repo",
	Aliases: []string{"repos", "repository"},
	Short:   "Manage mirrored repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a repository to mirror",
	Long: `Add a repository to mirror.

The id defaults to one derived from the URL, for example
https://github.com/example/repo1 becomes github_com-example-repo1.
HTTP(S) remotes need a credential with a password; SSH remotes need one
with a private key.

Examples:
  gitsafe repo add https://github.com/example/repo1
  gitsafe repo add git@github.com:example/private.git --credential deploy-key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		credential, _ := cmd.Flags().GetString("credential")

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req := core.AddRepositoryRequest{ID: id, URL: args[0]}
		if credential != "" {
			req.CredentialID = &credential
		}

		repo, err := a.manager.AddRepository(req)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Added: %s\n", repo.ID)

		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List repositories and their sync state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		repos := a.manager.ListRepositories()

		if jsonOutput {
			return printJSON(repos)
		}

		if len(repos) == 0 {
			_, _ = fmt.Fprintln(os.Stdout, "No repositories configured.")
			_, _ = fmt.Fprintln(os.Stdout, "Add one with: gitsafe repo add <url>")

			return nil
		}

		printReposTable(repos)

		return nil
	},
}

var repoShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		repo, err := a.manager.GetRepository(args[0])
		if err != nil {
			return err
		}

		printField("ID", repo.ID)
		printField("URL", repo.URL)
		state := stateCell(repo)
		printField("State", state.style.Render(state.text))
		printField("Credential", deref(repo.CredentialID, "none"))
		printField("Stored at", a.engine.StoragePath(repo.URL))
		printField("Last sync", formatTime(repo.LastSync))
		printField("Commit", deref(repo.LastSyncCommitHash, "-"))
		printField("Message", deref(repo.LastSyncMessage, "-"))

		if repo.Size != nil {
			printField("Size", formatBytes(*repo.Size))
		}

		if repo.Error != nil {
			printField("Last error", errorStyle.Render(*repo.Error))
		}

		return nil
	},
}

var repoUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Enable, disable or change the credential of a repository",
	Long: `Change a repository.

Enabling a disabled repository gives it a fresh attempt budget. Pass an
empty --credential to remove the credential.

Examples:
  gitsafe repo update github_com-example-repo1 --enable
  gitsafe repo update github_com-example-repo1 --credential ""`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enable, _ := cmd.Flags().GetBool("enable")
		disable, _ := cmd.Flags().GetBool("disable")

		if enable && disable {
			return fmt.Errorf("--enable and --disable are mutually exclusive")
		}

		var req core.UpdateRepositoryRequest

		switch {
		case enable:
			req.Enabled = model.Ptr(true)
		case disable:
			req.Enabled = model.Ptr(false)
		}

		if cmd.Flags().Changed("credential") {
			credential, _ := cmd.Flags().GetString("credential")
			req.CredentialID = &credential
		}

		if req.Enabled == nil && req.CredentialID == nil {
			return fmt.Errorf("nothing to update; use --enable, --disable or --credential")
		}

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		repo, err := a.manager.UpdateRepository(args[0], req)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Updated: %s (%s)\n", repo.ID, retry.StateOf(repo))

		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Stop mirroring a repository",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		purge, _ := cmd.Flags().GetBool("purge")
		yes, _ := cmd.Flags().GetBool("yes")

		if purge && !yes && !promptConfirm(fmt.Sprintf("Delete the stored mirror of %s? [y/N]: ", args[0])) {
			_, _ = fmt.Fprintln(os.Stdout, "Cancelled.")
			return nil
		}

		a, err := openApp(appOptions{history: true, mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.RemoveRepository(cmd.Context(), args[0], purge); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Removed: %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoShowCmd, repoUpdateCmd, repoRemoveCmd)

	repoAddCmd.Flags().String("id", "", "Repository id (derived from the URL when empty)")
	repoAddCmd.Flags().String("credential", "", "Credential id used to authenticate")

	addJSONFlag(repoListCmd.Flags())

	repoUpdateCmd.Flags().Bool("enable", false, "Enable the repository")
	repoUpdateCmd.Flags().Bool("disable", false, "Disable the repository")
	repoUpdateCmd.Flags().String("credential", "", "Credential id; empty removes it")

	repoRemoveCmd.Flags().Bool("purge", false, "Also delete the stored mirror")
	repoRemoveCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

func printReposTable(repos []model.Repository) {
	rows := make([][]cell, 0, len(repos))

	for i := range repos {
		repo := &repos[i]

		size := "-"
		if repo.Size != nil {
			size = formatBytes(*repo.Size)
		}

		rows = append(rows, []cell{
			plain(repo.ID),
			stateCell(repo),
			plain(formatTime(repo.LastSync)),
			plain(shortHash(repo.LastSyncCommitHash)),
			plain(size),
			styled(truncateString(repo.URL, 60), dimStyle),
		})
	}

	printTable([]string{"ID", "STATE", "LAST SYNC", "COMMIT", "SIZE", "URL"}, rows)
}

func stateCell(repo *model.Repository) cell {
	state := retry.StateOf(repo)

	switch state.Phase {
	case retry.Healthy:
		return styled(state.String(), successStyle)
	case retry.Degraded:
		return styled(state.String(), warnStyle)
	default:
		return styled(state.String(), errorStyle)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
