package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/inovacc/gitsafe/internal/core"
	"github.com/spf13/cobra"
)

var repoImportCmd = &cobra.Command{
	Use:   "import <owner>",
	Short: "Add every repository of a GitHub organization or user",
	Long: `Add every repository of a GitHub organization or user.

Repositories already configured are left untouched. Forks and archived
repositories are skipped unless asked for.

Authentication:
  Token is read from (in order):
  - --token flag
  - GITHUB_TOKEN environment variable
  - GH_TOKEN environment variable

Examples:
  gitsafe repo import my-org
  gitsafe repo import my-org --ssh --credential deploy-key
  gitsafe repo import my-org --base-url https://github.example.com/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		baseURL, _ := cmd.Flags().GetString("base-url")
		credential, _ := cmd.Flags().GetString("credential")
		useSSH, _ := cmd.Flags().GetBool("ssh")
		forks, _ := cmd.Flags().GetBool("forks")
		archived, _ := cmd.Flags().GetBool("archived")

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := core.NewGitHubClient(cmd.Context(), resolveGitHubToken(token), baseURL)
		if err != nil {
			return err
		}

		req := core.GitHubImportRequest{
			Owner:           args[0],
			UseSSH:          useSSH,
			IncludeForks:    forks,
			IncludeArchived: archived,
		}
		if credential != "" {
			req.CredentialID = &credential
		}

		_, _ = fmt.Fprintf(os.Stdout, "Fetching repositories of %s...\n", args[0])

		result, err := a.manager.ImportGitHub(cmd.Context(), core.NewGitHubLister(client, a.logger), req)
		if err != nil {
			return err
		}

		for _, id := range result.Added {
			_, _ = fmt.Fprintf(os.Stdout, "  %s %s\n", successStyle.Render("+"), id)
		}

		for _, name := range result.Skipped {
			_, _ = fmt.Fprintf(os.Stdout, "  %s %s\n", dimStyle.Render("-"), dimStyle.Render(name))
		}

		_, _ = fmt.Fprintf(os.Stdout, "\nAdded %d, skipped %d\n", len(result.Added), len(result.Skipped))

		return nil
	},
}

func init() {
	repoCmd.AddCommand(repoImportCmd)

	repoImportCmd.Flags().String("token", "", "GitHub token")
	repoImportCmd.Flags().String("base-url", "", "GitHub Enterprise base URL")
	repoImportCmd.Flags().String("credential", "", "Credential id assigned to every imported repository")
	repoImportCmd.Flags().Bool("ssh", false, "Use SSH clone URLs")
	repoImportCmd.Flags().Bool("forks", false, "Include forks")
	repoImportCmd.Flags().Bool("archived", false, "Include archived repositories")
}

func resolveGitHubToken(flag string) string {
	if flag != "" {
		return flag
	}

	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}

	return ""
}
