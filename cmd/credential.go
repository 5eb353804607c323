package cmd

import (
	"fmt"
	"os"

	"github.com/inovacc/gitsafe/internal/core"
	"github.com/spf13/cobra"
)

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred", "credentials"},
	Short:   "Manage credentials used to reach remotes",
	Long: `Manage credentials used to reach remotes.

A credential holds a username and either a password (or token) for HTTP(S)
remotes or a private key for SSH remotes. Secrets are encrypted with the
configured encryption key before they are written to the configuration.`,
}

var credentialAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential",
	Long: `Add a credential.

Without --ssh-key-file the password is prompted for, or read from stdin
when it is not a terminal.

Examples:
  gitsafe credential add --id github --username octocat
  echo "$TOKEN" | gitsafe credential add --id ci --username x-access-token
  gitsafe credential add --id deploy-key --ssh-key-file ~/.ssh/id_ed25519`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("id")
		username, _ := cmd.Flags().GetString("username")

		req, err := credentialSecrets(cmd, true)
		if err != nil {
			return err
		}

		req.ID = id
		req.Username = username

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.manager.AddCredential(req)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Added credential: %s\n", view.ID)

		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List credentials with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		views := a.manager.ListCredentials()

		if jsonOutput {
			return printJSON(views)
		}

		if len(views) == 0 {
			_, _ = fmt.Fprintln(os.Stdout, "No credentials configured.")
			_, _ = fmt.Fprintln(os.Stdout, "Create one with: gitsafe credential add")

			return nil
		}

		rows := make([][]cell, 0, len(views))
		for _, v := range views {
			kind := "password"
			if v.IsSSHKey {
				kind = "ssh key"
			}

			rows = append(rows, []cell{plain(v.ID), plain(v.Username), plain(kind)})
		}

		printTable([]string{"ID", "USERNAME", "TYPE"}, rows)

		return nil
	},
}

var credentialUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the username or secret of a credential",
	Long: `Change the username or secret of a credential.

A new password replaces a stored SSH key. Without --password or
--ssh-key-file the stored secret is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := credentialSecrets(cmd, false)
		if err != nil {
			return err
		}

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req.Username = currentUsername(a.manager, args[0])
		if cmd.Flags().Changed("username") {
			req.Username, _ = cmd.Flags().GetString("username")
		}

		view, err := a.manager.UpdateCredential(args[0], req)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Updated credential: %s\n", view.ID)

		return nil
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a credential no repository uses",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.RemoveCredential(args[0]); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Removed credential: %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialAddCmd, credentialListCmd, credentialUpdateCmd, credentialRemoveCmd)

	for _, c := range []*cobra.Command{credentialAddCmd, credentialUpdateCmd} {
		c.Flags().String("username", "", "Username sent to the remote")
		c.Flags().String("ssh-key-file", "", "Private key file for SSH remotes")
		c.Flags().Bool("password", false, "Prompt for a password or token")
	}

	credentialAddCmd.Flags().String("id", "", "Credential id (random when empty)")
	addJSONFlag(credentialListCmd.Flags())
}

// credentialSecrets reads the secrets selected by the flags. When required is
// set and no key file is given, the password is prompted for.
func credentialSecrets(cmd *cobra.Command, required bool) (core.CredentialRequest, error) {
	var req core.CredentialRequest

	keyFile, _ := cmd.Flags().GetString("ssh-key-file")
	askPassword, _ := cmd.Flags().GetBool("password")

	if keyFile != "" {
		path, err := expandPath(keyFile)
		if err != nil {
			return req, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read ssh key: %w", err)
		}

		req.SSHKey = string(data)
	}

	if askPassword || (required && keyFile == "") {
		password, err := readPassword("Password or token: ")
		if err != nil {
			return req, err
		}

		req.Password = password
	}

	return req, nil
}

func currentUsername(m *core.Manager, id string) string {
	for _, v := range m.ListCredentials() {
		if v.ID == id {
			return v.Username
		}
	}

	return ""
}
