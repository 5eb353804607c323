package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"users"},
	Short:   "Manage local accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user; the password is prompted for",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.AddUser(args[0], password); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Added user: %s\n", args[0])

		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change the password of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.SetUserPassword(args[0], password); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Password changed for %s\n", args[0])

		return nil
	},
}

var userVerifyCmd = &cobra.Command{
	Use:   "verify <username>",
	Short: "Check a password against the stored hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.VerifyUser(args[0], password); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(os.Stdout, successStyle.Render("Password OK"))

		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		users := a.manager.ListUsers()
		if len(users) == 0 {
			_, _ = fmt.Fprintln(os.Stdout, "No users configured.")
			_, _ = fmt.Fprintln(os.Stdout, "Create one with: gitsafe user add <username>")

			return nil
		}

		for _, u := range users {
			_, _ = fmt.Fprintln(os.Stdout, u)
		}

		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"rm"},
	Short:   "Remove a user",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := openApp(appOptions{mutates: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.RemoveUser(args[0]); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Removed user: %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userPasswdCmd, userVerifyCmd, userListCmd, userRemoveCmd)
}
