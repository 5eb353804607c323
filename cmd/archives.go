package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var archivesCmd = &cobra.Command{
	Use:     "archives",
	Aliases: []string{"mirrors"},
	Short:   "List stored mirrors under the archive directory",
	Long: `List stored mirrors under the archive directory.

Mirrors no configured repository points to any more are shown as orphaned.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		mirrors, err := a.manager.ListArchives()
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(mirrors)
		}

		if len(mirrors) == 0 {
			_, _ = fmt.Fprintf(os.Stdout, "No mirrors stored in %s.\n", a.engine.ArchiveDir())
			return nil
		}

		var total int64

		rows := make([][]cell, 0, len(mirrors))
		for _, m := range mirrors {
			total += m.Size

			kind := "archive"
			if m.Directory {
				kind = "directory"
			}

			owner := styled("orphaned", warnStyle)
			if m.RepositoryID != "" {
				owner = plain(m.RepositoryID)
			}

			rows = append(rows, []cell{
				plain(m.Path),
				plain(kind),
				plain(formatBytes(m.Size)),
				plain(m.ModTime.Local().Format("2006-01-02 15:04:05")),
				owner,
			})
		}

		printTable([]string{"PATH", "TYPE", "SIZE", "MODIFIED", "REPOSITORY"}, rows)
		_, _ = fmt.Fprintf(os.Stdout, "%d mirrors, %s total\n", len(mirrors), formatBytes(total))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(archivesCmd)

	addJSONFlag(archivesCmd.Flags())
}
