package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show recent sync attempts of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(appOptions{history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.manager.ListRuns(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(runs)
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintf(os.Stdout, "No sync runs recorded for %s.\n", args[0])
			return nil
		}

		rows := make([][]cell, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []cell{
				plain(run.StartedAt.Local().Format("2006-01-02 15:04:05")),
				plain(run.Trigger),
				outcomeCell(run.Outcome),
				plain(run.Duration.Round(time.Millisecond).String()),
				plain(shortHash(&run.CommitHash)),
				styled(truncateString(run.Error, 60), errorStyle),
			})
		}

		printTable([]string{"STARTED", "TRIGGER", "OUTCOME", "DURATION", "COMMIT", "ERROR"}, rows)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	addJSONFlag(historyCmd.Flags())
}

func outcomeCell(o model.Outcome) cell {
	switch o {
	case model.OutcomeSynced:
		return styled(string(o), successStyle)
	case model.OutcomeSkipped:
		return styled(string(o), dimStyle)
	default:
		return styled(string(o), errorStyle)
	}
}
