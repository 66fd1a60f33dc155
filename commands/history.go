package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 30, "number of most recent rows to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints the rows stored in the SQLite database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := current.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		renderRecords(os.Stdout, records)
		return nil
	},
}
