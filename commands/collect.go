package commands

import (
	"os"

	"github.com/spf13/cobra"

	"kpiwatch/collector"
)

func init() {
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects the KPIs once and appends one row to every configured store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := current.collectOnce(cmd.Context())
		if err != nil {
			return err
		}
		renderRecords(os.Stdout, []collector.Record{rec})
		return nil
	},
}
