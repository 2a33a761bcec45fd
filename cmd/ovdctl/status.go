package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "data",
	Short:   "Show recent imports, exports and sync runs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.Service.GetSyncStatus(cmd.Context(), statusLimit)
		if err != nil {
			return explain(err)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sync history")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tTYPE\tOPERATION\tSTATUS\tPROCESSED\tIMPORTED\tEXPORTED\tFAILED\tFILE")
		for _, r := range rows {
			file := r.FileName
			if file == "" {
				file = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.InitiatedAt.Local().Format("2006-01-02 15:04"), r.SyncType, r.Operation, r.Status,
				r.RecordsProcessed, r.RecordsImported, r.RecordsExported, r.RecordsFailed, file)
		}
		return tw.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", core.DefaultStatusLimit, "number of rows")
}
