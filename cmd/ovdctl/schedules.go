package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/spf13/cobra"
)

var scheduleOrg string

var schedulesCmd = &cobra.Command{
	Use:     "schedules",
	GroupID: "admin",
	Short:   "Inspect sync schedules",
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync configs and their next run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cfgs, err := a.Service.GetSyncConfig(cmd.Context(), scheduleOrg)
		if err != nil {
			return explain(err)
		}
		if len(cfgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sync configs")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tENABLED\tDIRECTION\tSCHEDULE\tVESSELS\tRETRIES\tNEXT RUN")
		for _, c := range cfgs {
			expr, err := core.CronExpression(c)
			if err != nil {
				expr = "invalid"
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%d/%d\t%s\n",
				c.ID, c.ConfigName, c.Enabled, c.SyncDirection, expr,
				joinOrDash(c.VesselFilter), c.RetryCount, c.MaxRetries, formatTime(c.NextSyncAt))
		}
		return tw.Flush()
	},
}

func init() {
	schedulesListCmd.Flags().StringVar(&scheduleOrg, "org", "", "only this organization")
	schedulesCmd.AddCommand(schedulesListCmd)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}
