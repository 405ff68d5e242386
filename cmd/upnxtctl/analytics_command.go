package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var doctorID, from, to string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show per-day queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			records, err := client.Analytics(doctorID, from, to)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no analytics for the requested range")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Date,
					rec.DoctorID,
					strconv.Itoa(rec.TotalServed),
					strconv.Itoa(rec.TotalSkipped),
					strconv.Itoa(rec.TotalCanceled),
					strconv.Itoa(rec.AverageWaitMins),
					strconv.Itoa(rec.MinWaitMins),
					strconv.Itoa(rec.MaxWaitMins),
				})
			}
			out := renderTable(
				[]string{"DATE", "DOCTOR", "SERVED", "SKIPPED", "CANCELED", "AVG WAIT", "MIN", "MAX"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Filter by doctor id")
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD)")

	cmd.AddCommand(&cobra.Command{
		Use:   "recompute <doctor-id> <date>",
		Short: "Rebuild one doctor's daily summary from the archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.Recompute(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: served %d, skipped %d, canceled %d, wait avg/min/max %d/%d/%d min\n",
				record.Date, record.DoctorID,
				record.TotalServed, record.TotalSkipped, record.TotalCanceled,
				record.AverageWaitMins, record.MinWaitMins, record.MaxWaitMins)
			return nil
		},
	})
	return cmd
}
