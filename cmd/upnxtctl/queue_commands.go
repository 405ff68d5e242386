package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage a doctor's waiting queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueJoinCommand(ctx))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, "move-up", "up", "Move a patient one position earlier"))
	queueCmd.AddCommand(newQueueMoveCommand(ctx, "move-down", "down", "Move a patient one position later"))
	queueCmd.AddCommand(newQueueSkipCommand(ctx))
	queueCmd.AddCommand(newQueueCompleteCommand(ctx))
	queueCmd.AddCommand(newQueueReorderCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <doctor-id>",
		Short: "Show the waiting queue in position order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			patients, err := client.Queue(args[0])
			if err != nil {
				return err
			}
			if len(patients) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(patients))
			for _, p := range patients {
				skipped := ""
				if p.Skipped {
					skipped = "yes"
				}
				rows = append(rows, []string{
					strconv.Itoa(p.Position),
					p.Code,
					p.Name,
					p.PatientID,
					p.JoinedAt.Local().Format("15:04"),
					skipped,
				})
			}
			out := renderTable(
				[]string{"POS", "CODE", "NAME", "ID", "JOINED", "SKIPPED"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newQueueJoinCommand(ctx *commandContext) *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "join <doctor-id> <name>",
		Short: "Add a patient to the end of the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			patient, err := client.Join(args[0], args[1], phone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined as %s at position %d (%s)\n", patient.Code, patient.Position, patient.PatientID)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Patient phone number")
	return cmd
}

func newQueueMoveCommand(ctx *commandContext, use, direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <doctor-id> <patient-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Move(args[0], args[1], direction); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "moved")
			return nil
		},
	}
}

func newQueueSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <doctor-id> <patient-id> <position>",
		Short: "Move a patient later in line to the given position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[2])
			if err != nil || position <= 0 {
				return fmt.Errorf("position must be a positive integer")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Skip(args[0], args[1], position); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "skipped to position %d\n", position)
			return nil
		},
	}
}

func newQueueCompleteCommand(ctx *commandContext) *cobra.Command {
	var outcome string
	cmd := &cobra.Command{
		Use:   "complete <doctor-id> <patient-id>",
		Short: "Remove a patient from the queue with a final outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Complete(args[0], args[1], outcome); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed as %s\n", outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "served", "Final outcome: served, skipped, or canceled")
	return cmd
}

func newQueueReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <doctor-id> <patient-ids>",
		Short: "Apply a full reordering of the queue",
		Long:  "Applies a comma-separated list of patient ids as the new queue order. The list must contain every waiting patient exactly once.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := strings.Split(args[1], ",")
			for i := range ids {
				ids[i] = strings.TrimSpace(ids[i])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Reorder(args[0], ids); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reordered")
			return nil
		},
	}
}
