package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDoctorsCommand(ctx *commandContext) *cobra.Command {
	doctorsCmd := &cobra.Command{
		Use:   "doctors",
		Short: "Manage the doctor directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	doctorsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all doctors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doctors, err := client.ListDoctors()
			if err != nil {
				return err
			}
			if len(doctors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no doctors registered")
				return nil
			}
			rows := make([][]string, 0, len(doctors))
			for _, d := range doctors {
				rows = append(rows, []string{
					d.Name,
					d.Specialty,
					strconv.FormatBool(d.AcceptingQueues),
					d.DoctorID,
				})
			}
			out := renderTable(
				[]string{"NAME", "SPECIALTY", "ACCEPTING", "ID"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a doctor",
		Args:  cobra.ExactArgs(1),
	}
	specialty := addCmd.Flags().String("specialty", "", "Doctor specialty")
	addCmd.RunE = func(cmd *cobra.Command, args []string) error {
		client, err := ctx.client()
		if err != nil {
			return err
		}
		doctor, err := client.CreateDoctor(args[0], *specialty)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created doctor %s (%s)\n", doctor.Name, doctor.DoctorID)
		return nil
	}
	doctorsCmd.AddCommand(addCmd)

	doctorsCmd.AddCommand(&cobra.Command{
		Use:   "remove <doctor-id>",
		Short: "Remove a doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteDoctor(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	})

	doctorsCmd.AddCommand(&cobra.Command{
		Use:   "accepting <doctor-id> <true|false>",
		Short: "Open or close a doctor's queue for new patients",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accepting, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("second argument must be true or false")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.SetAccepting(args[0], accepting); err != nil {
				return err
			}
			if accepting {
				fmt.Fprintln(cmd.OutOrStdout(), "queue opened")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "queue closed")
			}
			return nil
		},
	})

	return doctorsCmd
}
