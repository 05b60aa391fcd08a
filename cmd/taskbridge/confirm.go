package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func confirmCmd() *cobra.Command {
	var reject bool

	cmd := &cobra.Command{
		Use:   "confirm [task-id]",
		Short: "Confirm or reject ownership of a task awaiting confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Confirm(args[0], !reject); err != nil {
				return err
			}

			if reject {
				fmt.Printf("Task %s rejected\n", args[0])
			} else {
				fmt.Printf("Task %s confirmed\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "reject ownership instead of confirming")

	return cmd
}

func completeCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "complete [task-id]",
		Short: "Complete a task locally and close its remote mirrors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.CompleteTask(context.Background(), args[0], note); err != nil {
				return err
			}

			fmt.Printf("Task %s completed\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "completion note posted to remote mirrors")

	return cmd
}
