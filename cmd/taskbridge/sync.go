package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [provider]",
		Short: "Push all eligible tasks to a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.SyncBatch(context.Background(), args[0])
			if err != nil {
				return err
			}

			printResult(args[0], result)
			return nil
		},
	}
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [provider]",
		Short: "Re-attempt tasks that failed or never synced to a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.RetryFailed(context.Background(), args[0])
			if err != nil {
				return err
			}

			printResult(args[0], result)
			return nil
		},
	}
}

func printResult(provider string, result *task.SyncResult) {
	fmt.Printf("%s: %d synced, %d failed", provider, result.Synced, result.Failed)
	if result.Skipped > 0 {
		fmt.Printf(", %d skipped", result.Skipped)
	}
	fmt.Println()

	for _, e := range result.Errors {
		fmt.Printf("  %s: %s\n", e.TaskID, e.Message)
	}
}
