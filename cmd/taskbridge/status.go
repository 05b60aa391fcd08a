package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider connectivity and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println("Providers:")
			for _, st := range a.engine.ProviderStatuses(context.Background()) {
				switch {
				case st.Connected:
					fmt.Printf("  %-14s connected (%s)\n", st.Provider, st.Identity)
				case st.NotConfigured:
					fmt.Printf("  %-14s not configured\n", st.Provider)
				default:
					fmt.Printf("  %-14s error: %s\n", st.Provider, st.Error)
				}
			}

			counts, err := a.store.StatusCounts()
			if err != nil {
				return err
			}

			fmt.Println("Tasks:")
			for _, bucket := range []string{"pending", "awaiting_confirmation", "completed", "rejected"} {
				if n, ok := counts[bucket]; ok {
					fmt.Printf("  %-22s %d\n", bucket, n)
				}
			}
			return nil
		},
	}
}
