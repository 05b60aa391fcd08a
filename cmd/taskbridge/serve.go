package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoshuaSeidel/taskbridge/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskBridge HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			fmt.Printf("Starting TaskBridge at http://localhost%s\n", addr)
			server := web.NewServer(a.engine, a.store)
			return server.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (overrides config)")

	return cmd
}
