package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one timeout sweep and print the JSON summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := bootstrap()
			defer a.close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx, stop := context.WithTimeout(ctx, timeout)
			defer stop()

			summary, err := a.sweeper.RunWithSettings(ctx, a.settings)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(summary); encErr != nil && err == nil {
					return encErr
				}
			}
			if err != nil {
				return fmt.Errorf("timeout sweep: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "abort the sweep after this long")
	return cmd
}
