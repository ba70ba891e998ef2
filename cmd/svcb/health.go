package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/ui"
	"github.com/spf13/cobra"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server and its database are reachable",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()

		start := time.Now()
		status, err := apiClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health over %s: %w", transport, err)
		}
		elapsed := time.Since(start).Round(time.Millisecond)

		if jsonOutput {
			printJSON(map[string]string{"status": status, "transport": transport, "latency": elapsed.String()})
		} else {
			fmt.Printf("%s %s\n", status, ui.RenderMuted(fmt.Sprintf("(%s, %s)", transport, elapsed)))
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "give up after this long")
}
