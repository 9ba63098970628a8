package runs

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates a new seed command
func NewSeedCommand() *cobra.Command {
	var (
		depth    int
		priority int
	)

	cmd := &cobra.Command{
		Use:   "seed <runId> <url> [url...]",
		Short: "Add seed URLs to a run",
		Long: `Add seed URLs to a run's frontier. URLs that are malformed, out of
scope, or already visited are rejected; the command reports both counts.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var depthPtr, priorityPtr *int
			if cmd.Flags().Changed("depth") {
				depthPtr = &depth
			}

			if cmd.Flags().Changed("priority") {
				priorityPtr = &priority
			}

			result, err := newClient().Seed(cmd.Context(), args[0], args[1:], depthPtr, priorityPtr)
			if err != nil {
				return fmt.Errorf("failed to seed run: %w", err)
			}

			fmt.Printf("Admitted %d, rejected %d, queue size %d\n",
				result.Admitted, result.Rejected, result.QueueSize)

			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "depth to queue the URLs at")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority for the URLs (higher first)")

	return cmd
}
