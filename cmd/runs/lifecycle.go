package runs

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/crawlplane/internal/apiclient"
)

// lifecycleActions lists the transitions exposed as subcommands.
var lifecycleActions = []string{
	apiclient.ActionStart,
	apiclient.ActionPause,
	apiclient.ActionResume,
	apiclient.ActionCancel,
	apiclient.ActionReset,
}

var lifecycleShorts = map[string]string{
	apiclient.ActionStart:  "Start a pending or reset run",
	apiclient.ActionPause:  "Pause a running run",
	apiclient.ActionResume: "Resume a paused run",
	apiclient.ActionCancel: "Cancel a run",
	apiclient.ActionReset:  "Reset a run back to pending, clearing its state",
}

// newLifecycleCommand creates one lifecycle transition command.
func newLifecycleCommand(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <runId>",
		Short: lifecycleShorts[action],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newClient().Transition(cmd.Context(), args[0], action)
			if err != nil {
				return fmt.Errorf("failed to %s run: %w", action, err)
			}

			fmt.Printf("Run %s is now %s\n", args[0], status)

			return nil
		},
	}
}

// NewDeleteCommand creates the delete command. Only finished runs can be
// deleted; active ones have to be cancelled first.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <runId>",
		Short: "Delete a finished run and its page metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			fmt.Printf("Run %s deleted\n", args[0])

			return nil
		},
	}
}

// NewSweepCommand creates the sweep command, which triggers one maintenance
// pass on a run without waiting for the server's schedule.
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <runId>",
		Short: "Re-queue stalled URLs of one run now",
		RunE: func(cmd *cobra.Command, args []string) error {
			queueSize, err := newClient().OnCron(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to sweep run: %w", err)
			}

			fmt.Printf("Queue size after sweep: %d\n", queueSize)

			return nil
		},
		Args: cobra.ExactArgs(1),
	}
}
