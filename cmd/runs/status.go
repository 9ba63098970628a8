package runs

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates a new status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <runId>",
		Short: "Show the status of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := newClient().Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)

			t.AppendRow(table.Row{"Status", view.Status})
			t.AppendRow(table.Row{"Queue size", view.QueueSize})
			t.AppendRow(table.Row{"Visited URLs", view.VisitedCount})
			t.AppendRow(table.Row{"Domains tracked", view.DomainsTracked})

			if view.Config != nil {
				name := view.Config.Name
				if name == "" {
					name = view.Config.ID
				}

				t.AppendRow(table.Row{"Config", name})
			}

			t.Render()

			return nil
		},
	}
}
