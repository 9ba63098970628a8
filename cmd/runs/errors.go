package runs

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewErrorsCommand creates a new errors command
func NewErrorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "errors <runId>",
		Short: "Show the most recent fetch failures of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recent, err := newClient().Errors(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get errors: %w", err)
			}

			if len(recent) == 0 {
				fmt.Println("No recent errors")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)

			t.AppendHeader(table.Row{"Time", "Domain", "Status", "URL", "Message"})

			for _, entry := range recent {
				status := ""
				if entry.StatusCode != 0 {
					status = fmt.Sprintf("%d", entry.StatusCode)
				}

				t.AppendRow(table.Row{
					time.UnixMilli(entry.Timestamp).Format(time.TimeOnly),
					entry.Domain,
					status,
					entry.URL,
					entry.Message,
				})
			}

			t.Render()

			return nil
		},
	}
}
