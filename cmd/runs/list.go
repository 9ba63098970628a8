// This file contains the implementation of the list command that displays
// all known runs in a formatted table.
package runs

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/crawlplane/internal/apiclient"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// TableRenderer handles the display of run data in a table format
type TableRenderer struct{}

// NewTableRenderer creates a new TableRenderer instance
func NewTableRenderer() *TableRenderer {
	return &TableRenderer{}
}

// RenderRuns formats and displays the run listing in a table format
func (r *TableRenderer) RenderRuns(items []coordinator.RunListItem) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Run ID", "Status", "Queue", "Queued", "Fetched", "Failed"})

	for _, item := range items {
		t.AppendRow(table.Row{
			item.ID,
			item.Status,
			item.QueueSize,
			item.Stats.URLsQueued,
			item.Stats.URLsFetched,
			item.Stats.URLsFailed,
		})
	}

	t.Render()
}

// Lister handles listing runs
type Lister struct {
	client   *apiclient.Client
	renderer *TableRenderer
}

// NewLister creates a new Lister instance
func NewLister(client *apiclient.Client, renderer *TableRenderer) *Lister {
	return &Lister{
		client:   client,
		renderer: renderer,
	}
}

// Start begins the list operation
func (l *Lister) Start(ctx context.Context) error {
	items, err := l.client.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	l.renderer.RenderRuns(items)

	return nil
}

// NewListCommand creates a new list command
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known runs",
		Long:  `List every run the coordinator has a snapshot for.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lister := NewLister(newClient(), NewTableRenderer())

			return lister.Start(cmd.Context())
		},
	}
}
