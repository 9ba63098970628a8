package runs

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// NewStatsCommand creates a new stats command
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <runId>",
		Short: "Show crawl statistics and the per-domain breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := newClient().Stats(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			renderStatsSummary(view)

			if len(view.DomainBreakdown) > 0 {
				renderDomainBreakdown(view.DomainBreakdown)
			}

			return nil
		},
	}
}

func renderStatsSummary(view *coordinator.StatsView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Run", view.Run.ID})
	t.AppendRow(table.Row{"Status", view.Run.Status})
	t.AppendRow(table.Row{"Queued", view.Stats.URLsQueued})
	t.AppendRow(table.Row{"Fetched", view.Stats.URLsFetched})
	t.AppendRow(table.Row{"Failed", view.Stats.URLsFailed})
	t.AppendRow(table.Row{"Downloaded", formatBytes(view.Stats.BytesDownloaded)})
	t.AppendRow(table.Row{"Avg response", fmt.Sprintf("%.0f ms", view.Stats.AvgResponseTimeMs)})
	t.AppendRow(table.Row{"Pages/minute", fmt.Sprintf("%.1f", view.Stats.PagesPerMinute)})
	t.AppendRow(table.Row{"Progress", fmt.Sprintf("%d%%", view.Progress.Percentage)})

	if view.Progress.EstimatedSecondsRemaining > 0 {
		remaining := time.Duration(view.Progress.EstimatedSecondsRemaining) * time.Second
		t.AppendRow(table.Row{"ETA", remaining.String()})
	}

	t.Render()
}

func renderDomainBreakdown(entries []coordinator.DomainBreakdownEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Domain", "Requests", "OK", "Errors", "Downloaded", "Backoff"})

	for _, entry := range entries {
		backoff := ""
		if entry.BackoffUntil > 0 {
			backoff = time.UnixMilli(entry.BackoffUntil).Format(time.TimeOnly)
		}

		t.AppendRow(table.Row{
			entry.Domain,
			entry.RequestCount,
			entry.SuccessCount,
			entry.ErrorCount,
			formatBytes(entry.BytesDownloaded),
			backoff,
		})
	}

	t.Render()
}

// formatBytes renders a byte count in a human-readable unit.
func formatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
