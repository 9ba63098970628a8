// Package runs implements the command-line interface for inspecting and
// driving crawl runs against a running coordinator.
package runs

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/crawlplane/internal/apiclient"
)

// flags shared by every runs subcommand.
var (
	coordinatorURL string
	apiKey         string
)

// NewRunsCommand creates the runs command with all subcommands.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and drive crawl runs",
		Long:  `Inspect and drive crawl runs on a running coordinator over its HTTP API.`,
	}

	cmd.PersistentFlags().StringVar(
		&coordinatorURL,
		"coordinator",
		apiclient.DefaultBaseURL,
		"coordinator base URL",
	)
	cmd.PersistentFlags().StringVar(
		&apiKey,
		"api-key",
		"",
		"coordinator API key (defaults to server.api_key)",
	)

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewStatsCommand())
	cmd.AddCommand(NewErrorsCommand())
	cmd.AddCommand(NewSeedCommand())
	cmd.AddCommand(NewConfigureCommand())
	cmd.AddCommand(NewSweepCommand())
	cmd.AddCommand(NewDeleteCommand())

	for _, action := range lifecycleActions {
		cmd.AddCommand(newLifecycleCommand(action))
	}

	return cmd
}

// newClient builds the API client from the shared flags, falling back to the
// configured server API key so a local operator needs no extra flags.
func newClient() *apiclient.Client {
	key := apiKey
	if key == "" {
		key = viper.GetString("server.api_key")
	}

	return apiclient.NewClient(
		apiclient.WithBaseURL(coordinatorURL),
		apiclient.WithAPIKey(key),
	)
}
