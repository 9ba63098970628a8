// Package serve implements the HTTP server command for the crawl
// coordinator.
package serve

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/crawlplane/cmd/common"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the crawl coordinator HTTP server",
		Long: `Start the coordinator: the HTTP API workers poll for URL batches and
operators drive runs through, plus the periodic maintenance sweep that
re-queues work from stalled runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Start(cmd.Context())
		},
	}
}

// Start starts the coordinator server and runs until interrupted.
// It handles graceful shutdown on SIGINT or SIGTERM signals.
func Start(ctx context.Context) error {
	// Phase 1: Load config and logger
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	// Phase 2: Connect storage
	stores, closeStores, err := common.BuildStores(ctx, deps.Config, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer closeStores()

	blobs, err := common.BuildBlobStore(ctx, deps.Config, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to create content store: %w", err)
	}

	// Phase 3: Create the coordinator
	coord, err := coordinator.New(coordinator.Config{
		Store:  stores.State,
		Pages:  stores.Pages,
		Logger: deps.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	// Phase 4: Start the maintenance sweep
	maintenance := startMaintenance(deps, coord)

	// Phase 5: Start the HTTP server
	server, errChan := startHTTPServer(deps, stores, blobs, coord)

	// Phase 6: Run until interrupted
	return runServerUntilInterrupt(deps.Logger, server, maintenance, errChan)
}
