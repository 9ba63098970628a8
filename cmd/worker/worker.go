// Package worker implements the fetch worker command. A worker process
// polls one run on the coordinator for URL batches, fetches the pages, and
// reports results back until the run drains.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/crawlplane/cmd/common"
	"github.com/jonesrussell/crawlplane/internal/worker"
)

const defaultRequestTimeout = 60 * time.Second

// options holds the worker command flags.
type options struct {
	runID       string
	coordinator string
	apiKey      string
	workerID    string
	batchSize   int
	timeout     time.Duration
}

// Command returns the worker command.
func Command() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a fetch worker for one run",
		Long: `Start a fetch worker: poll the coordinator for URL batches belonging to
one run, fetch each page under the run's politeness policy, and report
results back. The worker exits once the run stays drained.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.runID, "run", "", "run id to fetch for (required)")
	cmd.Flags().StringVar(&opts.coordinator, "coordinator", "http://localhost:8080", "coordinator base URL")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "coordinator API key (defaults to server.api_key)")
	cmd.Flags().StringVar(&opts.workerID, "worker-id", "", "worker id (generated when empty)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "URLs per poll (0 lets the coordinator decide)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultRequestTimeout, "coordinator request timeout")

	_ = cmd.MarkFlagRequired("run")

	return cmd
}

// run executes the worker loop until the run drains or a signal arrives.
func run(ctx context.Context, opts *options) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey = deps.Config.Server.APIKey
	}

	client := worker.NewClient(opts.coordinator, apiKey, opts.timeout)
	pool := worker.NewPool(client, deps.Logger, worker.PoolConfig{
		RunID:     opts.runID,
		WorkerID:  opts.workerID,
		BatchSize: opts.batchSize,
	})

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := pool.Run(signalCtx)

	stats := pool.Stats()
	deps.Logger.Info("Worker finished",
		"crawled", stats.Crawled,
		"failed", stats.Failed,
		"linksFound", stats.LinksFound,
		"bytesDownloaded", stats.BytesDownloaded,
	)

	// A signal is a clean exit, not a failure.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("worker stopped: %w", runErr)
	}

	return nil
}
