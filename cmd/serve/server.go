package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/crawlplane/cmd/common"
	"github.com/jonesrussell/crawlplane/internal/api"
	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
)

const (
	signalChannelBufferSize = 1
	errorChannelBufferSize  = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// startHTTPServer builds the API server and starts serving in a goroutine.
// Returns the server and an error channel for server errors.
func startHTTPServer(
	deps common.CommandDeps,
	stores *common.Stores,
	blobs blob.Store,
	coord *coordinator.Coordinator,
) (*http.Server, chan error) {
	server := api.NewHTTPServer(
		api.ServerOptions{
			Addr:         deps.Config.Server.Address,
			ReadTimeout:  deps.Config.Server.ReadTimeout,
			WriteTimeout: deps.Config.Server.WriteTimeout,
			IdleTimeout:  deps.Config.Server.IdleTimeout,
		},
		api.Deps{
			Coordinator: coord,
			Pages:       stores.Pages,
			Configs:     stores.Configs,
			Blobs:       blobs,
			Logger:      deps.Logger,
			APIKey:      deps.Config.Server.APIKey,
		},
	)

	deps.Logger.Info("Starting HTTP server", "addr", deps.Config.Server.Address)

	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	return server, errChan
}

// runServerUntilInterrupt blocks until a server error or a shutdown signal.
func runServerUntilInterrupt(
	log logger.Interface,
	server *http.Server,
	maintenance *cron.Cron,
	errChan chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		log.Error("Server error", "error", serverErr)
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return shutdownServer(log, server, maintenance, sig)
	}
}

// shutdownServer performs graceful shutdown of the server and the
// maintenance scheduler.
func shutdownServer(
	log logger.Interface,
	server *http.Server,
	maintenance *cron.Cron,
	sig os.Signal,
) error {
	log.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if maintenance != nil {
		log.Info("Stopping maintenance scheduler")

		// Stop returns a context that is done once in-flight sweeps finish.
		select {
		case <-maintenance.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("Maintenance sweep did not finish before shutdown deadline")
		}
	}

	log.Info("Stopping HTTP server")

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to stop server", "error", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	log.Info("Server stopped successfully")

	return nil
}
