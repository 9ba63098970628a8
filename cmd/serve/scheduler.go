package serve

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/crawlplane/cmd/common"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// maintenanceTimeout bounds one sweep across all runs.
const maintenanceTimeout = 2 * time.Minute

// startMaintenance schedules the periodic stall sweep. Each tick walks every
// known run and re-queues dispatched URLs whose results never arrived.
// Returns nil when maintenance is disabled.
func startMaintenance(deps common.CommandDeps, coord *coordinator.Coordinator) *cron.Cron {
	if !deps.Config.Maintenance.Enabled {
		deps.Logger.Info("Maintenance sweep disabled")
		return nil
	}

	scheduler := cron.New()

	_, err := scheduler.AddFunc(deps.Config.Maintenance.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()

		if sweepErr := coord.Maintenance(ctx); sweepErr != nil {
			deps.Logger.Error("Maintenance sweep failed", "error", sweepErr)
		}
	})
	if err != nil {
		// The schedule was validated at config load; getting here means the
		// validator and the scheduler disagree on syntax.
		deps.Logger.Error("Failed to schedule maintenance sweep",
			"schedule", deps.Config.Maintenance.Schedule,
			"error", err,
		)

		return nil
	}

	scheduler.Start()
	deps.Logger.Info("Maintenance sweep scheduled", "schedule", deps.Config.Maintenance.Schedule)

	return scheduler
}
