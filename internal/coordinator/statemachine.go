package coordinator

import "fmt"

// RunStatus represents a run's lifecycle state.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// validTransitions is the full lifecycle graph. reset is orthogonal: it
// returns a run to pending from any state and is not listed here.
var validTransitions = map[RunStatus][]RunStatus{
	StatusPending: {
		StatusRunning,   // start
		StatusCancelled, // manual cancellation before start
	},
	StatusRunning: {
		StatusPaused,    // manual pause
		StatusCompleted, // queue drained, or maxPagesPerRun reached
		StatusCancelled, // manual cancellation
		StatusFailed,    // reserved for operator-forced failure
	},
	StatusPaused: {
		StatusRunning,   // resume
		StatusCancelled, // manual cancellation while paused
	},
	// Terminal states are absorbing until reset.
	StatusCompleted: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// ValidateTransition checks whether a lifecycle transition is allowed.
func ValidateTransition(from, to RunStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}

	for _, status := range allowed {
		if status == to {
			return nil
		}
	}

	return fmt.Errorf("invalid status transition from %s to %s", from, to)
}

// IsTerminal checks whether a status is absorbing (only reset leaves it).
func IsTerminal(status RunStatus) bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusFailed
}

// CanDispatch checks whether a run may hand out work in its current status.
func CanDispatch(status RunStatus) bool {
	return status == StatusRunning
}
