package coordinator

import "errors"

// Sentinel errors for run lifecycle and admission failures. The API layer
// maps these to wire error codes and HTTP statuses.
var (
	// ErrInvalidRequest wraps validation failures: malformed report URLs,
	// unknown config sections, out-of-range config values.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRunNotFound is returned by read operations on a run that has never
	// been touched. Mutating operations create runs implicitly instead.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotRunning is returned when pause is requested outside running.
	ErrRunNotRunning = errors.New("run is not running")

	// ErrRunCompleted is returned when start or cancel is requested on a run
	// in a terminal state.
	ErrRunCompleted = errors.New("run already finished")

	// ErrInvalidRunState is returned for transitions that are neither valid
	// nor covered by a more specific error, such as resume outside paused.
	ErrInvalidRunState = errors.New("invalid run state for transition")

	// ErrQueueFull is returned when a seed call arrives with the frontier
	// already at maxQueueSize.
	ErrQueueFull = errors.New("frontier queue is full")

	// ErrConfigNotFound is returned when configuring a run by a config id
	// that does not exist in the config registry.
	ErrConfigNotFound = errors.New("config not found")

	// ErrConfigInUse is returned when deleting a named config that a
	// non-terminal run still references.
	ErrConfigInUse = errors.New("config is referenced by an active run")
)

// Frontier admission rejection reasons, in the order admission checks run.
const (
	RejectInvalidURL        = "invalid_url"
	RejectUnsupportedScheme = "unsupported_scheme"
	RejectDomainNotAllowed  = "domain_not_allowed"
	RejectExcludedByPattern = "excluded_by_pattern"
	RejectMaxDepthExceeded  = "max_depth_exceeded"
	RejectAlreadyVisited    = "already_visited"
	RejectAlreadyQueued     = "already_queued"
	RejectQueueFull         = "queue_full"
)
