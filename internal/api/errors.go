package api

import (
	"errors"
	"net/http"

	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/store"
)

// Wire error codes. Every failure response carries exactly one of these.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeConfigNotFound    = "CONFIG_NOT_FOUND"
	CodeConfigInUse       = "CONFIG_IN_USE"
	CodeRunNotFound       = "RUN_NOT_FOUND"
	CodeRunAlreadyRunning = "RUN_ALREADY_RUNNING"
	CodeRunNotRunning     = "RUN_NOT_RUNNING"
	CodeRunCompleted      = "RUN_COMPLETED"
	CodeInvalidRunState   = "INVALID_RUN_STATE"
	CodeQueueFull         = "QUEUE_FULL"
	CodeContentNotFound   = "CONTENT_NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpStatusByCode maps wire error codes to HTTP statuses.
var httpStatusByCode = map[string]int{
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeNotFound:          http.StatusNotFound,
	CodeConfigNotFound:    http.StatusNotFound,
	CodeRunNotFound:       http.StatusNotFound,
	CodeContentNotFound:   http.StatusNotFound,
	CodeConfigInUse:       http.StatusConflict,
	CodeRunAlreadyRunning: http.StatusConflict,
	CodeRunNotRunning:     http.StatusConflict,
	CodeRunCompleted:      http.StatusConflict,
	CodeInvalidRunState:   http.StatusConflict,
	CodeQueueFull:         http.StatusConflict,
	CodeInternalError:     http.StatusInternalServerError,
}

// statusForCode returns the HTTP status for a wire error code.
func statusForCode(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// codeForError maps a coordinator or store error to its wire code. Anything
// not recognized is an internal fault.
func codeForError(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, coordinator.ErrRunNotFound):
		return CodeRunNotFound
	case errors.Is(err, coordinator.ErrConfigNotFound):
		return CodeConfigNotFound
	case errors.Is(err, coordinator.ErrConfigInUse):
		return CodeConfigInUse
	case errors.Is(err, coordinator.ErrRunNotRunning):
		return CodeRunNotRunning
	case errors.Is(err, coordinator.ErrRunCompleted):
		return CodeRunCompleted
	case errors.Is(err, coordinator.ErrInvalidRunState):
		return CodeInvalidRunState
	case errors.Is(err, coordinator.ErrQueueFull):
		return CodeQueueFull
	case errors.Is(err, store.ErrPageNotFound):
		return CodeNotFound
	case errors.Is(err, blob.ErrObjectNotFound):
		return CodeContentNotFound
	default:
		return CodeInternalError
	}
}
