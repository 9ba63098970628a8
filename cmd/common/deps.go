// Package common provides shared initialization for command implementations.
package common

import (
	"github.com/jonesrussell/crawlplane/internal/config"
	"github.com/jonesrussell/crawlplane/internal/logger"
)

// CommandDeps holds the dependencies every command starts from.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}

	if d.Config == nil {
		return ErrConfigRequired
	}

	return nil
}
