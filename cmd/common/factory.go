package common

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonesrussell/crawlplane/internal/config"
	"github.com/jonesrussell/crawlplane/internal/logger"
)

// NewCommandDeps creates CommandDeps by loading config from the global Viper
// instance and building the logger from it. This consolidates the common
// initialization code the subcommands would otherwise repeat.
func NewCommandDeps() (CommandDeps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}

// newLogger builds the logger from the loaded configuration. The app debug
// flag forces debug level no matter what the logger section says.
func newLogger(cfg *config.Config) (logger.Interface, error) {
	level := strings.ToLower(cfg.Logger.Level)
	if level == "" {
		level = "info"
	}

	if cfg.App.Debug {
		level = "debug"
	}

	return logger.New(&logger.Config{
		Level:       logger.Level(level),
		Development: cfg.Logger.Development,
		Encoding:    cfg.Logger.Encoding,
	})
}
