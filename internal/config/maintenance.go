package config

import (
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultMaintenanceSchedule runs the stall sweep every minute.
const DefaultMaintenanceSchedule = "@every 1m"

// MaintenanceConfig controls the periodic sweep that re-queues dispatched
// URLs whose workers never reported back.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression, e.g. "@every 1m" or "*/5 * * * *".
	Schedule string `yaml:"schedule"`
}

// Validate checks the maintenance section, including that the schedule
// parses as a cron expression.
func (c *MaintenanceConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Schedule == "" {
		return errors.New("maintenance.schedule must not be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, parseErr := parser.Parse(c.Schedule); parseErr != nil {
		return errors.New("maintenance.schedule is not a valid cron expression")
	}

	return nil
}

func loadMaintenanceConfig(v *viper.Viper) MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:  v.GetBool("maintenance.enabled"),
		Schedule: v.GetString("maintenance.schedule"),
	}
}

func setMaintenanceDefaults(v *viper.Viper) {
	v.SetDefault("maintenance", map[string]any{
		"enabled":  true,
		"schedule": DefaultMaintenanceSchedule,
	})
}
