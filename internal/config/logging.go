package config

import "github.com/spf13/viper"

// LoggingConfig holds the logger settings shared by all commands.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error, fatal.
	Level string `yaml:"level" env:"LOG_LEVEL"`
	// Development enables colored console output.
	Development bool `yaml:"development"`
	// Encoding is "console" or "json".
	Encoding string `yaml:"encoding" env:"LOG_FORMAT"`
}

func loadLoggingConfig(v *viper.Viper) LoggingConfig {
	return LoggingConfig{
		Level:       v.GetString("logger.level"),
		Development: v.GetBool("logger.development"),
		Encoding:    v.GetString("logger.encoding"),
	}
}

func setLoggingDefaults(v *viper.Viper) {
	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})
}
