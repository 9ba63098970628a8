// Package cmd implements the command-line interface for crawlplane.
// It provides the root command and the serve, worker, and runs subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/crawlplane/cmd/runs"
	"github.com/jonesrussell/crawlplane/cmd/serve"
	cmdworker "github.com/jonesrussell/crawlplane/cmd/worker"
	"github.com/jonesrussell/crawlplane/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands
	Debug bool

	// rootCmd represents the root command for the crawlplane CLI.
	rootCmd = &cobra.Command{
		Use:   "crawlplane",
		Short: "Distributed crawl coordinator",
		Long: `crawlplane coordinates distributed web crawls: it owns the URL
frontier, visited set, per-domain politeness, and run lifecycle, and hands
URL batches to stateless fetch workers over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before commands build their logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("crawlplane version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(cmdworker.Command())
	rootCmd.AddCommand(runs.NewRunsCommand())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Environment variables take precedence over defaults, so enable them
	// before registering defaults.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config.SetDefaults(viper.GetViper())

	// Config file is optional: defaults plus environment variables are a
	// complete configuration.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindCommandLineFlags(); err != nil {
		return err
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	setupDevelopmentLogging()

	return nil
}

// bindCommandLineFlags binds command-line flags to Viper.
func bindCommandLineFlags() error {
	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	return nil
}

// bindEnvVars maps well-known environment variables to config keys beyond
// what the automatic replacer already covers.
func bindEnvVars() error {
	binds := map[string][]string{
		"app.environment":           {"APP_ENV"},
		"app.debug":                 {"APP_DEBUG"},
		"logger.level":              {"LOG_LEVEL"},
		"logger.encoding":           {"LOG_FORMAT"},
		"server.address":            {"CRAWLPLANE_SERVER_ADDRESS"},
		"server.api_key":            {"CRAWLPLANE_API_KEY"},
		"storage.driver":            {"CRAWLPLANE_STORAGE_DRIVER"},
		"storage.postgres.host":     {"POSTGRES_HOST"},
		"storage.postgres.port":     {"POSTGRES_PORT"},
		"storage.postgres.user":     {"POSTGRES_USER"},
		"storage.postgres.password": {"POSTGRES_PASSWORD"},
		"storage.postgres.dbname":   {"POSTGRES_DB"},
		"storage.redis.addr":        {"REDIS_ADDR"},
		"storage.redis.password":    {"REDIS_PASSWORD"},
		"minio.enabled":             {"MINIO_ENABLED"},
		"minio.endpoint":            {"MINIO_ENDPOINT"},
		"minio.access_key":          {"MINIO_ACCESS_KEY", "MINIO_ROOT_USER"},
		"minio.secret_key":          {"MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD"},
		"minio.bucket":              {"MINIO_BUCKET"},
	}

	for key, envs := range binds {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return nil
}

// setupDevelopmentLogging configures development logging based on the
// environment and the debug flag.
func setupDevelopmentLogging() {
	debugFlag := Debug || viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	// Only raise the level when explicitly requested; a development
	// environment alone changes formatting, not verbosity.
	if debugFlag {
		viper.Set("logger.level", "debug")
	}

	if isDev {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}

	Debug = debugFlag
}
