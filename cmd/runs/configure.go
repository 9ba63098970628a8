package runs

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigureCommand creates a new configure command
func NewConfigureCommand() *cobra.Command {
	var (
		file string
		name string
	)

	cmd := &cobra.Command{
		Use:   "configure <runId>",
		Short: "Apply a crawl config file to a run",
		Long: `Apply crawl configuration to a run from a YAML or JSON file. Only the
sections present in the file change; everything else keeps its current
value. Configuration is rejected while the run is running or completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := readConfigFile(file)
			if err != nil {
				return err
			}

			configID, err := newClient().Configure(cmd.Context(), args[0], updates, name)
			if err != nil {
				return fmt.Errorf("failed to configure run: %w", err)
			}

			fmt.Printf("Applied config %s\n", configID)

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "config file to apply (required)")
	cmd.Flags().StringVar(&name, "name", "", "label for the applied config")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readConfigFile loads a YAML or JSON crawl config into section maps. The
// parser must preserve key case: section names like rateLimiting are matched
// exactly by the coordinator.
func readConfigFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var updates map[string]any
	if unmarshalErr := yaml.Unmarshal(raw, &updates); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	if len(updates) == 0 {
		return nil, fmt.Errorf("config file %s has no settings", path)
	}

	return updates, nil
}
