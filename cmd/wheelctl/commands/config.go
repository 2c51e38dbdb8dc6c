package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verdantmarket/spinwheel/internal/cli"
	"github.com/verdantmarket/spinwheel/internal/client"
	"github.com/verdantmarket/spinwheel/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the wheel configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the wheel configuration",
	Long: `Get the current wheel configuration, including segment weights,
payloads, and the cooldown window.

Examples:
  wheelctl config get
  wheelctl config get --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		cfg, err := c.GetWheelConfig(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get wheel config: %w", err)
		}

		if !quiet {
			return cli.PrintWheelConfig(cfg, cli.OutputFormat(format))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Replace the wheel configuration from a YAML or JSON file",
	Long: `Replace the wheel configuration. The file must contain segments and
a cooldownHours value. Weights that do not sum to 100 are accepted with a
warning; the last segment becomes the overflow catch-all.

Examples:
  wheelctl config set wheel.yaml
  wheelctl config set wheel.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(args[0])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		result, err := c.PutWheelConfig(context.Background(), *cfg)
		if err != nil {
			return fmt.Errorf("failed to set wheel config: %w", err)
		}

		if !quiet {
			if result.Warning != "" {
				fmt.Fprintf(os.Stderr, "warning: %s\n", result.Warning)
			}
			fmt.Printf("ok etag=%s\n", result.ETag)
		}
		return nil
	},
}

func loadConfigFile(path string) (*store.WheelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg store.WheelConfig
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func newClient() (*client.Client, error) {
	envCfg, err := cli.GetEnvConfig(baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
