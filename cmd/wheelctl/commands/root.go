package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wheelctl",
	Short: "CLI tool for managing the spin-to-win wheel",
	Long: `Wheelctl manages the spin-to-win promotional wheel service.

It provides commands for reading and replacing the wheel configuration
and for inspecting rewards.

Examples:
  wheelctl config get
  wheelctl config set wheel.yaml
  wheelctl reward get 2f0b8f9a-...`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the spinwheel API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for authentication")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
