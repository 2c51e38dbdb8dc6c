// Package cli holds configuration and output helpers for wheelctl.
package cli

import (
	"fmt"

	"github.com/spf13/viper"
)

// EnvConfig is the resolved connection configuration for a wheelctl run.
type EnvConfig struct {
	BaseURL string
	APIKey  string
}

// GetEnvConfig resolves the base URL and API key from flags falling back to
// WHEELCTL_BASE_URL / WHEELCTL_API_KEY environment variables.
func GetEnvConfig(flagBaseURL, flagAPIKey string) (*EnvConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("WHEELCTL")
	v.AutomaticEnv()
	v.SetDefault("BASE_URL", "http://localhost:8080")

	cfg := &EnvConfig{
		BaseURL: v.GetString("BASE_URL"),
		APIKey:  v.GetString("API_KEY"),
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required (--base-url or WHEELCTL_BASE_URL)")
	}
	return cfg, nil
}
