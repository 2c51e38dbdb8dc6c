// Package client is an HTTP client for the spinwheel API, used by wheelctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verdantmarket/spinwheel/internal/store"
)

// Client is an HTTP client for the spinwheel API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetWheelConfig retrieves the full wheel configuration (admin).
func (c *Client) GetWheelConfig(ctx context.Context) (*store.WheelConfig, error) {
	var cfg store.WheelConfig
	if err := c.do(ctx, http.MethodGet, "/v1/wheel", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutWheelResult is the server's response to a config write.
type PutWheelResult struct {
	OK      bool   `json:"ok"`
	ETag    string `json:"etag"`
	Warning string `json:"warning,omitempty"`
}

// PutWheelConfig replaces the wheel configuration (admin).
func (c *Client) PutWheelConfig(ctx context.Context, cfg store.WheelConfig) (*PutWheelResult, error) {
	var result PutWheelResult
	if err := c.do(ctx, http.MethodPut, "/v1/wheel", cfg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetReward retrieves a reward by id.
func (c *Client) GetReward(ctx context.Context, id string) (*store.Reward, error) {
	var r store.Reward
	if err := c.do(ctx, http.MethodGet, "/v1/rewards/"+id, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
