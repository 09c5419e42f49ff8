package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vidpipe/internal/api"
	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
)

const cliTokenTTL = 5 * time.Minute

// daemonClient talks to the daemon's HTTP API.
type daemonClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newDaemonClient(cfg *config.Config, baseURL string) (*daemonClient, error) {
	token := cfg.API.Token
	if token == "" && cfg.API.JWTSecret != "" {
		issued, err := daemon.IssueToken(cfg.API.JWTSecret, "vidpipe-cli", cliTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("issue api token: %w", err)
		}
		token = issued
	}
	return &daemonClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *daemonClient) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *daemonClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
