// Package reporter posts plans to the control plane.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client posts plan snapshots and state file records to the control plane.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c == nil || c.BaseURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-Sequencer-Token", c.Token)
	}
	cli := c.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("post %s status %s", path, resp.Status)
	}
	return nil
}

func (c *Client) PostPlan(ctx context.Context, plan any) error {
	return c.post(ctx, "/api/plan", plan)
}

func (c *Client) PostStateFiles(ctx context.Context, files any) error {
	return c.post(ctx, "/api/statefiles", files)
}
