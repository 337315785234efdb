// Package gitlab is a minimal GitLab REST client, just large enough
// to post a review back to a merge request.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadvik/mrev/internal/config"
)

const maxErrorBody = 2 * 1024

// Client talks to one GitLab instance.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client from config. Returns nil when no token
// is configured; callers treat a nil client as "posting disabled".
func NewClient(cfg *config.Config) *Client {
	if cfg.GitLab.Token == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.GitLab.BaseURL, "/"),
		token:   cfg.GitLab.Token,
		client:  &http.Client{Timeout: cfg.GitLab.Timeout},
	}
}

// Enabled reports whether the client can post.
func (c *Client) Enabled() bool {
	return c != nil
}

// PostMergeRequestNote posts body as a comment on the merge request.
func (c *Client) PostMergeRequestNote(ctx context.Context, projectID, mrIID int, body string) error {
	url := fmt.Sprintf("%s/api/v4/projects/%d/merge_requests/%d/notes", c.baseURL, projectID, mrIID)

	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post note: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort for the message
		return fmt.Errorf("post note: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
