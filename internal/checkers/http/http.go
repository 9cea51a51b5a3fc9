package httpcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Checker verifies that the booking site answers before a browser is started.
type Checker struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// Reach issues a GET and fails on transport errors or a 4xx/5xx status.
func (c *Checker) Reach(ctx context.Context) error {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("site answered %s", resp.Status)
	}
	return nil
}
