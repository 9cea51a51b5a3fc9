// Package smtp2go delivers notifications through the SMTP2GO HTTP API, for
// hosts where outbound SMTP ports are blocked.
package smtp2go

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/notifiers/format"
)

const DefaultBaseURL = "https://api.smtp2go.com/v3"

type Notifier struct {
	NameValue  string
	APIKey     string
	Sender     string
	To         []string
	BaseURL    string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

type sendRequest struct {
	APIKey   string   `json:"api_key"`
	To       []string `json:"to"`
	Sender   string   `json:"sender"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body"`
	HTMLBody string   `json:"html_body"`
}

type sendResponse struct {
	RequestID string `json:"request_id"`
	Data      struct {
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		EmailID   string `json:"email_id"`
		Error     string `json:"error"`
	} `json:"data"`
}

func (n *Notifier) Name() string {
	return n.NameValue
}

func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	if n.APIKey == "" {
		return fmt.Errorf("smtp2go api key is required")
	}
	if len(n.To) == 0 {
		return fmt.Errorf("smtp2go recipient is required")
	}

	rendered, err := format.Render(note)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}
	payload, err := json.Marshal(sendRequest{
		APIKey:   n.APIKey,
		To:       n.To,
		Sender:   n.Sender,
		Subject:  rendered.Subject,
		TextBody: rendered.Plain,
		HTMLBody: rendered.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	attempts := n.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := n.RetryDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}

	for i := 1; i <= attempts; i++ {
		err = n.post(ctx, payload)
		if err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", attempts, err)
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	base := n.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := n.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/email/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Data.Failed > 0 || out.Data.Error != "" {
		return fmt.Errorf("smtp2go rejected message %s: %s", out.RequestID, out.Data.Error)
	}
	return nil
}
