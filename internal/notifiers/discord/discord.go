package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/notifiers/format"
)

const availableColor = 0x2E7D32

type Notifier struct {
	NameValue string
	URL       string
	Username  string
	Timeout   time.Duration
}

type payload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

func (n *Notifier) Name() string {
	return n.NameValue
}

func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	body, err := json.Marshal(payload{
		Embeds: []embed{
			{
				Title: note.Subject,
				URL:   note.Link,
				// Discord caps embed descriptions at 4096 characters.
				Description: format.Excerpt(note.Body, 4000),
				Color:       availableColor,
				Timestamp:   note.Timestamp.Format(time.RFC3339),
			},
		},
		Username: n.Username,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: n.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
