package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"appointment-checker/internal/core/notify"
)

type Notifier struct {
	NameValue string
	URL       string
	Timeout   time.Duration
}

type payload struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Link      string `json:"link,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) Name() string {
	return n.NameValue
}

func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	body, err := json.Marshal(payload{
		Subject:   note.Subject,
		Body:      note.Body,
		Link:      note.Link,
		Timestamp: note.Timestamp.Format(time.RFC3339),
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
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
