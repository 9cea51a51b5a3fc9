package policy

import (
	"fmt"
	"strings"
	"time"

	"appointment-checker/internal/core/check"
	"appointment-checker/internal/core/notify"
)

// SimplePolicy notifies on every available result. It keeps no state between cycles,
// so a slot that stays open is reported again on the next check.
type SimplePolicy struct {
	Subject  string
	Location string
	Link     string
}

func NewSimplePolicy(subject, location, link string) *SimplePolicy {
	return &SimplePolicy{Subject: subject, Location: location, Link: link}
}

func (p *SimplePolicy) Evaluate(res check.Result) *notify.Notification {
	if !res.Available || res.Error != "" {
		return nil
	}

	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Appointment Available - %s!", p.Location)
	}
	body := res.Message
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf("An appointment slot is open at %s.", p.Location)
	}
	at := res.CheckedAt
	if at.IsZero() {
		at = time.Now()
	}
	return &notify.Notification{
		Subject:   subject,
		Body:      body,
		Link:      p.Link,
		Timestamp: at,
	}
}
