package notify

import "time"

// Notification is rendered from a positive check result and dropped after delivery.
type Notification struct {
	Subject   string
	Body      string
	Link      string
	Timestamp time.Time
}
