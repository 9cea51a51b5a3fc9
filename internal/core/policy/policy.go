package policy

import (
	"appointment-checker/internal/core/check"
	"appointment-checker/internal/core/notify"
)

// Policy decides whether a result is worth a notification.
type Policy interface {
	Evaluate(res check.Result) *notify.Notification
}
