package notify

import (
	"context"
	"errors"

	"appointment-checker/internal/utils/logger"
)

type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Deliver sends n through every notifier and reports whether all of them succeeded.
// Send errors are logged and never propagated.
func Deliver(ctx context.Context, log *logger.Logger, notifiers []Notifier, n Notification) bool {
	if len(notifiers) == 0 {
		log.Warnf("no notifiers configured, dropping %q", n.Subject)
		return false
	}
	ok := true
	for _, nt := range notifiers {
		if ctx.Err() != nil {
			return false
		}
		if err := nt.Send(ctx, n); err != nil {
			ok = false
			if errors.Is(err, context.Canceled) {
				log.Warnf("notify %s: cancelled", nt.Name())
				return false
			}
			log.Errorf("notify %s: failed to send: %v", nt.Name(), err)
			continue
		}
		log.Infof("notify %s: sent %q", nt.Name(), n.Subject)
	}
	return ok
}
