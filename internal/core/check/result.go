package check

import "time"

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusUnavailable Status = "UNAVAILABLE"
	StatusError       Status = "ERROR"
)

type Result struct {
	Name      string
	Available bool
	Message   string
	Error     string
	Units     int
	RunID     string
	CheckedAt time.Time
}

func (r Result) Status() Status {
	switch {
	case r.Error != "":
		return StatusError
	case r.Available:
		return StatusAvailable
	default:
		return StatusUnavailable
	}
}
