package check

import "context"

// Checker runs one probe. Failures are reported through Result.Error.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}
