package consumer

import (
	"fmt"
)

// Outcome tells the consumer what to do with a delivery.
type Outcome int

const (
	// OutcomeSuccess acknowledges the delivery.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry republishes the delivery after a backoff, until max-retry-count is reached.
	OutcomeRetry
	// OutcomeFatal dead-letters the delivery immediately.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is returned by every handler.
type Result struct {
	Outcome Outcome
	Err     error
}

// Success acknowledges the delivery.
var Success = Result{Outcome: OutcomeSuccess}

// Retry asks for a delayed redelivery.
func Retry(err error) Result {
	return Result{Outcome: OutcomeRetry, Err: err}
}

// Fatal sends the delivery to the dead-letter queue.
func Fatal(err error) Result {
	return Result{Outcome: OutcomeFatal, Err: err}
}

// PanicError is the error of a handler that panicked.
type PanicError struct {
	Panic any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Panic)
}
