// Package failure classifies job errors into the kinds reported to the queue.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the failure category reported for a job
type Kind string

const (
	// Business means the job ran but violated a domain rule
	Business Kind = "BUSINESS"
	// Application covers everything else
	Application Kind = "APPLICATION"
)

// BusinessError is returned when a domain policy rejects a job's outcome
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// Businessf builds a BusinessError with a formatted message
func Businessf(format string, args ...any) error {
	return &BusinessError{Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the failure kind for err
func KindOf(err error) Kind {
	var be *BusinessError
	if errors.As(err, &be) {
		return Business
	}
	return Application
}
