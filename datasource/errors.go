package datasource

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every non-success response from the upstream API.
var ErrNotFound = errors.New("location not found")

// StatusError is returned when the upstream API answers with a non-2xx status
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.Status)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) true for any status error.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound
}

// IsStatus reports whether err carries an upstream status error with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
