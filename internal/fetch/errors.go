package fetch

import (
	"errors"
	"fmt"

	"zupgo/internal/models"
)

var (
	ErrEmptyContent = errors.New("empty content")
	ErrInvalidURL   = errors.New("invalid url")
	ErrTooLarge     = errors.New("response body exceeds size limit")
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Error attributes a failure to one source URL.
type Error struct {
	Kind models.ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reason is the human readable part recorded in the failure list.
func (e *Error) Reason() string {
	var se *StatusError
	if errors.As(e.Err, &se) {
		return se.Status
	}
	return e.Err.Error()
}
