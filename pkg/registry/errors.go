package registry

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/matzehuels/monopub/pkg/errors"
)

// Error is a failed registry request. StatusCode is zero when the request
// never produced a response.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("HTTP %d: failed fetching %s", e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed fetching %s: %v", e.URL, e.Err)
	}
	return "failed fetching " + e.URL
}

// Unwrap exposes the error as a REGISTRY_ERROR so callers can match it
// with errors.Is(err, errors.ErrCodeRegistry).
func (e *Error) Unwrap() error {
	return errors.Wrap(errors.ErrCodeRegistry, e.Err, "%s", e.URL)
}

// Transient reports whether the failure says nothing about the package
// itself: the request never got a response, or the registry answered 5xx.
func (e *Error) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// IsTransient reports whether err is a transient registry failure. Errors
// that are not registry errors, such as an invalid package name, are not.
func IsTransient(err error) bool {
	var rerr *Error
	return stderrors.As(err, &rerr) && rerr.Transient()
}
