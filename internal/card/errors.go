package card

import (
	"errors"
	"fmt"
)

// ErrNotFound reports zero matches. It is an expected outcome, not a fault;
// callers render it as an explicit empty-result message.
var ErrNotFound = errors.New("card not found")

// FetchError reports that the remote provider was unreachable or returned a
// non-success response. Cache state is guaranteed untouched when one of
// these surfaces.
type FetchError struct {
	Op     string // provider operation, e.g. "search"
	Status int    // HTTP status, 0 for transport failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: provider returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a provider fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
