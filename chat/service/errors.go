package service

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable signals that the persistence backend could not be
// reached. Callers must not broadcast a message whose append returned it.
var ErrStoreUnavailable = errors.New("message store unavailable")

// ValidationError reports a malformed send request. It is dropped at the
// coordinator and never surfaced to other clients.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
