package command

import (
	"errors"

	"github.com/cezmen/chronos/internal/radio"
)

// ErrNoMatch is returned for frames that match no grammar.
var ErrNoMatch = errors.New("no matching command grammar")

// ValidationError is a well-formed command with out-of-range parameters.
// Message is the diagnostic line sent to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns radio.ErrInvalidRange.
func (e *ValidationError) Unwrap() error {
	return radio.ErrInvalidRange
}
