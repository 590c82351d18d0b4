package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Normalized radio errors. Drivers may return anything; Station maps their
// errors onto these before reporting.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrNotFound     = errors.New("NOT_FOUND")
	ErrFailure      = errors.New("FAILURE")
	ErrTimeout      = errors.New("TIMEOUT")
	ErrUnsupported  = errors.New("UNSUPPORTED")
	ErrInternal     = errors.New("INTERNAL")
)

// DriverError keeps the backend error next to its normalized code.
type DriverError struct {
	Code     error
	Driver   string
	Original error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (%s: %v)", e.Code, e.Driver, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// driverTokens maps fragments of backend error text to codes, checked in order.
var driverTokens = []struct {
	code   error
	tokens []string
}{
	{ErrUnsupported, []string{"NOT SUPPORTED", "OPERATION NOT SUPPORTED", "UNSUPPORTED"}},
	{ErrTimeout, []string{"TIMEOUT", "TIMED OUT"}},
	{ErrNotFound, []string{"NO SUCH DEVICE", "NOT FOUND"}},
	{ErrFailure, []string{"FAILURE", "FAILED", "ABORTED", "BUSY"}},
}

// NormalizeDriverError maps err from the named driver to a normalized code.
// Errors that already carry a code are returned unchanged.
func NormalizeDriverError(driver string, err error) error {
	if err == nil {
		return nil
	}
	for _, code := range []error{ErrInvalidRange, ErrNotFound, ErrFailure, ErrTimeout, ErrUnsupported, ErrInternal} {
		if errors.Is(err, code) {
			return err
		}
	}

	var code error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrTimeout
	case errors.Is(err, context.Canceled):
		code = ErrFailure
	default:
		code = mapDriverErrorToCode(err.Error())
	}
	return &DriverError{Code: code, Driver: driver, Original: err}
}

func mapDriverErrorToCode(msg string) error {
	upper := strings.ToUpper(msg)
	for _, entry := range driverTokens {
		for _, token := range entry.tokens {
			if strings.Contains(upper, token) {
				return entry.code
			}
		}
	}
	return ErrInternal
}

// Code returns the outcome label for err, "SUCCESS" for nil.
func Code(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	for _, code := range []error{ErrInvalidRange, ErrNotFound, ErrFailure, ErrTimeout, ErrUnsupported, ErrInternal} {
		if errors.Is(err, code) {
			return code.Error()
		}
	}
	return ErrInternal.Error()
}
