package statrelay

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrNotImplemented    = errors.New("not implemented")
)

func errMalformed(cause error) error {
	return fmt.Errorf("%w: %v", ErrMalformedSnapshot, cause)
}
