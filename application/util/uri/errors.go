package uri

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMalformedURL      = errors.New("malformed url")
	ErrEmptyHost         = errors.New("empty host")
	ErrInvalidPort       = errors.New("invalid port")
)

// ParseError echoes the input that [Parse] rejected.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing url %q: %s", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseError(input string, err error) *ParseError {
	return &ParseError{Input: input, Err: err}
}
