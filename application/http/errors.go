package http

import (
	"fmt"

	"github.com/pkg/errors"
)

// SyntaxError is a message that does not follow the HTTP/1.1 grammar.
type SyntaxError struct{ msg string }

func (e *SyntaxError) Error() string { return e.msg }

func syntaxError(msg string) *SyntaxError { return &SyntaxError{msg: msg} }

var (
	errLineTooLong       = syntaxError("line length exceeeds limit")
	ErrMissingCRBeforeLF = syntaxError("missing CR before LF")
	ErrIncompleteMessage = syntaxError("message ended before its head was complete")

	ErrFieldLineTooLong   = syntaxError("field line length exceeds limit")
	ErrMalformedFieldLine = syntaxError("field line is malformed")

	ErrRequestLineTooLong   = syntaxError("request line length exceeds limit")
	ErrMalformedRequestLine = syntaxError("request line is malformed")

	ErrStatusLineTooLong   = syntaxError("status line length exceeds limit")
	ErrMalformedStatusLine = syntaxError("status line is malformed")

	ErrInvalidContentLength        = syntaxError("content-length is invalid")
	ErrUnsupportedTransferEncoding = syntaxError("transfer-encoding is not supported")
	ErrTruncatedBody               = syntaxError("body is shorter than content-length")
	ErrBodyTooLong                 = syntaxError("body length exceeds limit")
)

// IsSyntaxError reports whether err was caused by a grammar violation
// rather than by the underlying reader.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// MalformedResponseError is returned when received bytes are not a valid response.
// Raw holds every byte received up to the failure.
type MalformedResponseError struct {
	Raw []byte
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (%d bytes received): %s", len(e.Raw), e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
