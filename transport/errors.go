package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of [ConnectError]. Compare with errors.Is.
var (
	ErrDNSFailure        = errors.New("dns resolution failed")
	ErrConnectionRefused = errors.New("connection refused")
	ErrTimeout           = errors.New("timed out")
	ErrUnreachable       = errors.New("peer unreachable")
)

var (
	ErrAddrAlreadyInUse   = errors.New("address already in use")
	ErrConnListenerClosed = errors.New("conn listener is closed")
)

// ConnectError is a failure to establish a connection to Addr.
type ConnectError struct {
	Addr string
	Kind error
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %s", e.Addr, e.Kind)
	}
	return fmt.Sprintf("connect %s: %s: %s", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Is(target error) bool { return target == e.Kind }

func (e *ConnectError) Unwrap() error { return e.Err }

// IOError is a socket failure in the middle of an exchange.
// Op is "write" or "read".
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }
