// Package transport defines how a peer is reached and how transport failures are reported.
package transport

import (
	"context"
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// ConnDialer opens one connection per call.
// Failures are reported as [*ConnectError].
type ConnDialer interface {
	Dial(ctx context.Context, host string, port uint16) (net.Conn, error)
}

// Addr joins host and port into "host:port", bracketing IPv6 literals.
func Addr(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

// IsTimeout reports whether err comes from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
