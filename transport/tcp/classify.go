package tcp

import (
	"context"
	"net"

	"minicurl/application/util/domain"
	"minicurl/transport"

	"github.com/pkg/errors"
)

// classify maps a dial failure to a [transport.ConnectError] kind.
func classify(ctx context.Context, err error) error {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return transport.ErrTimeout
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return transport.ErrTimeout
		}
		return transport.ErrDNSFailure
	case errors.Is(err, domain.ErrDomainNotFound):
		return transport.ErrDNSFailure
	case isRefused(err):
		return transport.ErrConnectionRefused
	case isTimedOut(err), transport.IsTimeout(err):
		return transport.ErrTimeout
	}
	return transport.ErrUnreachable
}
