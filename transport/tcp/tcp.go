// Package tcp dials TCP connections for the client.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9293
package tcp

import (
	"context"
	"net"
	"net/netip"
	"time"

	"minicurl/application/util/domain"
	"minicurl/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

type DialerOptions struct {
	// ConnectTimeout bounds resolution and connection establishment. Zero means no limit.
	ConnectTimeout time.Duration

	// KeepAlive is passed to net.Dialer. Negative disables keep-alive probes.
	KeepAlive time.Duration

	// NoDelay disables Nagle's algorithm on established connections.
	NoDelay bool
}

var DefaultDialerOptions = DialerOptions{
	ConnectTimeout: 10 * time.Second,
	KeepAlive:      -1,
	NoDelay:        true,
}

// Dialer opens a new connection for every call. It holds no per-connection state.
type Dialer struct {
	lookuper domain.Lookuper
	clock    clock.Clock
	opts     DialerOptions

	dialer net.Dialer
}

var _ transport.ConnDialer = (*Dialer)(nil)

// NewDialer creates a dialer. Names are looked up in lookuper first,
// falling back to the system resolver when it does not know them.
// lookuper may be nil.
func NewDialer(opts DialerOptions, lookuper domain.Lookuper, clock clock.Clock) *Dialer {
	system := domain.NewResolverLookuper(net.DefaultResolver)
	if lookuper == nil {
		lookuper = system
	} else {
		lookuper = domain.Chain(lookuper, system)
	}

	return &Dialer{
		lookuper: lookuper,
		clock:    clock,
		opts:     opts,
		dialer:   net.Dialer{KeepAlive: opts.KeepAlive},
	}
}

// Dial connects to host:port. Every resolved address is tried in order
// and the first successful connection wins.
func (d *Dialer) Dial(ctx context.Context, host string, port uint16) (net.Conn, error) {
	addr := transport.Addr(host, port)

	if d.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = d.clock.WithDeadline(ctx, d.clock.Now().Add(d.opts.ConnectTimeout))
		defer cancel()
	}

	ips, err := d.resolve(ctx, host)
	if err != nil {
		kind := transport.ErrDNSFailure
		if classify(ctx, err) == transport.ErrTimeout {
			kind = transport.ErrTimeout
		}
		return nil, &transport.ConnectError{Addr: addr, Kind: kind, Err: err}
	}

	var lastErr error
	for _, ip := range ips {
		conn, err := d.dialer.DialContext(ctx, "tcp", netip.AddrPortFrom(ip, port).String())
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			if err := tc.SetNoDelay(d.opts.NoDelay); err != nil {
				conn.Close()
				return nil, &transport.ConnectError{Addr: addr, Kind: transport.ErrUnreachable, Err: err}
			}
		}

		return conn, nil
	}

	return nil, &transport.ConnectError{Addr: addr, Kind: classify(ctx, lastErr), Err: lastErr}
}

func (d *Dialer) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{ip.Unmap()}, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, &net.DNSError{Err: err.Error(), Name: host, IsNotFound: true}
	}

	ips, err := d.lookuper.LookupIP(ctx, ascii)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up %q", ascii)
	}
	if len(ips) == 0 {
		return nil, errors.Wrapf(domain.ErrDomainNotFound, "no address for %q", ascii)
	}

	return ips, nil
}
