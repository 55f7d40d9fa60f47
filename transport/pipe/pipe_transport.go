package pipe

import (
	"context"
	"net"
	"sync"

	"minicurl/transport"

	"github.com/benbjohnson/clock"
)

type pipeRequest struct {
	conn     *pipe
	accepted chan struct{}
}

// PipeTransport connects dialers to listeners registered under "host:port".
type PipeTransport struct {
	listeners map[string]*Listener
	clock     clock.Clock

	mu sync.Mutex
}

func NewPipeTransport(clock clock.Clock) *PipeTransport {
	return &PipeTransport{
		listeners: make(map[string]*Listener),
		clock:     clock,
	}
}

var _ transport.ConnDialer = (*PipeTransport)(nil)

func (pt *PipeTransport) Dial(ctx context.Context, host string, port uint16) (net.Conn, error) {
	addr := transport.Addr(host, port)

	pt.mu.Lock()
	listener, ok := pt.listeners[addr]
	pt.mu.Unlock()

	if !ok {
		return nil, &transport.ConnectError{Addr: addr, Kind: transport.ErrConnectionRefused}
	}

	p1, p2 := newPair("dialer", addr, pt.clock)

	req := pipeRequest{
		conn:     p2,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		return nil, dialCanceled(addr, ctx.Err())
	case <-listener.closed:
		return nil, &transport.ConnectError{Addr: addr, Kind: transport.ErrConnectionRefused}
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		return nil, dialCanceled(addr, ctx.Err())
	case <-req.accepted:
	case <-listener.closed:
		return nil, &transport.ConnectError{Addr: addr, Kind: transport.ErrConnectionRefused}
	}

	return p1, nil
}

func dialCanceled(addr string, err error) error {
	kind := transport.ErrUnreachable
	if err == context.DeadlineExceeded {
		kind = transport.ErrTimeout
	}
	return &transport.ConnectError{Addr: addr, Kind: kind, Err: err}
}

// Listen registers a listener for host:port.
func (pt *PipeTransport) Listen(host string, port uint16) (*Listener, error) {
	addr := transport.Addr(host, port)

	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.listeners[addr]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	pl := &Listener{
		addr:      addr,
		transport: pt,
		requests:  make(chan pipeRequest),
		closed:    make(chan struct{}),
	}
	pt.listeners[addr] = pl

	return pl, nil
}

type Listener struct {
	addr string

	transport *PipeTransport

	requests chan pipeRequest
	closed   chan struct{}

	mu sync.Mutex
}

func (pl *Listener) Addr() net.Addr { return Addr{Name: pl.addr} }

func (pl *Listener) Accept(ctx context.Context) (net.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pl.closed:
		return nil, transport.ErrConnListenerClosed
	case request := <-pl.requests:
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case request.accepted <- struct{}{}:
		}

		return request.conn, nil
	}
}

// Close unregisters the listener. Pending dials are refused.
func (pl *Listener) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	select {
	case <-pl.closed:
		return transport.ErrConnListenerClosed
	default:
	}

	close(pl.closed)

	pl.transport.mu.Lock()
	delete(pl.transport.listeners, pl.addr)
	pl.transport.mu.Unlock()

	return nil
}
