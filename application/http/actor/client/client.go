// Package client performs single HTTP/1.1 request/response exchanges.
//
// Every call to [Client.Do] opens its own connection and closes it when done.
package client

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"

	"minicurl/application/http"
	"minicurl/application/http/semantic"
	"minicurl/application/util/uri"
	iolib "minicurl/lib/io"
	"minicurl/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var ErrCancelled = errors.New("request cancelled")

const (
	opConnect = "connect"
	opWrite   = "write"
	opRead    = "read"
)

// Client holds no mutable state. It is safe for concurrent use.
type Client struct {
	dialer transport.ConnDialer

	opts Options

	logger *slog.Logger
	clock  clock.Clock
}

func New(
	dialer transport.ConnDialer,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		dialer: dialer,
		opts:   opts,
		logger: logger,
		clock:  clock,
	}
}

type Params struct {
	URL string
	// Method defaults to GET.
	Method string
	// Body is sent with a Content-Length when non-nil.
	Body *string
	// Headers are raw header lines sent as given.
	Headers []string
	// Verbose logs request and response bytes at info level.
	Verbose bool
}

type Response struct {
	http.Response

	Timings Timings
}

// Do performs one exchange.
//
// Errors are one of:
//   - [*uri.ParseError] for a bad URL
//   - [*transport.ConnectError] when the peer cannot be reached
//   - [*transport.IOError] when the socket fails mid-exchange
//   - [*http.MalformedResponseError] when the response is not valid HTTP/1.1
//   - [ErrCancelled] when ctx is cancelled
//
// Nothing is retried.
func (c *Client) Do(ctx context.Context, p Params) (*Response, error) {
	addr, err := uri.Parse(p.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing url")
	}

	method := p.Method
	if method == "" {
		method = string(semantic.DefaultMethod)
	}

	request, err := semantic.BuildRequest(addr, method, p.Headers, p.Body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	wire := bytes.NewBuffer(nil)
	if err := http.NewRequestEncoder(wire, c.opts.Send.Encode).Encode(request); err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	logger := c.logger.With("addr", addr.HostPort(), "method", method, "target", addr.Path)
	if p.Verbose {
		logger.Info("request wire", "data", wire.String())
	}

	ex := newExchange(logger, c.clock)

	res, err := c.roundtrip(ctx, ex, addr, semantic.Method(method), wire.Bytes(), p.Verbose)
	if err != nil {
		return nil, err
	}

	logger.Debug("exchange complete", "status", res.StatusCode, "body", len(res.Body), "elapsed", res.Timings.Complete)

	return res, nil
}

func (c *Client) roundtrip(
	ctx context.Context,
	ex *exchange,
	addr uri.Address,
	method semantic.Method,
	wire []byte,
	verbose bool,
) (*Response, error) {
	dialCtx := ctx
	if d := c.opts.Timeout.Connect; d > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = c.clock.WithTimeout(ctx, d)
		defer cancel()
	}

	conn, err := c.dialer.Dial(dialCtx, addr.Host, addr.Port)
	if err != nil {
		return nil, ex.fail(c.classify(ctx, opConnect, addr, err))
	}
	ex.conn = conn
	defer conn.Close()

	// Closing the socket unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ex.advance(StateConnected)

	if err := c.setDeadlines(conn); err != nil {
		return nil, ex.fail(c.classify(ctx, opWrite, addr, err))
	}

	if _, err := iolib.WriteFull(conn, wire); err != nil {
		return nil, ex.fail(c.classify(ctx, opWrite, addr, err))
	}
	ex.advance(StateSent)

	decodeOpts := c.opts.Receive.Decode
	if !method.ExpectsBody() {
		decodeOpts.NoBody = true
	}
	dec := http.NewResponseDecoder(conn, decodeOpts)

	if verbose {
		defer func() {
			ex.logger.Info("response wire", "data", string(dec.Raw()))
		}()
	}

	var res Response

	ex.advance(StateAwaitingHeaders)
	if err := dec.DecodeHead(&res.Response); err != nil {
		return nil, ex.fail(c.classify(ctx, opRead, addr, err))
	}

	ex.advance(StateAwaitingBody)
	if err := dec.DecodeBody(&res.Response); err != nil {
		return nil, ex.fail(c.classify(ctx, opRead, addr, err))
	}

	ex.advance(StateComplete)

	if !c.opts.Receive.UseReceivedReasonPhrase {
		res.ReasonPhrase = res.Status().Canonical().ReasonPhrase
	}
	res.Timings = ex.timings

	return &res, nil
}

// setDeadlines starts the write and read timers together.
// The read timer covers the wait for the first response byte.
func (c *Client) setDeadlines(conn net.Conn) error {
	now := c.clock.Now()

	if d := c.opts.Timeout.Write; d > 0 {
		if err := conn.SetWriteDeadline(now.Add(d)); err != nil {
			return errors.Wrap(err, "setting write deadline")
		}
	}
	if d := c.opts.Timeout.Read; d > 0 {
		if err := conn.SetReadDeadline(now.Add(d)); err != nil {
			return errors.Wrap(err, "setting read deadline")
		}
	}

	return nil
}

// classify turns err from op into the client error taxonomy.
func (c *Client) classify(ctx context.Context, op string, addr uri.Address, err error) error {
	if cause := ctx.Err(); cause != nil {
		if errors.Is(cause, context.DeadlineExceeded) {
			return timeoutError(op, addr, cause)
		}
		return errors.Wrapf(ErrCancelled, "%s: %s", op, err)
	}

	var malformed *http.MalformedResponseError
	if errors.As(err, &malformed) {
		return err
	}

	if op == opConnect {
		var ce *transport.ConnectError
		if errors.As(err, &ce) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) || transport.IsTimeout(err) {
			return timeoutError(op, addr, err)
		}
		return &transport.ConnectError{Addr: addr.HostPort(), Kind: transport.ErrUnreachable, Err: err}
	}

	if transport.IsTimeout(err) {
		return timeoutError(op, addr, err)
	}

	return &transport.IOError{Op: op, Err: err}
}

func timeoutError(op string, addr uri.Address, err error) error {
	if op == opConnect {
		return &transport.ConnectError{Addr: addr.HostPort(), Kind: transport.ErrTimeout, Err: err}
	}
	return &transport.IOError{Op: op, Err: fmt.Errorf("%w: %w", transport.ErrTimeout, err)}
}
