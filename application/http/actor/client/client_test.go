package client

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"minicurl/application/http"
	"minicurl/application/util/uri"
	iolib "minicurl/lib/io"
	"minicurl/transport"
	"minicurl/transport/pipe"
	"minicurl/transport/tcp"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// recordHandler keeps every record logged through it, attributes included.
type recordHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
	attrs   []slog.Attr
}

func newRecordHandler() *recordHandler {
	return &recordHandler{mu: &sync.Mutex{}, records: &[]slog.Record{}}
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, r)
	return nil
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *recordHandler) WithGroup(string) slog.Handler { return h }

func (h *recordHandler) find(msg string) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var found []slog.Record
	for _, r := range *h.records {
		if r.Message == msg {
			found = append(found, r)
		}
	}
	return found
}

func attr(r slog.Record, key string) (v slog.Value, ok bool) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, ok = a.Value, true
			return false
		}
		return true
	})
	return v, ok
}

// states returns every state entered, in order.
func (h *recordHandler) states() []State {
	var states []State
	for _, r := range h.find("exchange state changed") {
		if v, ok := attr(r, "to"); ok {
			states = append(states, v.Any().(State))
		}
	}
	return states
}

type handleFunc func(conn net.Conn, req http.Request)

func respond(raw string) handleFunc {
	return func(conn net.Conn, _ http.Request) {
		_, _ = iolib.WriteFull(conn, []byte(raw))
	}
}

// respondWith encodes res as the whole reply.
func respondWith(res http.Response) handleFunc {
	return func(conn net.Conn, _ http.Request) {
		_ = http.NewResponseEncoder(conn, http.DefaultEncodeOptions).Encode(res)
	}
}

func strPtr(s string) *string { return &s }

// hold keeps the connection open until the client goes away.
func hold(conn net.Conn, _ http.Request) { _, _ = io.Copy(io.Discard, conn) }

type ClientTestSuite struct {
	suite.Suite

	transport *pipe.PipeTransport
	clock     *clock.Mock
	handler   *recordHandler

	client *Client

	wg sync.WaitGroup
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.transport = pipe.NewPipeTransport(s.clock)
	s.handler = newRecordHandler()

	opts := DefaultOptions
	opts.Timeout = TimeoutOptions{}

	s.client = New(s.transport, slog.New(s.handler), s.clock, opts)
}

func (s *ClientTestSuite) TearDownTest() {
	s.wg.Wait()
	goleak.VerifyNone(s.T())
}

// serve accepts n connections on host:port. Each received request is sent to the returned channel
// before handle runs.
func (s *ClientTestSuite) serve(host string, port uint16, n int, handle handleFunc) <-chan http.Request {
	lis, err := s.transport.Listen(host, port)
	s.Require().NoError(err)

	requests := make(chan http.Request, n)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer lis.Close()

		for range n {
			conn, err := lis.Accept(context.Background())
			if !s.NoError(err) {
				return
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()

				var req http.Request
				if !s.NoError(http.NewRequestDecoder(conn, http.DefaultDecodeOptions).Decode(&req)) {
					return
				}
				requests <- req

				handle(conn, req)
			}()
		}
	}()

	return requests
}

func (s *ClientTestSuite) TestDoGet() {
	requests := s.serve("example.com", 80, 1, respondWith(http.Response{
		StatusLine: http.StatusLine{Version: http.Version{1, 1}, StatusCode: 200, ReasonPhrase: "OK"},
		Headers: http.Headers{
			http.NewField("Content-Type", "text/plain"),
			http.NewField("Content-Length", "5"),
		},
		Body: []byte("hello"),
	}))

	res, err := s.client.Do(context.Background(), Params{URL: "http://example.com/index.html"})
	s.Require().NoError(err)

	s.Equal(uint16(200), res.StatusCode)
	s.Equal("OK", res.ReasonPhrase)
	s.Equal(http.Version{1, 1}, res.Version)
	s.Equal([]byte("hello"), res.Body)

	ct, ok := res.Headers.Get("content-type")
	s.True(ok)
	s.Equal("text/plain", ct)

	req := <-requests
	s.Equal(http.RequestLine{Method: "GET", Target: "/index.html", Version: http.Version{1, 1}}, req.RequestLine)
	s.Equal(http.Headers{
		http.NewField("Host", "example.com"),
		http.NewField("User-Agent", "minicurl/1.0"),
		http.NewField("Accept", "*/*"),
		http.NewField("Connection", "close"),
	}, req.Headers)
	s.False(req.HasBody())
}

func (s *ClientTestSuite) TestDoPost() {
	requests := s.serve("api.local", 8080, 1, respond("HTTP/1.1 201 Created\r\n\r\n{\"id\":1}"))

	res, err := s.client.Do(context.Background(), Params{
		URL:    "http://api.local:8080/items",
		Method: "POST",
		Body:   strPtr(`{"name":"a"}`),
	})
	s.Require().NoError(err)

	s.Equal(uint16(201), res.StatusCode)
	s.Equal([]byte(`{"id":1}`), res.Body)

	req := <-requests
	s.Equal("POST", req.Method)
	s.Equal([]byte(`{"name":"a"}`), req.Body)

	ct, _ := req.Headers.Get("Content-Type")
	s.Equal("application/json", ct)
	cl, _ := req.Headers.Get("Content-Length")
	s.Equal("12", cl)
	host, _ := req.Headers.Get("Host")
	s.Equal("api.local", host)
}

func (s *ClientTestSuite) TestDoCustomHeaders() {
	requests := s.serve("example.com", 80, 1, respond("HTTP/1.1 204 No Content\r\n\r\n"))

	res, err := s.client.Do(context.Background(), Params{
		URL:     "http://example.com/",
		Method:  "PUT",
		Body:    strPtr("x"),
		Headers: []string{"Content-Type: text/plain", "X-Trace: 1"},
	})
	s.Require().NoError(err)
	s.Equal(uint16(204), res.StatusCode)
	s.Empty(res.Body)

	req := <-requests
	s.Equal([]string{"text/plain"}, req.Headers.Values("Content-Type"))
	s.Equal([]string{"1"}, req.Headers.Values("X-Trace"))
	s.Equal([]byte("x"), req.Body)
}

func (s *ClientTestSuite) TestDoHead() {
	s.serve("example.com", 80, 1, respond(""+
		"HTTP/1.1 200 OK\r\n"+
		"Content-Length: 1000\r\n"+
		"\r\n"))

	res, err := s.client.Do(context.Background(), Params{URL: "http://example.com/", Method: "HEAD"})
	s.Require().NoError(err)
	s.Equal(uint16(200), res.StatusCode)
	s.Empty(res.Body)
}

func (s *ClientTestSuite) TestStateOrder() {
	s.serve("example.com", 80, 1, respond("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))

	_, err := s.client.Do(context.Background(), Params{URL: "http://example.com/"})
	s.Require().NoError(err)

	s.Equal([]State{
		StateConnected,
		StateSent,
		StateAwaitingHeaders,
		StateAwaitingBody,
		StateComplete,
	}, s.handler.states())
}

func (s *ClientTestSuite) TestReasonPhrase() {
	testcases := []struct {
		desc        string
		useReceived bool
		statusLine  string
		expected    string
	}{
		{desc: "received", useReceived: true, statusLine: "HTTP/1.1 200 Fine", expected: "Fine"},
		{desc: "canonical", useReceived: false, statusLine: "HTTP/1.1 200 Fine", expected: "OK"},
		{desc: "unknown code keeps received", useReceived: false, statusLine: "HTTP/1.1 299 Odd", expected: "Odd"},
	}
	for i, tc := range testcases {
		s.Run(tc.desc, func() {
			port := uint16(8000 + i)
			s.serve("example.com", port, 1, respond(tc.statusLine+"\r\nContent-Length: 0\r\n\r\n"))

			opts := DefaultOptions
			opts.Timeout = TimeoutOptions{}
			opts.Receive.UseReceivedReasonPhrase = tc.useReceived
			c := New(s.transport, nil, s.clock, opts)

			res, err := c.Do(context.Background(), Params{URL: "http://example.com:" + strconv.Itoa(int(port)) + "/"})
			s.Require().NoError(err)
			s.Equal(tc.expected, res.ReasonPhrase)
		})
	}
}

func (s *ClientTestSuite) TestVerbose() {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"
	s.serve("example.com", 80, 1, respond(raw))

	_, err := s.client.Do(context.Background(), Params{URL: "http://example.com/v", Verbose: true})
	s.Require().NoError(err)

	sent := s.handler.find("request wire")
	s.Require().Len(sent, 1)
	s.Equal(slog.LevelInfo, sent[0].Level)
	data, ok := attr(sent[0], "data")
	s.Require().True(ok)
	s.Equal(""+
		"GET /v HTTP/1.1\r\n"+
		"Host: example.com\r\n"+
		"User-Agent: minicurl/1.0\r\n"+
		"Accept: */*\r\n"+
		"Connection: close\r\n"+
		"\r\n", data.String())

	received := s.handler.find("response wire")
	s.Require().Len(received, 1)
	s.Equal(slog.LevelInfo, received[0].Level)
	data, ok = attr(received[0], "data")
	s.Require().True(ok)
	s.Equal(raw, data.String())
}

func (s *ClientTestSuite) TestNotVerbose() {
	s.serve("example.com", 80, 1, respond("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))

	_, err := s.client.Do(context.Background(), Params{URL: "http://example.com/"})
	s.Require().NoError(err)

	s.Empty(s.handler.find("request wire"))
	s.Empty(s.handler.find("response wire"))
}

func (s *ClientTestSuite) TestInvalidURL() {
	testcases := []struct {
		desc    string
		url     string
		wantErr error
	}{
		{desc: "unsupported scheme", url: "ftp://example.com/", wantErr: uri.ErrUnsupportedScheme},
		{desc: "missing path", url: "http://example.com", wantErr: uri.ErrMalformedURL},
		{desc: "empty host", url: "http://:80/", wantErr: uri.ErrEmptyHost},
		{desc: "invalid port", url: "http://example.com:99999/", wantErr: uri.ErrInvalidPort},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			res, err := s.client.Do(context.Background(), Params{URL: tc.url})
			s.Nil(res)
			s.ErrorIs(err, tc.wantErr)

			var pe *uri.ParseError
			s.Require().ErrorAs(err, &pe)
			s.Equal(tc.url, pe.Input)
		})
	}
	s.Empty(s.handler.states())
}

func (s *ClientTestSuite) TestConnectionRefused() {
	res, err := s.client.Do(context.Background(), Params{URL: "http://nobody.local/"})
	s.Nil(res)
	s.ErrorIs(err, transport.ErrConnectionRefused)

	var ce *transport.ConnectError
	s.Require().ErrorAs(err, &ce)
	s.Equal("nobody.local:80", ce.Addr)

	s.Equal([]State{StateFailed}, s.handler.states())
}

func (s *ClientTestSuite) TestMalformedResponse() {
	testcases := []struct {
		desc    string
		raw     string
		wantErr error
	}{
		{desc: "bad status line", raw: "HTTP/1.1 OK\r\n\r\n", wantErr: http.ErrMalformedStatusLine},
		{desc: "header without colon", raw: "HTTP/1.1 200 OK\r\nBroken\r\n\r\n", wantErr: http.ErrMalformedFieldLine},
		{desc: "closed before head", raw: "HTTP/1.1 200 OK\r\n", wantErr: http.ErrIncompleteMessage},
		{desc: "truncated body", raw: "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nshort", wantErr: http.ErrTruncatedBody},
	}
	for i, tc := range testcases {
		s.Run(tc.desc, func() {
			port := uint16(9000 + i)
			s.serve("example.com", port, 1, respond(tc.raw))

			res, err := s.client.Do(context.Background(), Params{URL: "http://example.com:" + strconv.Itoa(int(port)) + "/"})
			s.Nil(res)
			s.ErrorIs(err, tc.wantErr)

			var malformed *http.MalformedResponseError
			s.Require().ErrorAs(err, &malformed)
			s.Equal(tc.raw, string(malformed.Raw))
		})
	}
}

func (s *ClientTestSuite) TestCancel() {
	requests := s.serve("example.com", 80, 1, hold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-requests
		cancel()
	}()

	res, err := s.client.Do(ctx, Params{URL: "http://example.com/"})
	s.Nil(res)
	s.ErrorIs(err, ErrCancelled)

	states := s.handler.states()
	s.Require().NotEmpty(states)
	s.Equal(StateFailed, states[len(states)-1])
}

func (s *ClientTestSuite) TestReadTimeout() {
	requests := s.serve("example.com", 80, 1, hold)

	opts := DefaultOptions
	opts.Timeout = TimeoutOptions{Read: 5 * time.Second}
	c := New(s.transport, slog.New(s.handler), s.clock, opts)

	go func() {
		<-requests
		s.clock.Add(5 * time.Second)
	}()

	res, err := c.Do(context.Background(), Params{URL: "http://example.com/"})
	s.Nil(res)
	s.ErrorIs(err, transport.ErrTimeout)

	var ioErr *transport.IOError
	s.Require().ErrorAs(err, &ioErr)
	s.Equal("read", ioErr.Op)

	s.Equal([]State{StateConnected, StateSent, StateAwaitingHeaders, StateFailed}, s.handler.states())
}

func (s *ClientTestSuite) TestConcurrent() {
	n := 5
	s.serve("example.com", 80, n, func(conn net.Conn, req http.Request) {
		body := req.Target
		respondWith(http.Response{
			StatusLine: http.StatusLine{Version: http.Version{1, 1}, StatusCode: 200, ReasonPhrase: "OK"},
			Headers:    http.Headers{http.NewField("Content-Length", strconv.Itoa(len(body)))},
			Body:       []byte(body),
		})(conn, req)
	})

	var wg sync.WaitGroup
	defer wg.Wait()

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := "/" + strconv.Itoa(i)

			res, err := s.client.Do(context.Background(), Params{URL: "http://example.com" + target})
			if s.NoError(err) {
				s.Equal([]byte(target), res.Body)
			}
		}()
	}
}

type TCPClientTestSuite struct {
	suite.Suite
}

func TestTCPClientTestSuite(t *testing.T) {
	suite.Run(t, new(TCPClientTestSuite))
}

func (s *TCPClientTestSuite) TestDo() {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := lis.Accept()
		if !s.NoError(err) {
			return
		}
		defer conn.Close()

		var req http.Request
		if !s.NoError(http.NewRequestDecoder(conn, http.DefaultDecodeOptions).Decode(&req)) {
			return
		}
		// Body is delimited by closing the connection.
		_, err = iolib.WriteFull(conn, []byte("HTTP/1.1 200 OK\r\n\r\n"+string(req.Body)))
		s.NoError(err)
		s.NoError(conn.(*net.TCPConn).CloseWrite())

		// Drain until the client closes, so no reset is sent.
		_, _ = io.Copy(io.Discard, conn)
	}()

	c := New(tcp.NewDialer(tcp.DefaultDialerOptions, nil, clock.New()), nil, clock.New(), DefaultOptions)

	res, err := c.Do(context.Background(), Params{
		URL:    "http://127.0.0.1:" + strconv.Itoa(port) + "/echo",
		Method: "POST",
		Body:   strPtr("ping"),
	})
	s.Require().NoError(err)
	s.Equal(uint16(200), res.StatusCode)
	s.Equal([]byte("ping"), res.Body)
	s.GreaterOrEqual(res.Timings.Complete, res.Timings.Connected)
}

func (s *TCPClientTestSuite) TestConnectionRefused() {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	port := lis.Addr().(*net.TCPAddr).Port
	s.Require().NoError(lis.Close())

	c := New(tcp.NewDialer(tcp.DefaultDialerOptions, nil, clock.New()), nil, clock.New(), DefaultOptions)

	_, err = c.Do(context.Background(), Params{URL: "http://127.0.0.1:" + strconv.Itoa(port) + "/"})
	s.ErrorIs(err, transport.ErrConnectionRefused)
	s.False(errors.Is(err, transport.ErrTimeout))
}
