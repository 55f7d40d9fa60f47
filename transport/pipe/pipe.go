// Package pipe provides an in-memory transport whose deadlines follow an injected clock.
//
// The design follows net.Pipe.
package pipe

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type pipe struct {
	stream chan []byte // stream that this pipe reads from.
	nc     chan int    // counterpart's respond will be sent here.

	writeMu sync.Mutex

	closed chan struct{}
	once   sync.Once // making sure not to close closed channel.

	rdeadLine *chanDeadLine
	wdeadLine *chanDeadLine

	// the opposite pipe.
	counterpart *pipe

	addr Addr
}

type Addr struct {
	Name string
}

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return a.Name }

var _ net.Addr = Addr{}
var _ net.Conn = (*pipe)(nil)

// Pipe creates a pair of connected pipes. Each of them is synchronous and unbuffered.
//
// Reading from a pipe whose counterpart is closed returns io.EOF.
// Using a closed pipe returns net.ErrClosed.
// Expired deadlines return os.ErrDeadlineExceeded.
func Pipe(name1, name2 string, clock clock.Clock) (c1, c2 net.Conn) {
	p1, p2 := newPair(name1, name2, clock)
	return p1, p2
}

func newPair(name1, name2 string, clock clock.Clock) (c1, c2 *pipe) {
	c1 = &pipe{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		rdeadLine: newChanDeadLine(clock),
		wdeadLine: newChanDeadLine(clock),
		addr:      Addr{Name: name1},
	}
	c2 = &pipe{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		rdeadLine: newChanDeadLine(clock),
		wdeadLine: newChanDeadLine(clock),
		addr:      Addr{Name: name2},
	}
	c1.counterpart, c2.counterpart = c2, c1
	return
}

func (p *pipe) LocalAddr() net.Addr  { return p.addr }
func (p *pipe) RemoteAddr() net.Addr { return p.counterpart.addr }

func (p *pipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipe) Read(b []byte) (n int, err error) {
	if err := p.checkReadOK(); err != nil {
		return 0, err
	}

	select {
	case received := <-p.stream:
		n := copy(b, received)
		p.counterpart.nc <- n
		return n, nil
	case <-p.closed:
		return 0, net.ErrClosed
	case <-p.counterpart.closed:
		return 0, io.EOF
	case <-p.rdeadLine.wait():
		return 0, os.ErrDeadlineExceeded
	}
}

func (p *pipe) Write(b []byte) (n int, err error) {
	if err := p.checkWriteOK(); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	// Serialize write operations to prevent interleaving write.
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	nn := 0
	for len(b) > 0 {
		select {
		case p.counterpart.stream <- b:
			n := <-p.nc
			b = b[n:]
			nn += n
		case <-p.closed:
			return nn, net.ErrClosed
		case <-p.counterpart.closed:
			return nn, io.ErrClosedPipe
		case <-p.wdeadLine.wait():
			return nn, os.ErrDeadlineExceeded
		}
	}

	return nn, nil
}

func (p *pipe) checkReadOK() error {
	switch {
	case isClosed(p.closed):
		return net.ErrClosed
	case isClosed(p.counterpart.closed):
		return io.EOF
	case isClosed(p.rdeadLine.wait()):
		return os.ErrDeadlineExceeded
	}
	return nil
}

func (p *pipe) checkWriteOK() error {
	switch {
	case isClosed(p.closed):
		return net.ErrClosed
	case isClosed(p.counterpart.closed):
		return io.ErrClosedPipe
	case isClosed(p.wdeadLine.wait()):
		return os.ErrDeadlineExceeded
	}
	return nil
}

func (p *pipe) SetDeadline(t time.Time) error {
	p.rdeadLine.set(t)
	p.wdeadLine.set(t)
	return nil
}

func (p *pipe) SetReadDeadline(t time.Time) error {
	p.rdeadLine.set(t)
	return nil
}

func (p *pipe) SetWriteDeadline(t time.Time) error {
	p.wdeadLine.set(t)
	return nil
}

type chanDeadLine struct {
	clock clock.Clock

	t *clock.Timer
	m sync.Mutex

	closed chan struct{}
}

func newChanDeadLine(clock clock.Clock) *chanDeadLine {
	return &chanDeadLine{
		clock:  clock,
		closed: make(chan struct{}),
	}
}

func (d *chanDeadLine) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t != nil {
		// Stop existing timer.
		d.t.Stop()
	}
	d.t = nil

	if isClosed(d.closed) {
		d.closed = make(chan struct{})
	}

	if t.IsZero() {
		// zero value means no limit.
		return
	}

	wait := d.clock.Until(t)
	if wait <= 0 {
		close(d.closed)
		return
	}

	closed := d.closed
	d.t = d.clock.AfterFunc(wait, func() {
		close(closed)
	})
}

func (d *chanDeadLine) wait() <-chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	return d.closed
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c: // c will only fire at closed state.
		return true
	default:
		return false
	}
}
