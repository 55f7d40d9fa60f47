package client

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/benbjohnson/clock"
)

// Timings are offsets from the start of an exchange.
type Timings struct {
	Connected    time.Duration
	Sent         time.Duration
	HeadReceived time.Duration
	Complete     time.Duration
}

// exchange tracks one request/response over its own connection.
// It is owned by a single goroutine.
type exchange struct {
	state State
	conn  net.Conn
	err   error

	start   time.Time
	timings Timings

	logger *slog.Logger
	clock  clock.Clock
}

func newExchange(logger *slog.Logger, clock clock.Clock) *exchange {
	return &exchange{
		state:  StateIdle,
		start:  clock.Now(),
		logger: logger,
		clock:  clock,
	}
}

// advance moves to the state right after the current one.
func (e *exchange) advance(to State) {
	if e.state.Terminal() || to != e.state+1 {
		panic(fmt.Sprintf("exchange cannot move from %s to %s", e.state, to))
	}
	e.transition(to)
}

// fail closes the connection and moves to [StateFailed]. It returns err.
func (e *exchange) fail(err error) error {
	if e.state.Terminal() {
		return err
	}

	e.err = err
	if e.conn != nil {
		if cerr := e.conn.Close(); cerr != nil {
			e.logger.Debug("error when closing connection", "error", cerr)
		}
	}

	e.logger.Debug("exchange failed", "from", e.state, "error", err)
	e.transition(StateFailed)

	return err
}

func (e *exchange) transition(to State) {
	elapsed := e.clock.Since(e.start)

	switch to {
	case StateConnected:
		e.timings.Connected = elapsed
	case StateSent:
		e.timings.Sent = elapsed
	case StateAwaitingBody:
		e.timings.HeadReceived = elapsed
	case StateComplete:
		e.timings.Complete = elapsed
	}

	e.logger.Debug("exchange state changed", "from", e.state, "to", to, "elapsed", elapsed)
	e.state = to
}
