package client

import "strconv"

// State is the progress of a single request/response exchange.
type State uint8

const (
	StateIdle State = iota
	StateConnected
	StateSent
	StateAwaitingHeaders
	StateAwaitingBody
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateConnected:       "connected",
	StateSent:            "sent",
	StateAwaitingHeaders: "awaiting-headers",
	StateAwaitingBody:    "awaiting-body",
	StateComplete:        "complete",
	StateFailed:          "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }
