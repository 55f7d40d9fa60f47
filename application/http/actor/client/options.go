package client

import (
	"time"

	"minicurl/application/http"
)

type Options struct {
	Send    SendOptions
	Receive ReceiveOptions
	Timeout TimeoutOptions
}

type SendOptions struct {
	Encode http.EncodeOptions
}

type ReceiveOptions struct {
	Decode http.DecodeOptions

	// UseReceivedReasonPhrase uses reason phrase from response.
	// If false, the reason phrase will instead be filled with default value for the status code.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-4-9
	UseReceivedReasonPhrase bool
}

// TimeoutOptions bounds each phase of an exchange. Zero means no limit.
type TimeoutOptions struct {
	// Connect covers name resolution and connection establishment.
	Connect time.Duration
	// Write covers sending the request.
	Write time.Duration
	// Read covers the whole response, counted from the start of sending.
	Read time.Duration
}

var DefaultOptions = Options{
	Send: SendOptions{
		Encode: http.DefaultEncodeOptions,
	},
	Receive: ReceiveOptions{
		Decode:                  http.DefaultDecodeOptions,
		UseReceivedReasonPhrase: true,
	},
	Timeout: TimeoutOptions{
		Connect: 10 * time.Second,
		Write:   30 * time.Second,
		Read:    30 * time.Second,
	},
}
