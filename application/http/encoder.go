package http

import (
	"bufio"
	"io"
	"strconv"

	"minicurl/application/util/rule"

	"github.com/pkg/errors"
)

type EncodeOptions struct {
	// UseSoleLF specifies wheter a single LF character should be used as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool

	// TerminateBody appends a line terminator after a present body.
	// The terminator is not counted by Content-Length.
	// A server treats it as an empty line preceding the next message.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
	TerminateBody bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF:     false,
	TerminateBody: true,
}

type MessageEncoder struct {
	bw   *bufio.Writer
	opts EncodeOptions
}

func (me *MessageEncoder) terminator() []byte {
	if me.opts.UseSoleLF {
		return rule.CRLF[1:]
	}
	return rule.CRLF
}

func (me *MessageEncoder) writeLine(line []byte) error {
	if _, err := me.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	if _, err := me.bw.Write(me.terminator()); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (me *MessageEncoder) encodeHeaders(headers Headers) error {
	for _, field := range headers {
		line := field.Text()
		if field.IsRaw() && rule.HasLineTerminator(line) {
			// Already terminated by the caller.
			if _, err := me.bw.Write(line); err != nil {
				return errors.Wrap(err, "writing raw field")
			}
			continue
		}

		if err := me.writeLine(line); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// Write a empty line as all the headers are written.
	if err := me.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

type RequestEncoder struct{ MessageEncoder }

func NewRequestEncoder(w io.Writer, opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

// Encode writes the whole request and flushes once at the end.
func (re *RequestEncoder) Encode(request Request) error {
	if err := re.encodeRequestLine(request.RequestLine); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	if err := re.encodeHeaders(request.Headers); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if request.HasBody() {
		if _, err := re.bw.Write(request.Body); err != nil {
			return errors.Wrap(err, "writing request body")
		}

		if re.opts.TerminateBody {
			if _, err := re.bw.Write(re.terminator()); err != nil {
				return errors.Wrap(err, "writing body terminator")
			}
		}
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request")
	}

	return nil
}

func (re *RequestEncoder) encodeRequestLine(reqLine RequestLine) error {
	line := make([]byte, 0, len(reqLine.Method)+len(reqLine.Target)+10)
	line = append(line, reqLine.Method...)
	line = append(line, rule.SP)
	line = append(line, reqLine.Target...)
	line = append(line, rule.SP)
	line = append(line, reqLine.Version.Text()...)

	if err := re.writeLine(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}

type ResponseEncoder struct{ MessageEncoder }

func NewResponseEncoder(w io.Writer, opts EncodeOptions) *ResponseEncoder {
	return &ResponseEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

// Encode writes response as is. It does not add any framing header by itself.
func (re *ResponseEncoder) Encode(response Response) error {
	if err := re.encodeStatusLine(response.StatusLine); err != nil {
		return errors.Wrap(err, "encoding status line")
	}

	if err := re.encodeHeaders(response.Headers); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if _, err := re.bw.Write(response.Body); err != nil {
		return errors.Wrap(err, "writing response body")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing response")
	}

	return nil
}

func (re *ResponseEncoder) encodeStatusLine(statLine StatusLine) error {
	line := make([]byte, 0, 16+len(statLine.ReasonPhrase))
	line = append(line, statLine.Version.Text()...)
	line = append(line, rule.SP)
	line = strconv.AppendUint(line, uint64(statLine.StatusCode), 10)
	line = append(line, rule.SP)
	line = append(line, statLine.ReasonPhrase...)

	if err := re.writeLine(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}
