package http

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"minicurl/application/util/rule"
	iolib "minicurl/lib/io"
	bytesutil "minicurl/util/bytes"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies wheter a single LF character should be recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// MaxFieldLineLength sets the limit of field line length on headers.
	MaxFieldLineLength uint

	// MaxRequestLineLength sets the limit of request line length.
	// Recommended: >= 8000
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-5
	MaxRequestLineLength uint

	// MaxStatusLineLength sets the limit of status line length.
	MaxStatusLineLength uint

	// MaxBodyLength sets the limit of body length. Zero means no limit.
	MaxBodyLength uint

	// NoBody tells the decoder that the message cannot have a body,
	// e.g. a response to HEAD.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.1
	NoBody bool
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:          false,
	MaxFieldLineLength:   0,
	MaxRequestLineLength: 0,
	MaxStatusLineLength:  0,
	MaxBodyLength:        0,
	NoBody:               false,
}

type MessageDecoder struct {
	rec  *iolib.Recorder
	br   *bufio.Reader
	opts DecodeOptions
}

func newMessageDecoder(r io.Reader, opts DecodeOptions) MessageDecoder {
	rec := iolib.NewRecorder(r)
	return MessageDecoder{rec: rec, br: bufio.NewReader(rec), opts: opts}
}

// Raw returns every byte pulled from the underlying reader so far.
// It may include bytes that were buffered but not decoded yet.
func (md *MessageDecoder) Raw() []byte { return md.rec.Bytes() }

func (md *MessageDecoder) readLine(limit uint) ([]byte, error) {
	b, err := bytesutil.ReadUntil(md.br, []byte{rule.LF}, limit)
	if err != nil {
		switch {
		case errors.Is(err, bytesutil.ErrLimitExceeded):
			return nil, errLineTooLong
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrIncompleteMessage
		}
		return nil, err
	}

	b = b[:len(b)-1] // Remove LF.

	if len(b) > 0 && b[len(b)-1] == rule.CR {
		b = b[:len(b)-1] // Remove CR.
	} else if !md.opts.AllowSoleLF {
		return nil, ErrMissingCRBeforeLF
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	b = bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP})

	return b, nil
}

// readStartLine skips empty lines preceding the start line.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func (md *MessageDecoder) readStartLine(limit uint) ([]byte, error) {
	for {
		b, err := md.readLine(limit)
		if err != nil {
			return nil, err
		}
		if len(b) > 0 {
			return b, nil
		}
	}
}

func (md *MessageDecoder) decodeHeaders(headers *Headers) error {
	tmpHeaders := make(Headers, 0)
	for {
		fieldLine, err := md.readLine(md.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return ErrFieldLineTooLong
			}
			return errors.Wrap(err, "reading line")
		}

		if len(fieldLine) == 0 {
			// An empty line. This means that there are no more headers.
			break
		}

		field, err := ParseField(fieldLine)
		if err != nil {
			return errors.Wrap(ErrMalformedFieldLine, err.Error())
		}

		tmpHeaders = append(tmpHeaders, field)
	}

	*headers = tmpHeaders

	return nil
}

// contentLength extracts the body length from headers.
// Several Content-Length fields are accepted only when they all agree.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6
func contentLength(h Headers) (length uint64, ok bool, err error) {
	values := h.Values("Content-Length")
	if len(values) == 0 {
		return 0, false, nil
	}

	first, seen := "", false
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if !seen {
				first, seen = part, true
			} else if part != first {
				return 0, false, errors.Wrapf(ErrInvalidContentLength, "conflicting values %q", values)
			}
		}
	}

	length, err = strconv.ParseUint(first, 10, 63)
	if err != nil {
		return 0, false, errors.Wrapf(ErrInvalidContentLength, "%q", first)
	}

	return length, true, nil
}

func (md *MessageDecoder) readBody(headers Headers, untilClose bool) ([]byte, error) {
	if md.opts.NoBody {
		return []byte{}, nil
	}

	// Chunked transfer coding is not implemented.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.1
	if te, ok := headers.Get("Transfer-Encoding"); ok {
		return nil, errors.Wrapf(ErrUnsupportedTransferEncoding, "%q", te)
	}

	length, ok, err := contentLength(headers)
	if err != nil {
		return nil, err
	}

	if ok {
		if limit := md.opts.MaxBodyLength; limit > 0 && length > uint64(limit) {
			return nil, errors.Wrapf(ErrBodyTooLong, "content-length %d", length)
		}

		// The declared length is not trusted for allocation.
		var buf bytes.Buffer
		n, err := io.CopyN(&buf, md.br, int64(length))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.Wrapf(ErrTruncatedBody, "got %d of %d bytes", n, length)
			}
			return nil, errors.Wrap(err, "reading body")
		}

		if buf.Len() == 0 {
			return []byte{}, nil
		}
		return buf.Bytes(), nil
	}

	if !untilClose {
		return []byte{}, nil
	}

	var r io.Reader = md.br
	if limit := md.opts.MaxBodyLength; limit > 0 {
		r = iolib.StrictLimitReader(r, limit)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, iolib.ErrLimitExceeded) {
			return nil, ErrBodyTooLong
		}
		return nil, errors.Wrap(err, "reading body until close")
	}

	return body, nil
}

type RequestDecoder struct{ MessageDecoder }

func NewRequestDecoder(r io.Reader, opts DecodeOptions) *RequestDecoder {
	return &RequestDecoder{newMessageDecoder(r, opts)}
}

// Decode reads one request. A request without Content-Length has no body.
// r MUST be a non-nil pointer.
func (rd *RequestDecoder) Decode(r *Request) error {
	if err := rd.decodeRequestLine(&r.RequestLine); err != nil {
		return errors.Wrap(err, "parsing request line")
	}

	if err := rd.decodeHeaders(&r.Headers); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	if _, ok, _ := contentLength(r.Headers); !ok && !r.Headers.Has("Transfer-Encoding") {
		r.Body = nil
		return nil
	}

	body, err := rd.readBody(r.Headers, false)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	r.Body = body

	return nil
}

func (rd *RequestDecoder) decodeRequestLine(reqLine *RequestLine) error {
	line, err := rd.readStartLine(rd.opts.MaxRequestLineLength)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return ErrRequestLineTooLong
		}
		return errors.Wrap(err, "reading line")
	}

	parsed, err := parseRequestLine(line)
	if err != nil {
		return errors.Wrap(ErrMalformedRequestLine, err.Error())
	}

	*reqLine = parsed

	return nil
}

func parseRequestLine(line []byte) (RequestLine, error) {
	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 {
		return RequestLine{}, errors.New("request line is malformed")
	}

	method := string(parts[0])
	if !rule.IsValidToken(method) {
		return RequestLine{}, errors.New("method is not a valid token")
	}

	target := string(parts[1])
	if len(target) == 0 {
		return RequestLine{}, errors.New("request target should not be empty")
	}

	ver, err := ParseVersion(parts[2])
	if err != nil {
		return RequestLine{}, errors.Wrap(err, "parsing version")
	}

	return RequestLine{Method: method, Target: target, Version: ver}, nil
}

type ResponseDecoder struct{ MessageDecoder }

func NewResponseDecoder(r io.Reader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{newMessageDecoder(r, opts)}
}

// Decode reads a whole response. See [ResponseDecoder.DecodeHead] and [ResponseDecoder.DecodeBody].
// r MUST be a non-nil pointer
func (rd *ResponseDecoder) Decode(r *Response) error {
	if err := rd.DecodeHead(r); err != nil {
		return err
	}
	return rd.DecodeBody(r)
}

// DecodeHead reads the status line and the headers.
// Grammar violations are reported as [*MalformedResponseError].
func (rd *ResponseDecoder) DecodeHead(r *Response) error {
	if err := rd.decodeStatusLine(&r.StatusLine); err != nil {
		return rd.wrap(err, "parsing status line")
	}

	if err := rd.decodeHeaders(&r.Headers); err != nil {
		return rd.wrap(err, "parsing headers")
	}

	return nil
}

// DecodeBody reads the body following the head already decoded into r.
// With Content-Length exactly that many bytes are read and anything after is left unread.
// Without it the body extends until the reader reports EOF.
func (rd *ResponseDecoder) DecodeBody(r *Response) error {
	if !mayHaveBody(r.StatusCode) {
		r.Body = []byte{}
		return nil
	}

	body, err := rd.readBody(r.Headers, true)
	if err != nil {
		return rd.wrap(err, "reading body")
	}
	r.Body = body

	return nil
}

func (rd *ResponseDecoder) wrap(err error, msg string) error {
	if IsSyntaxError(err) {
		return &MalformedResponseError{Raw: rd.Raw(), Err: errors.Wrap(err, msg)}
	}
	return errors.Wrap(err, msg)
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.2
func mayHaveBody(code uint16) bool {
	return !(code/100 == 1 || code == 204 || code == 304)
}

func (rd *ResponseDecoder) decodeStatusLine(statLine *StatusLine) error {
	line, err := rd.readStartLine(rd.opts.MaxStatusLineLength)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return ErrStatusLineTooLong
		}
		return errors.Wrap(err, "reading line")
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	*statLine = parsed

	return nil
}

func parseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 3 {
		return StatusLine{}, errors.Errorf("expected version SP code SP reason: %q", line)
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 16)
	if err != nil || len(statusCodeStr) != 3 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}

	// reason-phrase is optional.
	reasonPhrase := string(parts[2])

	return StatusLine{Version: ver, StatusCode: uint16(statusCode), ReasonPhrase: reasonPhrase}, nil
}

// ParseResponse parses a complete response held in b.
// Bytes after a Content-Length bounded body are ignored.
func ParseResponse(b []byte) (*Response, error) {
	var res Response
	if err := NewResponseDecoder(bytes.NewReader(b), DefaultDecodeOptions).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
