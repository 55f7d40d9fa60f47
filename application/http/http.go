package http

import (
	"bytes"
	"strconv"
	"strings"

	"minicurl/application/http/semantic/status"
	"minicurl/application/util/rule"
	"minicurl/application/util/uri"

	"github.com/pkg/errors"
)

type RequestLine struct {
	Method  string
	Target  string
	Version Version
}

// Request is a request message ready for serialization.
// A nil Body means the request has no body at all.
type Request struct {
	RequestLine
	Headers Headers

	Body []byte
}

func (r *Request) HasBody() bool { return r.Body != nil }

// Bytes serializes the whole request with [DefaultEncodeOptions].
func (r *Request) Bytes() []byte {
	buf := bytes.NewBuffer(nil)
	// Writing into a bytes.Buffer never fails.
	_ = NewRequestEncoder(buf, DefaultEncodeOptions).Encode(*r)
	return buf.Bytes()
}

type StatusLine struct {
	Version      Version
	StatusCode   uint16
	ReasonPhrase string
}

type Response struct {
	StatusLine
	Headers Headers

	Body []byte
}

// Status returns the status of the response,
// keeping the received reason phrase.
func (r *Response) Status() status.Status {
	return status.Status{Code: uint(r.StatusCode), ReasonPhrase: r.ReasonPhrase}
}

// [Major, Minor]
type Version [2]uint

// Request message version for each supported scheme.
// Filled once at package initialization and only read afterwards.
var versions = map[uri.Scheme]Version{
	uri.SchemeHTTP: {1, 1},
}

// VersionFor returns the protocol version requests of scheme s are sent with.
func VersionFor(s uri.Scheme) (Version, bool) {
	v, ok := versions[s]
	return v, ok
}

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	// Get major and minor version.
	first, second, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot seperator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 64)
	minor, err2 := strconv.ParseUint(string(second), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	b := make([]byte, 0, 8)
	b = append(b, "HTTP/"...)
	b = strconv.AppendUint(b, uint64(ver[0]), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(ver[1]), 10)
	return b
}

func (ver Version) String() string { return string(ver.Text()) }

// Field is a single header line.
//
// A field made by [RawField] is written exactly as the caller gave it.
// Name and Value are still filled on a best-effort basis so it can be inspected.
type Field struct {
	Name, Value string

	raw string
}

func NewField(name, value string) Field {
	return Field{Name: name, Value: value}
}

// RawField keeps line verbatim, including its line terminator if any.
func RawField(line string) Field {
	name, value, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ":")
	return Field{
		Name:  strings.TrimSpace(name),
		Value: strings.Trim(value, string(rule.OWS)),
		raw:   line,
	}
}

// ParseField parses a received field line (without its line terminator).
func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", string(fieldLine))
	}

	if len(name) == 0 {
		return Field{}, errors.New("field name is empty")
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if rule.IsOWS(name[0]) || rule.IsOWS(name[len(name)-1]) {
		return Field{}, errors.New("field name has surrounding whitespace")
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(rule.OWS))

	return Field{Name: string(name), Value: string(value)}, nil
}

func (f Field) IsRaw() bool { return f.raw != "" }

// Text returns the field line without line terminator.
// Raw fields are returned as given.
func (f Field) Text() []byte {
	if f.IsRaw() {
		return []byte(f.raw)
	}
	b := make([]byte, 0, len(f.Name)+2+len(f.Value))
	b = append(b, f.Name...)
	b = append(b, ": "...)
	b = append(b, f.Value...)
	return b
}

// Headers keeps fields in wire order. Duplicates are allowed.
type Headers []Field

// Get returns the value of the first field named key.
// Field names are case-insensitive.
func (h Headers) Get(key string) (value string, ok bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, key) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns the values of every field named key, in order.
func (h Headers) Values(key string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, key) {
			values = append(values, f.Value)
		}
	}
	return values
}

func (h Headers) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}
