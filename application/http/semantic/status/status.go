// Package status holds the registry of HTTP status codes and their canonical reason phrases.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15
package status

import "strconv"

type Status struct {
	Code         uint
	ReasonPhrase string
}

type Class uint

const (
	ClassUnknown Class = iota
	ClassInformational
	ClassSuccessful
	ClassRedirection
	ClassClientError
	ClassServerError
)

// Informational 1XX
var (
	Continue           = add(Status{100, "Continue"})
	SwitchingProtocols = add(Status{101, "Switching Protocols"})
)

// Successful 2XX
var (
	OK                   = add(Status{200, "OK"})
	Created              = add(Status{201, "Created"})
	Accepted             = add(Status{202, "Accepted"})
	NonAuthoritativeInfo = add(Status{203, "Non-Authoritative Information"})
	NoContent            = add(Status{204, "No Content"})
	ResetContent         = add(Status{205, "Reset Content"})
	PartialContent       = add(Status{206, "Partial Content"})
)

// Redirection 3xx
var (
	MultipleChoices   = add(Status{300, "Multiple Choices"})
	MovedPermanently  = add(Status{301, "Moved Permanently"})
	Found             = add(Status{302, "Found"})
	SeeOther          = add(Status{303, "See Other"})
	NotModified       = add(Status{304, "Not Modified"})
	UseProxy          = add(Status{305, "Use Proxy"})
	TemporaryRedirect = add(Status{307, "Temporary Redirect"})
	PermanentRedirect = add(Status{308, "Permanent Redirect"})
)

// Client Error 4xx
var (
	BadRequest           = add(Status{400, "Bad Request"})
	Unauthorized         = add(Status{401, "Unauthorized"})
	PaymentRequired      = add(Status{402, "Payment Required"})
	Forbidden            = add(Status{403, "Forbidden"})
	NotFound             = add(Status{404, "Not Found"})
	MethodNotAllowed     = add(Status{405, "Method Not Allowed"})
	NotAcceptable        = add(Status{406, "Not Acceptable"})
	ProxyAuthRequired    = add(Status{407, "Proxy Authentication Required"})
	RequestTimeout       = add(Status{408, "Request Timeout"})
	Conflict             = add(Status{409, "Conflict"})
	Gone                 = add(Status{410, "Gone"})
	LengthRequired       = add(Status{411, "Length Required"})
	PreconditionFailed   = add(Status{412, "Precondition Failed"})
	ContentTooLarge      = add(Status{413, "Content Too Large"})
	URITooLong           = add(Status{414, "URI Too Long"})
	UnsupportedMediaType = add(Status{415, "Unsupported Media Type"})
	RangeNotSatisfiable  = add(Status{416, "Range Not Satisfiable"})
	ExpectationFailed    = add(Status{417, "Expectation Failed"})
	MisdirectedRequest   = add(Status{421, "Misdirected Request"})
	UnprocessableContent = add(Status{422, "Unprocessable Content"})
	UpgradeRequired      = add(Status{426, "Upgrade Required"})
	TooManyRequests      = add(Status{429, "Too Many Requests"})
)

// Server Error 5xx
var (
	InternalServerError     = add(Status{500, "Internal Server Error"})
	NotImplemented          = add(Status{501, "Not Implemented"})
	BadGateway              = add(Status{502, "Bad Gateway"})
	ServiceUnavailable      = add(Status{503, "Service Unavailable"})
	GatewayTimeout          = add(Status{504, "Gateway Timeout"})
	HTTPVersionNotSupported = add(Status{505, "HTTP Version Not Supported"})
)

// Registered while package variables are initialized, read-only afterwards.
var registry = make(map[uint]Status)

func add(status Status) Status {
	registry[status.Code] = status
	return status
}

// FromCode returns the registered status for code.
// An unregistered code comes back with an empty reason phrase and ok == false.
func FromCode(code uint) (status Status, ok bool) {
	s, ok := registry[code]
	if !ok {
		return Status{Code: code}, false
	}
	return s, true
}

// Canonical returns s with the registered reason phrase, if code is registered.
func (s Status) Canonical() Status {
	if known, ok := FromCode(s.Code); ok {
		return known
	}
	return s
}

func (s Status) Class() Class {
	switch s.Code / 100 {
	case 1:
		return ClassInformational
	case 2:
		return ClassSuccessful
	case 3:
		return ClassRedirection
	case 4:
		return ClassClientError
	case 5:
		return ClassServerError
	}
	return ClassUnknown
}

func (s Status) IsSuccessful() bool { return s.Class() == ClassSuccessful }

func (s Status) String() string {
	if s.ReasonPhrase == "" {
		return strconv.FormatUint(uint64(s.Code), 10)
	}
	return strconv.FormatUint(uint64(s.Code), 10) + " " + s.ReasonPhrase
}
