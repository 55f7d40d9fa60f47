package semantic

type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

// DefaultMethod is used when the caller does not name one.
const DefaultMethod = MethodGet

// carriesContentType reports whether requests of m get a default Content-Type
// when the caller gives no header of its own.
// Method names are case-sensitive.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.1-5
func (m Method) carriesContentType() bool {
	return m == MethodPost || m == MethodPut
}

// ExpectsBody reports whether a response to m may carry a body.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.3.2
func (m Method) ExpectsBody() bool { return m != MethodHead }
