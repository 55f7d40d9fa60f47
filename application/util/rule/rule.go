package rule

// Lexical elements shared by the HTTP/1.1 message grammar.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-1.2
const (
	CR   byte = '\r'
	LF   byte = '\n'
	SP   byte = ' '
	HTAB byte = '\t'
)

var (
	OWS  = []byte{SP, HTAB}
	CRLF = []byte{CR, LF}
)

// IsOWS reports whether c is optional whitespace (SP or HTAB).
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.3
func IsOWS(c byte) bool { return c == SP || c == HTAB }

func IsAlpha(r rune) bool { return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') }
func IsDigit(r rune) bool { return '0' <= r && r <= '9' }

// HasLineTerminator reports whether b already ends in LF (and so in CRLF as well).
func HasLineTerminator(b []byte) bool {
	return len(b) > 0 && b[len(b)-1] == LF
}
