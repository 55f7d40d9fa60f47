package uri

import "strings"

type Scheme string

const SchemeHTTP Scheme = "http"

// Both tables are filled once at package initialization and only read afterwards.
var (
	supportedSchemes = map[string]Scheme{
		"http": SchemeHTTP,
	}
	defaultPorts = map[Scheme]uint16{
		SchemeHTTP: 80,
	}
)

// LookupScheme finds the supported scheme for token.
// Schemes are case-insensitive.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.1
func LookupScheme(token string) (Scheme, bool) {
	s, ok := supportedSchemes[strings.ToLower(token)]
	return s, ok
}

// DefaultPort returns the port used when a URL of scheme s omits one.
func DefaultPort(s Scheme) uint16 { return defaultPorts[s] }

func (s Scheme) String() string { return string(s) }
