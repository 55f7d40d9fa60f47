package uri

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Address is where a request goes. Path always starts with "/".
type Address struct {
	Scheme Scheme
	Host   string
	Port   uint16
	Path   string
}

// HostPort returns "host:port", bracketing IPv6 hosts.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

func (a Address) String() string {
	b := new(strings.Builder)
	b.WriteString(a.Scheme.String())
	b.WriteString("://")
	if a.Port == DefaultPort(a.Scheme) {
		if strings.Contains(a.Host, ":") {
			b.WriteString("[" + a.Host + "]")
		} else {
			b.WriteString(a.Host)
		}
	} else {
		b.WriteString(a.HostPort())
	}
	b.WriteString(a.Path)
	return b.String()
}

// Parse parses raw in the form "scheme://host[:port]/path".
//
// A URL without any path (e.g. "http://example.com") is rejected with [ErrMalformedURL].
// Errors are [*ParseError] wrapping one of the ErrXxx values of this package.
func Parse(raw string) (Address, error) {
	token, rest, found := strings.Cut(raw, "://")
	if !found {
		return Address{}, parseError(raw, errors.Wrap(ErrMalformedURL, `missing "://"`))
	}

	scheme, ok := LookupScheme(token)
	if !ok {
		return Address{}, parseError(raw, errors.Wrapf(ErrUnsupportedScheme, "%q", token))
	}

	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return Address{}, parseError(raw, errors.Wrap(ErrMalformedURL, "missing path"))
	}
	authority, path := rest[:idx], rest[idx:]

	host, port, err := splitAuthority(authority, scheme)
	if err != nil {
		return Address{}, parseError(raw, err)
	}

	return Address{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

func splitAuthority(authority string, scheme Scheme) (host string, port uint16, err error) {
	host, rawPort, hasPort := authority, "", false

	if strings.HasPrefix(authority, "[") {
		// IP-literal.
		// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.2.2
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, errors.Wrap(ErrMalformedURL, "unterminated IP literal")
		}
		host = authority[1:end]
		switch after := authority[end+1:]; {
		case after == "":
		case after[0] == ':':
			rawPort, hasPort = after[1:], true
		default:
			return "", 0, errors.Wrapf(ErrMalformedURL, "unexpected %q after IP literal", after)
		}
	} else if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		host, rawPort, hasPort = authority[:idx], authority[idx+1:], true
	}

	if host == "" {
		return "", 0, ErrEmptyHost
	}

	if !hasPort {
		return host, DefaultPort(scheme), nil
	}

	port64, err := strconv.ParseUint(rawPort, 10, 16)
	if err != nil {
		return "", 0, errors.Wrapf(ErrInvalidPort, "%q", rawPort)
	}

	return host, uint16(port64), nil
}
