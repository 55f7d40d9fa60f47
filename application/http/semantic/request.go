// Package semantic turns a parsed address and caller input into a request message.
package semantic

import (
	"strconv"
	"strings"

	"minicurl/application/http"
	"minicurl/application/util/rule"
	"minicurl/application/util/uri"

	"github.com/pkg/errors"
)

const (
	UserAgent          = "minicurl/1.0"
	DefaultAccept      = "*/*"
	DefaultContentType = "application/json"
)

var (
	ErrNoProtocolVersion = errors.New("no protocol version for scheme")
	ErrInvalidMethod     = errors.New("method is not a valid token")
)

// BuildRequest builds the request message for addr.
//
// Fields come in this order:
//   - Host, User-Agent, Accept, Connection: close
//   - for POST and PUT, the caller's raw header lines verbatim,
//     or Content-Type: application/json when the caller gives none
//   - Content-Length, only when body is non-nil
//
// Header lines of other methods are not sent.
// Blank lines are skipped but still count as given.
// A raw Content-Length line is dropped when body is non-nil
// so the computed one is the only one and the last one.
func BuildRequest(addr uri.Address, method string, headers []string, body *string) (http.Request, error) {
	ver, ok := http.VersionFor(addr.Scheme)
	if !ok {
		return http.Request{}, errors.Wrapf(ErrNoProtocolVersion, "%q", addr.Scheme)
	}

	if !rule.IsValidToken(method) {
		return http.Request{}, errors.Wrapf(ErrInvalidMethod, "%q", method)
	}

	fields := make(http.Headers, 0, 6+len(headers))
	fields = append(fields,
		http.NewField("Host", hostValue(addr.Host)),
		http.NewField("User-Agent", UserAgent),
		http.NewField("Accept", DefaultAccept),
		http.NewField("Connection", "close"),
	)

	if Method(method).carriesContentType() {
		if len(headers) > 0 {
			fields = append(fields, rawFields(headers, body != nil)...)
		} else {
			fields = append(fields, http.NewField("Content-Type", DefaultContentType))
		}
	}

	request := http.Request{
		RequestLine: http.RequestLine{
			Method:  method,
			Target:  addr.Path,
			Version: ver,
		},
	}

	if body != nil {
		request.Body = []byte(*body)
		fields = append(fields, http.NewField("Content-Length", strconv.Itoa(len(request.Body))))
	}

	request.Headers = fields

	return request, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-7.2
func hostValue(host string) string {
	if strings.Contains(host, ":") {
		// IPv6 literal.
		return "[" + host + "]"
	}
	return host
}

func rawFields(lines []string, hasBody bool) http.Headers {
	fields := make(http.Headers, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			// An empty line would end the header section early.
			continue
		}

		f := http.RawField(line)
		if hasBody && strings.EqualFold(f.Name, "Content-Length") {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
