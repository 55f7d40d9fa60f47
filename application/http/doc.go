// Package http implements the HTTP/1.1 message syntax a single-shot client needs:
// request serialization and response parsing with Content-Length or
// close-delimited framing.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
