// Package uri turns absolute "scheme://authority/path" strings into an [Address]
// a client can connect to.
//
// Only the subset of RFC 3986 that a request-line client needs is understood:
// there is no userinfo, query or fragment handling, and the path is kept verbatim.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986#section-3
//
// - https://datatracker.ietf.org/doc/html/rfc9110#section-4.2.1
package uri
