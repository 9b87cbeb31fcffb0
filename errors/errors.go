// Package errors defines the server's error taxonomy as plain sentinel
// values, wrapped at each call site with fmt.Errorf("%w") rather than a
// third-party errors-wrapping library.
//
// Grounded on the teacher's own errors/errors.go (flat sentinel-value
// list, no custom Error type hierarchy) — the distilled spec calls for
// github.com/pkg/errors-style wrapping, which the retrieval pack never
// imports anywhere; this module follows the teacher's own convention
// instead, per SPEC_FULL §7.
package errors

import "errors"

var (
	// ErrParseSyntax is returned when a request fails to parse — the
	// server responds 400 and closes the connection.
	ErrParseSyntax = errors.New("malformed request")

	// ErrNoRoute is returned when no router entry matches a request —
	// the server responds 404.
	ErrNoRoute = errors.New("no matching route")

	// ErrHandler wraps a panic recovered from a handler or middleware —
	// the server responds 500.
	ErrHandler = errors.New("handler error")

	// ErrMiddlewareEarlyResponse marks a response produced by a
	// middleware's early exit rather than by routing.
	ErrMiddlewareEarlyResponse = errors.New("middleware responded early")

	// ErrTLSProtocol classifies a TLS engine failure as a protocol-level
	// error (bad record header, alert, certificate issue) rather than a
	// transient condition.
	ErrTLSProtocol = errors.New("tls protocol error")

	// ErrTLSWantMore marks a TLS engine state that simply needs more
	// ciphertext before it can proceed — never logged as a failure.
	ErrTLSWantMore = errors.New("tls engine wants more data")
)
