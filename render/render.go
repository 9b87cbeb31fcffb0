// Package render serializes an http.Response into wire bytes, in the fixed
// field order the server's design specifies: status line, Connection
// header, user headers in insertion order, a blank line, then the body
// verbatim.
//
// Grounded on original_source/src/http/HttpResponse.cc::appendToBuffer for
// the field order and the Connection-header special case, and on the
// teacher's byte-buffer-append style (no intermediate string
// concatenation — each field is appended straight into the destination).
package render

import "github.com/ignis-web/ignis/http"

// AppendTo serializes resp and appends the result to dst, returning the
// grown slice. The status line always reads "HTTP/1.1", regardless of the
// request's negotiated version — a deliberate simplification carried over
// unchanged.
func AppendTo(dst []byte, resp *http.Response) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = appendInt(dst, resp.StatusCode)
	dst = append(dst, ' ')
	dst = append(dst, resp.StatusMessage...)
	dst = append(dst, "\r\n"...)

	if resp.CloseConnection {
		dst = append(dst, "Connection: close\r\n"...)
	} else {
		dst = append(dst, "Connection: Keep-Alive\r\n"...)
	}

	for key, value := range resp.Headers.Iter() {
		dst = append(dst, key...)
		dst = append(dst, ": "...)
		dst = append(dst, value...)
		dst = append(dst, "\r\n"...)
	}

	dst = append(dst, "\r\n"...)
	dst = append(dst, resp.Body...)

	return dst
}

// Bytes is a convenience wrapper around AppendTo for callers that don't
// already hold a reusable buffer.
func Bytes(resp *http.Response) []byte {
	return AppendTo(nil, resp)
}

func appendInt(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, '0')
	}

	if n < 0 {
		dst = append(dst, '-')
		n = -n
	}

	start := len(dst)
	for n > 0 {
		dst = append(dst, byte('0'+n%10))
		n /= 10
	}

	for l, r := start, len(dst)-1; l < r; l, r = l+1, r-1 {
		dst[l], dst[r] = dst[r], dst[l]
	}

	return dst
}
