package http

import "github.com/ignis-web/ignis/kv"

// Response is the typed container a handler or middleware builds and the
// render package serializes onto the wire. StatusCode zero means "unknown"
// — the server treats that as a bug in whatever produced the Response and
// falls back to 500 rather than writing a headerless status line.
type Response struct {
	Version         Version
	StatusCode      int
	StatusMessage   string
	CloseConnection bool
	Headers         *kv.Storage
	Body            []byte
}

// NewResponse returns a Response with its Headers store ready to use and
// statusCode left at 0 (unknown) until the caller sets one — the unset
// state middleware/handlers are expected to fill in with Code/Status.
func NewResponse() *Response {
	return &Response{
		Version: HTTP11,
		Headers: kv.New(),
	}
}

func (r *Response) Code(code int, message string) *Response {
	r.StatusCode = code
	r.StatusMessage = message
	return r
}

func (r *Response) Header(key, value string) *Response {
	r.Headers.Add(key, value)
	return r
}

func (r *Response) SetContentType(ct ContentType) *Response {
	return r.Header("Content-Type", string(ct))
}

func (r *Response) String(body string) *Response {
	r.Body = []byte(body)
	return r
}

func (r *Response) Bytes(body []byte) *Response {
	r.Body = body
	return r
}

func (r *Response) Close() *Response {
	r.CloseConnection = true
	return r
}

// Clone returns an independent copy — used when a built-in response (e.g.
// a default 404/500) is returned from a shared package-level template.
func (r *Response) Clone() *Response {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)

	return &Response{
		Version:         r.Version,
		StatusCode:      r.StatusCode,
		StatusMessage:   r.StatusMessage,
		CloseConnection: r.CloseConnection,
		Headers:         r.Headers.Clone(),
		Body:            body,
	}
}

// well-known status codes used directly by this core (parser failures,
// router misses, handler panics, CORS). Handlers are free to set any
// other code via Code(...).
const (
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case StatusNoContent:
		return "No Content"
	case StatusBadRequest:
		return "Bad Request"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return ""
	}
}

// NewStatusResponse builds a Response carrying only a status line — used
// for the server's own synthesized 400/404/500 responses.
func NewStatusResponse(code int, closeConnection bool) *Response {
	r := NewResponse()
	r.Code(code, statusText(code))
	r.CloseConnection = closeConnection
	return r
}
