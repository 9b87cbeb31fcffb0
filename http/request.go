package http

import (
	"strings"
	"time"

	"github.com/ignis-web/ignis/kv"
)

// Request is an owned, per-connection value the parser fills in
// incrementally and the server hands to the middleware chain and router
// once a full message has arrived. Callers that need to retain a Request
// beyond the handler call that received it (e.g. a regex route cloning it
// to attach path params) must Clone it first.
type Request struct {
	Method        Method
	Version       Version
	Path          string
	PathParams    *kv.Storage
	QueryParams   *kv.Storage
	Headers       *kv.Storage
	Body          []byte
	ContentLength int
	ReceiveTime   time.Time

	// Encrypted reports whether this request arrived over a SecureConn.
	Encrypted bool

	// values carries request-scoped, handler/middleware-visible state —
	// the DB pool handle, a resolved Session, and the like. It plays the
	// role an explicit context argument would in a language with one;
	// Go's http ecosystem conventionally hangs this off the request
	// itself rather than a separate parameter threaded everywhere.
	values map[any]any
}

// NewRequest returns a zero Request ready for the parser to fill in.
func NewRequest() *Request {
	return &Request{
		PathParams:  kv.New(),
		QueryParams: kv.New(),
		Headers:     kv.New(),
	}
}

// Reset returns the Request to its pre-parse state, ready for the next
// message on the same connection. Called by reqparser.Context.Reset after
// dispatch.
func (r *Request) Reset() {
	r.Method = Invalid
	r.Version = VersionUnknown
	r.Path = ""
	r.PathParams.Clear()
	r.QueryParams.Clear()
	r.Headers.Clear()
	r.Body = r.Body[:0]
	r.ContentLength = 0
	r.ReceiveTime = time.Time{}
	r.values = nil
}

// Clone returns a deep copy, used by the router when attaching
// regex-captured path parameters so that concurrent handling of the
// "live" request object on the connection's goroutine is unaffected.
func (r *Request) Clone() *Request {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)

	clone := &Request{
		Method:        r.Method,
		Version:       r.Version,
		Path:          r.Path,
		PathParams:    r.PathParams.Clone(),
		QueryParams:   r.QueryParams.Clone(),
		Headers:       r.Headers.Clone(),
		Body:          body,
		ContentLength: r.ContentLength,
		ReceiveTime:   r.ReceiveTime,
		Encrypted:     r.Encrypted,
	}

	for k, v := range r.values {
		clone.setValue(k, v)
	}

	return clone
}

// Value looks up request-scoped state stashed by the server or a
// middleware — the DB pool handle, a resolved session, and the like.
func (r *Request) Value(key any) any {
	if r.values == nil {
		return nil
	}

	return r.values[key]
}

func (r *Request) setValue(key, value any) {
	if r.values == nil {
		r.values = make(map[any]any)
	}

	r.values[key] = value
}

// WithValue attaches a request-scoped value and returns the request for
// chaining, mirroring how middleware typically augment a request in place.
func (r *Request) WithValue(key, value any) *Request {
	r.setValue(key, value)
	return r
}

// Cookie extracts the value of the named cookie from the Cookie header, per
// the "key=value; key2=value2" wire format. Returns "" if absent.
func (r *Request) Cookie(name string) string {
	raw, ok := r.Headers.Get("Cookie")
	if !ok {
		return ""
	}

	for len(raw) > 0 {
		var part string
		if semi := strings.IndexByte(raw, ';'); semi != -1 {
			part, raw = raw[:semi], raw[semi+1:]
		} else {
			part, raw = raw, ""
		}

		part = strings.TrimLeft(part, " ")

		eq := strings.IndexByte(part, '=')
		if eq == -1 {
			continue
		}

		if part[:eq] == name {
			return part[eq+1:]
		}
	}

	return ""
}
