package session

import (
	"github.com/ignis-web/ignis/http"
	"github.com/ignis-web/ignis/middleware"
)

type contextKey struct{}

// Key is the request-value key a resolved *Session is stored under.
var Key contextKey

// Middleware resolves a Session from the sessionId cookie on Before,
// attaches it to the request, and writes back a refreshed Set-Cookie
// header on After. Handlers that don't care about sessions can simply
// ignore it — it never short-circuits the chain.
type Middleware struct {
	manager *Manager
}

// NewMiddleware wraps manager as a middleware.Middleware.
func NewMiddleware(manager *Manager) *Middleware {
	return &Middleware{manager: manager}
}

func (m *Middleware) Before(req *http.Request) middleware.Result {
	s, _ := m.manager.Resolve(req.Cookie("sessionId"))
	req.WithValue(Key, s)
	return middleware.Continue
}

func (m *Middleware) After(req *http.Request, resp *http.Response) error {
	s, ok := req.Value(Key).(*Session)
	if !ok {
		return nil
	}

	resp.Header("Set-Cookie", SetCookieHeader(s.ID()))
	return nil
}

// FromRequest returns the Session Middleware attached to req, or nil if
// no session middleware ran.
func FromRequest(req *http.Request) *Session {
	s, _ := req.Value(Key).(*Session)
	return s
}
