package middleware

import (
	"strconv"
	"strings"

	"github.com/ignis-web/ignis/http"
)

// CORSConfig configures the built-in CORS middleware.
//
// Grounded on original_source/include/middleware/cors/CorsConfig.h
// (allowedOrigins/allowedMethods/allowedHeaders/allowCredentials/maxAge,
// same defaults).
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig mirrors CorsConfig::defaultConfig().
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}
}

// CORS implements the CORS preflight contract: Before intercepts OPTIONS
// requests and answers them directly without reaching the router; After
// attaches the Access-Control-* headers to every other response, and to
// a preflight response Before already built if it's the one running
// After on it (Testable Property 4 runs After for the middleware whose
// own Before produced the early response) — addHeaders is idempotent so
// that rerun is a no-op rather than a duplicate header line.
//
// Grounded on original_source/src/middleware/cors/CorsMiddleware.cc.
type CORS struct {
	cfg CORSConfig
}

// NewCORS returns a CORS middleware with the given configuration.
func NewCORS(cfg CORSConfig) *CORS {
	return &CORS{cfg: cfg}
}

func (c *CORS) Before(req *http.Request) Result {
	if req.Method != http.OPTIONS {
		return Continue
	}

	if !c.originAllowed(req.Headers.Value("Origin")) {
		return Respond(http.NewResponse().Code(http.StatusForbidden, "Forbidden"))
	}

	resp := http.NewResponse().Code(http.StatusNoContent, "No Content")
	c.addHeaders(resp)
	return Respond(resp)
}

func (c *CORS) After(req *http.Request, resp *http.Response) error {
	c.addHeaders(resp)
	return nil
}

// resolvedOrigin is the value every Access-Control-Allow-Origin header
// carries: the wildcard if the allow-list grants it, otherwise the first
// configured origin. It never echoes the request's Origin header — scenario
// S4 requires the literal resolved value, not an echo.
func (c *CORS) resolvedOrigin() (origin string, ok bool) {
	if len(c.cfg.AllowedOrigins) == 0 {
		return "", false
	}

	if c.allowsWildcard() {
		return "*", true
	}

	return c.cfg.AllowedOrigins[0], true
}

// originAllowed reports whether origin may receive a preflight grant: an
// empty allow-list means unrestricted, as does the presence of "*".
func (c *CORS) originAllowed(origin string) bool {
	if len(c.cfg.AllowedOrigins) == 0 {
		return true
	}

	for _, allowed := range c.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

func (c *CORS) allowsWildcard() bool {
	for _, allowed := range c.cfg.AllowedOrigins {
		if allowed == "*" {
			return true
		}
	}

	return false
}

// addHeaders attaches the Access-Control-* headers, resolving the origin
// itself so Before (preflight) and After (passthrough) always agree on
// the same literal value. It is idempotent: if the response already
// carries Access-Control-Allow-Origin — because Before already answered
// this exact request and After is now running on the very same response,
// per Testable Property 4 — it does nothing, rather than appending a
// second, conflicting header line.
func (c *CORS) addHeaders(resp *http.Response) {
	if resp.Headers.Has("Access-Control-Allow-Origin") {
		return
	}

	origin, ok := c.resolvedOrigin()
	if !ok {
		return
	}

	resp.Header("Access-Control-Allow-Origin", origin)

	if c.cfg.AllowCredentials {
		resp.Header("Access-Control-Allow-Credentials", "true")
	}

	if len(c.cfg.AllowedMethods) > 0 {
		resp.Header("Access-Control-Allow-Methods", strings.Join(c.cfg.AllowedMethods, ", "))
	}

	if len(c.cfg.AllowedHeaders) > 0 {
		resp.Header("Access-Control-Allow-Headers", strings.Join(c.cfg.AllowedHeaders, ", "))
	}

	resp.Header("Access-Control-Max-Age", strconv.Itoa(c.cfg.MaxAge))
}
