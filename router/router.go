// Package router implements the four-table exact/regex dispatcher: an
// exact-match handler table, an exact-match callback table, and two
// insertion-ordered regex lists (handler, then callback). Route tries
// them in that fixed order and returns on the first match.
//
// Grounded on original_source/src/router/Router.cc for the precedence
// order and the ":name" → "([^/]+)" path-pattern translation, and on the
// teacher's router/inbuilt/groups.go for the Group/prefix-inheritance
// shape. Path compilation uses the standard regexp package rather than
// the teacher's own radix/dynmatch matchers, which implement a different
// (longest-match) precedence model than the strict insertion order this
// router is specified against.
package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ignis-web/ignis/http"
)

// Handler is the object-style route target: a value (possibly holding its
// own state) that handles a matched request.
type Handler interface {
	Handle(req *http.Request) *http.Response
}

// HandlerFunc is the function-style route target.
type HandlerFunc func(req *http.Request) *http.Response

type routeKey struct {
	method http.Method
	path   string
}

type regexRoute struct {
	method  http.Method
	pattern *regexp.Regexp
	handler Handler
}

type regexCallbackRoute struct {
	method  http.Method
	pattern *regexp.Regexp
	handler HandlerFunc
}

// tables is the shared state every Router produced via Group ultimately
// dispatches through — groups differ only in the prefix applied at
// registration time, never in a private copy of the tables themselves.
type tables struct {
	exactHandlers  map[routeKey]Handler
	exactCallbacks map[routeKey]HandlerFunc
	regexHandlers  []regexRoute
	regexCallbacks []regexCallbackRoute
}

// Router is the entry point for route registration and dispatch. The
// zero value is not usable; construct with New.
type Router struct {
	prefix string
	t      *tables
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		t: &tables{
			exactHandlers:  make(map[routeKey]Handler),
			exactCallbacks: make(map[routeKey]HandlerFunc),
		},
	}
}

// Group returns a sub-router that shares this Router's tables but
// prefixes every path registered through it with prefix. Middleware
// composition is out of this package's scope — middleware chains are
// assembled at the server level, not per route group.
func (r *Router) Group(prefix string) *Router {
	return &Router{prefix: r.prefix + prefix, t: r.t}
}

// RegisterHandler performs an exact-match registration. A later call for
// the same (method, path) overwrites the earlier one.
func (r *Router) RegisterHandler(method http.Method, path string, handler Handler) {
	r.t.exactHandlers[routeKey{method, r.prefix + path}] = handler
}

// RegisterCallback performs an exact-match registration of a function
// handler.
func (r *Router) RegisterCallback(method http.Method, path string, cb HandlerFunc) {
	r.t.exactCallbacks[routeKey{method, r.prefix + path}] = cb
}

// AddRegexHandler compiles pathPattern (a literal path containing zero or
// more ":name" segments) into an anchored full-match regex and appends an
// object-style route to the regex handler list. Insertion order defines
// precedence among regex routes.
func (r *Router) AddRegexHandler(method http.Method, pathPattern string, handler Handler) {
	r.t.regexHandlers = append(r.t.regexHandlers, regexRoute{
		method:  method,
		pattern: compilePattern(r.prefix + pathPattern),
		handler: handler,
	})
}

// AddRegexCallback is AddRegexHandler's function-style counterpart.
func (r *Router) AddRegexCallback(method http.Method, pathPattern string, cb HandlerFunc) {
	r.t.regexCallbacks = append(r.t.regexCallbacks, regexCallbackRoute{
		method:  method,
		pattern: compilePattern(r.prefix + pathPattern),
		handler: cb,
	})
}

// Route attempts, in order, the exact handler table, the exact callback
// table, the regex handler list, and the regex callback list. The first
// match wins. For a regex match the request is cloned and its PathParams
// populated with both positional keys ("param1", "param2", …, in capture
// order) and, for named groups, the ":name" key itself — additive, so
// callers relying on either scheme keep working. Returns the response and
// true on a match, or (nil, false) if nothing matched.
func (r *Router) Route(req *http.Request) (*http.Response, bool) {
	key := routeKey{req.Method, req.Path}

	if h, ok := r.t.exactHandlers[key]; ok {
		return h.Handle(req), true
	}

	if cb, ok := r.t.exactCallbacks[key]; ok {
		return cb(req), true
	}

	for _, route := range r.t.regexHandlers {
		if route.method != req.Method {
			continue
		}

		if m := route.pattern.FindStringSubmatch(req.Path); m != nil {
			return route.handler.Handle(withCaptures(req, route.pattern, m)), true
		}
	}

	for _, route := range r.t.regexCallbacks {
		if route.method != req.Method {
			continue
		}

		if m := route.pattern.FindStringSubmatch(req.Path); m != nil {
			return route.handler(withCaptures(req, route.pattern, m)), true
		}
	}

	return nil, false
}

// withCaptures clones req and fills in PathParams from a regex match:
// positional "paramN" keys for every capture group, plus the group's own
// name (from a ":name" segment) when it has one.
func withCaptures(req *http.Request, pattern *regexp.Regexp, match []string) *http.Request {
	clone := req.Clone()
	names := pattern.SubexpNames()

	for i := 1; i < len(match); i++ {
		clone.PathParams.Add("param"+strconv.Itoa(i), match[i])

		if i < len(names) && names[i] != "" {
			clone.PathParams.Add(names[i], match[i])
		}
	}

	return clone
}

var paramSegment = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// compilePattern turns "/users/:id" into an anchored, full-match regex
// with one named capture group per ":name" segment.
func compilePattern(pathPattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pathPattern)

	replaced := paramSegment.ReplaceAllStringFunc(escaped, func(seg string) string {
		name := strings.TrimPrefix(seg, ":")
		return "(?P<" + name + ">[^/]+)"
	})

	return regexp.MustCompile("^" + replaced + "$")
}
