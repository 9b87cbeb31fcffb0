// Package middleware implements the before/after pipeline the server runs
// every request through ahead of and after routing. Dispatch order is
// forward registration order for before, reverse for after; an early
// Respond from before skips routing and every before call that hasn't run
// yet, and after errors are logged and swallowed rather than propagated.
//
// Grounded on original_source/src/middleware/MiddlewareChain.cc for the
// forward/reverse order and the swallowed-after-error behavior. The
// original signals an early exit by throwing a fully-formed response;
// Go has no analogous cheap control-flow exception, and REDESIGN FLAGS
// mandate replacing it with an explicit Result value instead of a
// panic/recover imitation of C++ exceptions.
package middleware

import (
	"github.com/ignis-web/ignis/http"
	"github.com/ignis-web/ignis/log"
)

// Result is what Before returns: either Continue, letting the chain and
// then the router run, or Respond, which adopts resp immediately and
// skips both routing and every Before call that has not run yet.
type Result struct {
	respond  bool
	response *http.Response
}

// Continue lets the chain proceed to the next middleware, then the router.
var Continue = Result{}

// Respond short-circuits the chain: resp is sent as-is and the remaining
// Before calls, along with routing, are skipped.
func Respond(resp *http.Response) Result {
	return Result{respond: true, response: resp}
}

// Responded reports whether this Result carries an early response.
func (r Result) Responded() (*http.Response, bool) {
	return r.response, r.respond
}

// Middleware is a single link in the chain.
type Middleware interface {
	// Before runs in forward registration order before routing.
	Before(req *http.Request) Result
	// After runs in reverse registration order once a response exists
	// (either from routing or from an earlier Before's early exit). A
	// returned error is logged and swallowed — it never aborts the chain.
	After(req *http.Request, resp *http.Response) error
}

// Chain holds an ordered set of Middleware and runs the before/after
// pipeline around a single request.
type Chain struct {
	middlewares []Middleware
}

// New returns an empty Chain.
func New() *Chain {
	return &Chain{}
}

// Use appends middleware to the chain, in registration order.
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// RunBefore invokes Before on each middleware in registration order. It
// stops at the first early Respond and reports that response; ran is the
// index of the last middleware whose Before actually ran (inclusive) and
// must be passed to RunAfter, so that After only runs for middlewares
// whose Before fired. If every middleware continues, ok is false and the
// caller proceeds to routing, with ran covering the whole chain.
func (c *Chain) RunBefore(req *http.Request) (resp *http.Response, ran int, ok bool) {
	for i, m := range c.middlewares {
		if resp, respond := m.Before(req).Responded(); respond {
			return resp, i, true
		}
	}

	return nil, len(c.middlewares) - 1, false
}

// RunAfter invokes After, in reverse order, on every middleware from ran
// down to 0 — the subset whose Before actually ran, per RunBefore's
// return. Errors are logged and swallowed so that middlewares registered
// earlier still observe the response.
func (c *Chain) RunAfter(req *http.Request, resp *http.Response, ran int) {
	for i := ran; i >= 0; i-- {
		if err := c.middlewares[i].After(req, resp); err != nil {
			log.Errorf("middleware: after hook failed: %v", err)
		}
	}
}
