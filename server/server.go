// Package server wires the reactor, TLS bridge, request parser, router
// and middleware chain into the connection lifecycle the distilled
// spec's §4.6 describes: onConnect creates per-connection state,
// onMessage parses and dispatches, onClose tears the state down.
//
// Grounded on original_source/src/http/HttpServer.cc::onConnection/
// onMessage/onRequest for the lifecycle (the dangling-semicolon bug at
// onMessage's parseRequest check is deliberately NOT reproduced, per
// DESIGN.md's open-question resolution — a 400 is sent if and only if
// Parse reports ok=false), and on the teacher's internal/server/tcp
// for the accept-loop/per-connection-goroutine shape realized by the
// reactor package this server is built on top of.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ignis-web/ignis/config"
	"github.com/ignis-web/ignis/dbpool"
	ierrors "github.com/ignis-web/ignis/errors"
	"github.com/ignis-web/ignis/http"
	"github.com/ignis-web/ignis/log"
	"github.com/ignis-web/ignis/middleware"
	"github.com/ignis-web/ignis/reactor"
	"github.com/ignis-web/ignis/render"
	"github.com/ignis-web/ignis/reqparser"
	"github.com/ignis-web/ignis/router"
	"github.com/ignis-web/ignis/tlsbridge"
)

type dbKey struct{}

// DBKey is the request-value key the pool handle is attached under, when
// one is configured. Handlers read it via req.Value(server.DBKey).
var DBKey dbKey

// Server owns the router, middleware chain, optional TLS context and
// optional DB pool, and drives them over a reactor.Server.
type Server struct {
	cfg    config.Config
	router *router.Router
	chain  *middleware.Chain
	sslCtx *tlsbridge.SslContext
	dbPool *dbpool.Handle

	reactor *reactor.Server

	mu     sync.Mutex
	states map[reactor.Connection]*connState
}

type connState struct {
	parser *reqparser.Context
	secure *tlsbridge.SecureConn
}

// New builds a Server. If cfg.UseSSL is set, it loads the certificate
// and builds the SslContext eagerly — a failure here is the "fatal at
// startup" case the distilled spec's §7 calls for; the caller is
// expected to log and abort the process on a non-nil error.
func New(cfg config.Config, rt *router.Router, chain *middleware.Chain, dbPool *dbpool.Handle) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		router: rt,
		chain:  chain,
		dbPool: dbPool,
		states: make(map[reactor.Connection]*connState),
	}

	if cfg.UseSSL {
		sslCtx, err := tlsbridge.NewSslContext(cfg, func(token string) {
			log.Warnf("server: skipping unrecognized cipher %q", token)
		})
		if err != nil {
			return nil, fmt.Errorf("server: build ssl context: %w", err)
		}

		s.sslCtx = sslCtx
	}

	return s, nil
}

// Listen opens a TCP listener on cfg.Port and serves it, blocking the
// calling goroutine.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	return s.Serve(ln)
}

// Serve drives ln through the reactor, blocking the calling goroutine.
func (s *Server) Serve(ln net.Listener) error {
	idleTimeout := time.Duration(s.cfg.IdleTimeoutSeconds) * time.Second

	s.reactor = reactor.New(ln, reactor.Callbacks{
		OnConnect: s.onConnect,
		OnData:    s.onData,
		OnClose:   s.onClose,
	}, s.cfg.ThreadNum, idleTimeout)

	log.Infof("server: listening on %s (tls=%v)", ln.Addr(), s.cfg.UseSSL)
	return s.reactor.Start()
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	if s.reactor == nil {
		return nil
	}

	return s.reactor.Stop()
}

func (s *Server) onConnect(c reactor.Connection) {
	state := &connState{parser: reqparser.New()}

	if s.sslCtx != nil {
		state.secure = tlsbridge.NewSecureConn(s.sslCtx, c.Send, func(plaintext []byte, t time.Time) {
			s.onPlaintext(c, state, plaintext, t)
		})
	}

	s.mu.Lock()
	s.states[c] = state
	s.mu.Unlock()
}

func (s *Server) onData(c reactor.Connection, data []byte, t time.Time) {
	state := s.stateFor(c)
	if state == nil {
		return
	}

	if state.secure != nil {
		state.secure.OnRead(data)
		return
	}

	s.onPlaintext(c, state, data, t)
}

func (s *Server) onClose(c reactor.Connection) {
	s.mu.Lock()
	state := s.states[c]
	delete(s.states, c)
	s.mu.Unlock()

	if state != nil && state.secure != nil {
		_ = state.secure.Close()
	}
}

func (s *Server) stateFor(c reactor.Connection) *connState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[c]
}

// onPlaintext parses a chunk of decrypted (or, absent TLS, raw) bytes
// and dispatches every complete request it yields, including pipelined
// ones buffered ahead of the chunk that completed them.
func (s *Server) onPlaintext(c reactor.Connection, state *connState, data []byte, t time.Time) {
	if !state.parser.Parse(data, t) {
		log.Debugf("server: %s", fmt.Errorf("%w: %s", ierrors.ErrParseSyntax, c.RemoteAddr()))
		s.sendAndClose(c, state, http.NewStatusResponse(http.StatusBadRequest, true))
		return
	}

	for state.parser.GotAll() {
		req := state.parser.Request()
		req.Encrypted = state.secure != nil

		if s.dbPool != nil {
			req.WithValue(DBKey, s.dbPool)
		}

		resp := s.dispatch(req)
		s.send(c, state, resp)

		if resp.CloseConnection {
			_ = c.Close()
			return
		}

		state.parser.Reset()

		if !state.parser.Parse(nil, t) {
			log.Debugf("server: %s", fmt.Errorf("%w: %s", ierrors.ErrParseSyntax, c.RemoteAddr()))
			s.sendAndClose(c, state, http.NewStatusResponse(http.StatusBadRequest, true))
			return
		}
	}
}

// dispatch runs the middleware chain's before hooks, then the router,
// then the chain's after hooks, recovering from a handler panic into a
// 500 rather than letting it take the connection's goroutine down. It
// also derives CloseConnection from the request's Connection header
// when nothing earlier in the pipeline already asked to close.
func (s *Server) dispatch(req *http.Request) (resp *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("server: %s", fmt.Errorf("%w: %v", ierrors.ErrHandler, r))
			resp = http.NewStatusResponse(http.StatusInternalServerError, wantsClose(req))
		}
	}()

	ran := -1
	if s.chain != nil {
		var respond bool
		resp, ran, respond = s.chain.RunBefore(req)
		if respond {
			log.Debugf("server: %s", ierrors.ErrMiddlewareEarlyResponse)
		}
	}

	if resp == nil {
		if matched, ok := s.router.Route(req); ok {
			resp = matched
		} else {
			log.Debugf("server: %s", fmt.Errorf("%w: %s %s", ierrors.ErrNoRoute, req.Method, req.Path))
			resp = http.NewStatusResponse(http.StatusNotFound, false)
		}
	}

	if resp.StatusCode == 0 {
		log.Warnf("server: handler for %s %s returned an unset status, falling back to 500", req.Method, req.Path)
		resp = http.NewStatusResponse(http.StatusInternalServerError, false)
	}

	if s.chain != nil {
		s.chain.RunAfter(req, resp, ran)
	}

	if wantsClose(req) {
		resp.CloseConnection = true
	}

	return resp
}

// wantsClose derives whether the connection must close after this
// response from the request's Connection header: an explicit "close"
// always closes; HTTP/1.0 closes unless the client asked to keep the
// connection alive; HTTP/1.1 defaults to keep-alive otherwise.
//
// Grounded on original_source/src/http/HttpServer.cc::onRequest's
// `close = (connection == "close") || (version == "HTTP/1.0" &&
// connection != "Keep-Alive")`, literal casing kept as-is.
func wantsClose(req *http.Request) bool {
	connection := req.Headers.Value("Connection")

	if connection == "close" {
		return true
	}

	if req.Version == http.HTTP10 {
		return connection != "Keep-Alive"
	}

	return false
}

func (s *Server) send(c reactor.Connection, state *connState, resp *http.Response) {
	buf := render.Bytes(resp)

	if state.secure != nil {
		if err := state.secure.Send(buf); err != nil {
			log.Errorf("server: tls send failed: %v", err)
		}
		return
	}

	if err := c.Send(buf); err != nil {
		log.Errorf("server: send failed: %v", err)
	}
}

func (s *Server) sendAndClose(c reactor.Connection, state *connState, resp *http.Response) {
	s.send(c, state, resp)
	_ = c.Close()
}
