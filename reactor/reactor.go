// Package reactor implements the external reactor contract the server
// glue is built against: accept a TCP listener, hand every accepted
// connection a goroutine-owned read loop, and report connect/data/close
// events through a fixed set of callbacks.
//
// Grounded on the teacher's internal/server/tcp/server.go (accept loop,
// per-connection goroutine, a connection set for shutdown) and on
// original_source/src/http/HttpServer.cc's onConnection/onMessage
// lifecycle, which this package's Callbacks reproduce. "ThreadNum" from
// the distilled spec's §5 fixed reactor-thread pool is rendered as a
// semaphore bounding how many connections may be concurrently accepted
// and handled — goroutines are multiplexed onto the Go runtime's own
// scheduler rather than a hand-rolled epoll pool.
package reactor

import (
	"net"
	"sync"
	"time"

	"github.com/ignis-web/ignis/log"
)

// Connection is the minimal surface a callback sees for an accepted
// connection: send bytes, close it, or inspect its remote address.
type Connection interface {
	Send(b []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Callbacks are the three lifecycle hooks a server wires into the
// reactor. OnConnect fires once per accepted connection before any
// OnData; OnClose fires exactly once, whether the peer disconnected,
// the read loop errored, or the connection was closed from the
// callback side.
type Callbacks struct {
	OnConnect func(Connection)
	OnData    func(Connection, []byte, time.Time)
	OnClose   func(Connection)
}

// Server accepts connections off a net.Listener and drives Callbacks
// for each. The zero value is not usable; construct with New.
type Server struct {
	listener    net.Listener
	callbacks   Callbacks
	idleTimeout time.Duration
	sem         chan struct{}

	mu       sync.Mutex
	conns    map[*conn]struct{}
	shutdown bool
}

// New returns a Server listening on listener. threadNum bounds how many
// connections may be accepted and handled concurrently; zero or
// negative means unbounded. idleTimeout, if positive, is applied as a
// read deadline reset after every successful read — a connection silent
// for longer than that is closed.
func New(listener net.Listener, callbacks Callbacks, threadNum int, idleTimeout time.Duration) *Server {
	s := &Server{
		listener:    listener,
		callbacks:   callbacks,
		idleTimeout: idleTimeout,
		conns:       make(map[*conn]struct{}),
	}

	if threadNum > 0 {
		s.sem = make(chan struct{}, threadNum)
	}

	return s
}

// Start accepts connections until the listener errors or Stop/
// GracefulShutdown is called, blocking the calling goroutine.
func (s *Server) Start() error {
	var wg sync.WaitGroup

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			wg.Wait()

			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()

			if shutdown {
				return nil
			}

			return err
		}

		if s.sem != nil {
			s.sem <- struct{}{}
		}

		c := &conn{netConn: netConn}

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go s.handle(&wg, c)
	}
}

// Stop closes the listener and every currently open connection.
func (s *Server) Stop() error {
	if err := s.stopListener(); err != nil {
		return err
	}

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	return nil
}

// GracefulShutdown closes the listener but leaves open connections to
// finish naturally.
func (s *Server) GracefulShutdown() error {
	return s.stopListener()
}

func (s *Server) stopListener() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	return s.listener.Close()
}

func (s *Server) handle(wg *sync.WaitGroup, c *conn) {
	defer wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()

		if s.sem != nil {
			<-s.sem
		}

		_ = c.Close()

		if s.callbacks.OnClose != nil {
			s.callbacks.OnClose(c)
		}
	}()

	if s.callbacks.OnConnect != nil {
		s.callbacks.OnConnect(c)
	}

	buf := make([]byte, 4096)
	for {
		if s.idleTimeout > 0 {
			if err := c.netConn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
				return
			}
		}

		n, err := c.netConn.Read(buf)
		if n > 0 && s.callbacks.OnData != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.callbacks.OnData(c, data, time.Now())
		}

		if err != nil {
			if !c.isExpectedClose(err) {
				log.Debugf("reactor: connection %s read error: %v", c.RemoteAddr(), err)
			}
			return
		}
	}
}

// conn is the single-owner wrapper bridging a net.Conn to the
// Connection interface. Its fields are touched by the handling
// goroutine and by whichever goroutine calls Send (callbacks may run
// concurrently with the read loop, e.g. a TLS engine's drain pump), so
// Send and Close are independently guarded.
type conn struct {
	netConn net.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func (c *conn) Send(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.netConn.Write(b)
	return err
}

func (c *conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.netConn.Close()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

func (c *conn) isExpectedClose(err error) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	return c.closed
}
