package server

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ignis-web/ignis/config"
	"github.com/ignis-web/ignis/http"
	"github.com/ignis-web/ignis/middleware"
	"github.com/ignis-web/ignis/router"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, rt *router.Router, chain *middleware.Chain) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s, err := New(config.Default(), rt, chain, nil)
	require.NoError(t, err)

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Stop() })

	return ln.Addr().String()
}

func TestServerRoutesMatchedRequest(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK").String("world").Close()
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "200")
}

func TestServerReturns404OnMiss(t *testing.T) {
	rt := router.New()
	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /nope HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "404")
}

func TestServerClosesOnMalformedRequest(t *testing.T) {
	rt := router.New()
	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("NOT A REQUEST\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "400")
}

func TestServerHandlesPipelinedRequestsOnOneConnection(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/a", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK").String("a")
	})
	rt.RegisterCallback(http.GET, "/b", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK").String("b").Close()
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(
		"GET /a HTTP/1.1\r\nHost: x\r\n\r\n" +
			"GET /b HTTP/1.1\r\nHost: x\r\n\r\n",
	))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, first, "200")

	// /b closes the connection, so the rest of the stream is the tail of
	// /a's response followed by the whole of /b's.
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Contains(t, string(rest), "\r\n\r\naHTTP/1.1 200 OK\r\nConnection: close\r\n")
	require.True(t, strings.HasSuffix(string(rest), "\r\n\r\nb"))
}

func TestServerRunsMiddlewareBeforeRouting(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK").Close()
	})

	chain := middleware.New().Use(blockAllMiddleware{})
	addr := startTestServer(t, rt, chain)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "403")
}

func TestServerClosesOnExplicitConnectionClose(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK")
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rest, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Contains(t, string(rest), "200")
}

func TestServerKeepsAliveOnHTTP11Default(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK")
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, err = io.ReadAll(conn)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestServerClosesOnHTTP10WithoutKeepAlive(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK")
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.0\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rest, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Contains(t, string(rest), "200")
}

func TestServerKeepsAliveOnHTTP10WithKeepAlive(t *testing.T) {
	rt := router.New()
	rt.RegisterCallback(http.GET, "/hello", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK")
	})

	addr := startTestServer(t, rt, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.0\r\nHost: x\r\nConnection: Keep-Alive\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, err = io.ReadAll(conn)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

// TestServerCORSPreflightCarriesNoDuplicateHeaders drives a real
// preflight OPTIONS request through Server.dispatch with CORS wired the
// way cmd/ignisd wires it — the concrete scenario where CORS.Before's
// early Respond and CORS.After used to both fire on the same response.
func TestServerCORSPreflightCarriesNoDuplicateHeaders(t *testing.T) {
	rt := router.New()
	chain := middleware.New().Use(middleware.NewCORS(middleware.DefaultCORSConfig()))
	addr := startTestServer(t, rt, chain)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(
		"OPTIONS /anything HTTP/1.1\r\nHost: x\r\nOrigin: https://example.com\r\nConnection: close\r\n\r\n",
	))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	raw, err := io.ReadAll(conn)
	require.NoError(t, err)

	resp := string(raw)
	require.Contains(t, resp, "204")
	require.Equal(t, 1, strings.Count(resp, "Access-Control-Allow-Origin:"))
	require.Contains(t, resp, "Access-Control-Allow-Origin: *")
	require.Equal(t, 1, strings.Count(resp, "Access-Control-Max-Age:"))
}

type blockAllMiddleware struct{}

func (blockAllMiddleware) Before(req *http.Request) middleware.Result {
	return middleware.Respond(http.NewResponse().Code(403, "Forbidden").Close())
}

func (blockAllMiddleware) After(req *http.Request, resp *http.Response) error {
	return nil
}
