package router

import (
	"testing"

	"github.com/ignis-web/ignis/http"
	"github.com/stretchr/testify/require"
)

type handlerFn func(req *http.Request) *http.Response

func (f handlerFn) Handle(req *http.Request) *http.Response { return f(req) }

func respOK() *http.Response {
	return http.NewResponse().Code(200, "OK")
}

func TestExactHandlerBeatsRegex(t *testing.T) {
	r := New()
	r.AddRegexHandler(http.GET, "/users/:id", handlerFn(func(req *http.Request) *http.Response {
		return http.NewResponse().Code(201, "from regex")
	}))
	r.RegisterHandler(http.GET, "/users/me", handlerFn(func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "from exact")
	}))

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/users/me"

	resp, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "from exact", resp.StatusMessage)
}

func TestExactHandlerBeatsExactCallback(t *testing.T) {
	r := New()
	r.RegisterCallback(http.GET, "/x", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "callback")
	})
	r.RegisterHandler(http.GET, "/x", handlerFn(func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "handler")
	}))

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/x"

	resp, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "handler", resp.StatusMessage)
}

func TestRegexHandlerBeatsRegexCallback(t *testing.T) {
	r := New()
	r.AddRegexCallback(http.GET, "/a/:id", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "cb")
	})
	r.AddRegexHandler(http.GET, "/a/:id", handlerFn(func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "handler")
	}))

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/a/7"

	resp, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "handler", resp.StatusMessage)
}

func TestRegexInsertionOrderPrecedence(t *testing.T) {
	r := New()
	r.AddRegexCallback(http.GET, "/items/:id", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "first")
	})
	r.AddRegexCallback(http.GET, "/items/:slug", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "second")
	})

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/items/42"

	resp, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "first", resp.StatusMessage)
}

func TestRegexCaptureBothPositionalAndNamed(t *testing.T) {
	r := New()
	var captured *http.Request
	r.AddRegexCallback(http.GET, "/users/:id/posts/:postId", func(req *http.Request) *http.Response {
		captured = req
		return respOK()
	})

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/users/7/posts/99"

	_, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "7", captured.PathParams.Value("param1"))
	require.Equal(t, "99", captured.PathParams.Value("param2"))
	require.Equal(t, "7", captured.PathParams.Value("id"))
	require.Equal(t, "99", captured.PathParams.Value("postId"))
}

func TestRouteMissReturnsFalse(t *testing.T) {
	r := New()
	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/nope"

	_, ok := r.Route(req)
	require.False(t, ok)
}

func TestMethodMismatchDoesNotMatchRegex(t *testing.T) {
	r := New()
	r.AddRegexHandler(http.GET, "/x/:id", handlerFn(func(req *http.Request) *http.Response {
		return respOK()
	}))

	req := http.NewRequest()
	req.Method = http.POST
	req.Path = "/x/1"

	_, ok := r.Route(req)
	require.False(t, ok)
}

func TestGroupPrefixesRegistrations(t *testing.T) {
	root := New()
	api := root.Group("/api")
	api.RegisterCallback(http.GET, "/ping", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "pong")
	})

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/api/ping"

	resp, ok := root.Route(req)
	require.True(t, ok)
	require.Equal(t, "pong", resp.StatusMessage)
}

func TestLaterExactRegistrationOverwrites(t *testing.T) {
	r := New()
	r.RegisterCallback(http.GET, "/x", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "first")
	})
	r.RegisterCallback(http.GET, "/x", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "second")
	})

	req := http.NewRequest()
	req.Method = http.GET
	req.Path = "/x"

	resp, ok := r.Route(req)
	require.True(t, ok)
	require.Equal(t, "second", resp.StatusMessage)
}
