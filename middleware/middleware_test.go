package middleware

import (
	"errors"
	"testing"

	"github.com/ignis-web/ignis/http"
	"github.com/stretchr/testify/require"
)

type recordingMiddleware struct {
	name     string
	before   Result
	afterErr error
	calls    *[]string
}

func (m *recordingMiddleware) Before(req *http.Request) Result {
	*m.calls = append(*m.calls, "before:"+m.name)
	return m.before
}

func (m *recordingMiddleware) After(req *http.Request, resp *http.Response) error {
	*m.calls = append(*m.calls, "after:"+m.name)
	return m.afterErr
}

func TestChainRunsBeforeInForwardOrder(t *testing.T) {
	var calls []string
	c := New().
		Use(&recordingMiddleware{name: "a", calls: &calls}).
		Use(&recordingMiddleware{name: "b", calls: &calls})

	_, ran, ok := c.RunBefore(http.NewRequest())
	require.False(t, ok)
	require.Equal(t, 1, ran)
	require.Equal(t, []string{"before:a", "before:b"}, calls)
}

func TestChainRunsAfterInReverseOrder(t *testing.T) {
	var calls []string
	c := New().
		Use(&recordingMiddleware{name: "a", calls: &calls}).
		Use(&recordingMiddleware{name: "b", calls: &calls})

	c.RunAfter(http.NewRequest(), http.NewResponse(), 1)
	require.Equal(t, []string{"after:b", "after:a"}, calls)
}

func TestChainEarlyExitSkipsRemainingBefore(t *testing.T) {
	var calls []string
	early := http.NewResponse().Code(204, "No Content")

	c := New().
		Use(&recordingMiddleware{name: "a", calls: &calls, before: Respond(early)}).
		Use(&recordingMiddleware{name: "b", calls: &calls})

	resp, ran, ok := c.RunBefore(http.NewRequest())
	require.True(t, ok)
	require.Same(t, early, resp)
	require.Equal(t, 0, ran)
	require.Equal(t, []string{"before:a"}, calls)
}

func TestChainEarlyExitSkipsAfterForUnrunMiddleware(t *testing.T) {
	var calls []string
	early := http.NewResponse().Code(204, "No Content")

	c := New().
		Use(&recordingMiddleware{name: "a", calls: &calls, before: Respond(early)}).
		Use(&recordingMiddleware{name: "b", calls: &calls})

	_, ran, _ := c.RunBefore(http.NewRequest())
	c.RunAfter(http.NewRequest(), early, ran)
	require.Equal(t, []string{"before:a", "after:a"}, calls)
}

func TestChainAfterErrorsAreSwallowed(t *testing.T) {
	var calls []string
	c := New().
		Use(&recordingMiddleware{name: "a", calls: &calls}).
		Use(&recordingMiddleware{name: "b", calls: &calls, afterErr: errors.New("boom")})

	require.NotPanics(t, func() {
		c.RunAfter(http.NewRequest(), http.NewResponse(), 1)
	})
	require.Equal(t, []string{"after:b", "after:a"}, calls)
}
