package pairing

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestListener(t *testing.T) *Listener {
	t.Helper()
	ln := NewListener("127.0.0.1:0")
	require.NoError(t, ln.Start())
	t.Cleanup(func() { ln.Close(context.Background()) })
	return ln
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func awaitOutcome(t *testing.T, ln *Listener) Outcome {
	t.Helper()
	select {
	case o := <-ln.Result():
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome delivered")
		return 0
	}
}

func TestListenerSuccess(t *testing.T) {
	ln := startTestListener(t)

	code, body := get(t, ln.URL()+"?status=success")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Login successful")
	assert.Equal(t, OutcomeSuccess, awaitOutcome(t, ln))
}

func TestListenerFailure(t *testing.T) {
	for _, query := range []string{"?status=failure", "?status=", ""} {
		ln := startTestListener(t)
		code, body := get(t, ln.URL()+query)
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "Login failed")
		assert.Equal(t, OutcomeFailure, awaitOutcome(t, ln), query)
	}
}

func TestListenerNotFound(t *testing.T) {
	ln := startTestListener(t)

	code, body := get(t, "http://"+ln.Addr()+"/other")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "404 Not Found", body)

	select {
	case o := <-ln.Result():
		t.Fatalf("unexpected outcome %s", o)
	default:
	}
}

func TestListenerFirstOutcomeWins(t *testing.T) {
	ln := startTestListener(t)
	get(t, ln.URL()+"?status=success")
	code, _ := get(t, ln.URL()+"?status=failure")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, OutcomeSuccess, awaitOutcome(t, ln))

	select {
	case o := <-ln.Result():
		t.Fatalf("second outcome delivered: %s", o)
	default:
	}
}

func TestListenerCloseReleasesPort(t *testing.T) {
	ln := NewListener("127.0.0.1:0")
	require.NoError(t, ln.Start())
	addr := ln.Addr()

	require.NoError(t, ln.Close(context.Background()))

	rebind, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port should be free after Close")
	rebind.Close()
}

func TestListenerCloseIdempotent(t *testing.T) {
	ln := NewListener("127.0.0.1:0")
	assert.NoError(t, ln.Close(context.Background()), "close before start")
	assert.NoError(t, ln.Close(context.Background()))
	assert.Error(t, ln.Start(), "closed listener must not restart")

	started := NewListener("127.0.0.1:0")
	require.NoError(t, started.Start())
	for i := 0; i < 3; i++ {
		assert.NoError(t, started.Close(context.Background()))
	}
}

func TestListenerBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	ln := NewListener(busy.Addr().String())
	err = ln.Start()
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, OpBind, terr.Op)
	assert.Contains(t, err.Error(), "could not bind local port")
}
