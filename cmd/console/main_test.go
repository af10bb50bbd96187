package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func waitServe(t *testing.T, server *http.Server, sig chan os.Signal) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- serve(server, sig, time.Second, discard) }()
	return done
}

func TestServe_PortInUseReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	server := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	done := waitServe(t, server, make(chan os.Signal))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept waiting after the server failed to start")
	}
}

func TestServe_SignalShutsDown(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	sig := make(chan os.Signal, 1)
	done := waitServe(t, server, sig)

	sig <- os.Interrupt

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the signal")
	}
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://api.jssp.example", origin("https://api.jssp.example/api/v1"))
	assert.Equal(t, "http://localhost:8000", origin("http://localhost:8000"))
}
