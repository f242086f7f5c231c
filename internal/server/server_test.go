package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/quill/internal/config"
)

func TestServer_StopsOnContextCancel(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := New(config.ServerConfig{Host: "256.0.0.1", Port: 1}, http.NotFoundHandler())
	err := srv.Start(context.Background())
	assert.Error(t, err)
}
