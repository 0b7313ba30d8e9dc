package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/Y3rnur/sitesrv/backend"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRunStopsOnCancel(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, backend.Config{SiteAddr: addr, SiteRoot: t.TempDir()}, zap.NewNop(), zap.NewNop())
	}()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	// the port is free again
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	ln.Close()
}

func TestRunReleasesListenerOnStartupError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	addr := freeAddr(t)
	err = run(context.Background(), backend.Config{
		SiteAddr:  addr,
		SiteRoot:  t.TempDir(),
		AdminAddr: busy.Addr().String(),
	}, zap.NewNop(), zap.NewNop())
	require.Error(t, err)

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	ln.Close()
}

func TestRunRejectsBadRedisURL(t *testing.T) {
	err := run(context.Background(), backend.Config{
		SiteAddr:  freeAddr(t),
		AdminAddr: freeAddr(t),
		RedisURL:  "not-a-url",
	}, zap.NewNop(), zap.NewNop())
	assert.Error(t, err)
}

func TestRunLifecycleLinesSurviveQuietLevel(t *testing.T) {
	buf := &zaptest.Buffer{}
	log, lifecycle := backend.NewLoggers("warn", zapcore.Lock(buf))

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, backend.Config{SiteAddr: addr, SiteRoot: t.TempDir()}, log, lifecycle)
	}()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	out := buf.String()
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Server started at http://localhost:"+port)
	assert.Contains(t, out, "Stopping server ...")
	assert.Contains(t, out, "Server stopped successfully")
}
