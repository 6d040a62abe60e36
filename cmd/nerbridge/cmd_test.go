package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udem-taln/nerbridge/pkg/gateway"
	"github.com/udem-taln/nerbridge/pkg/models"
	"github.com/udem-taln/nerbridge/pkg/testutils"
)

const workerModeEnv = "NERBRIDGE_TEST_WORKER_MODE"

// TestWorkerHelper is the child process started by the worker process tests.
func TestWorkerHelper(t *testing.T) {
	switch os.Getenv(workerModeEnv) {
	case "exit":
		os.Exit(3)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
}

func startHelperWorker(t *testing.T, mode string) *workerProcess {
	t.Helper()
	t.Setenv(workerModeEnv, mode)
	w, err := startWorkerProcess(os.Args[0], "-test.run=^TestWorkerHelper$")
	require.NoError(t, err)
	return w
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestListenAcceptsOnReturn(t *testing.T) {
	srv := &http.Server{
		Addr: freeAddr(t),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		ReadHeaderTimeout: time.Second,
	}
	serveErr, err := listen(srv)
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	shutdown(srv)
	_, ok := <-serveErr
	assert.False(t, ok)
}

func TestListenAddressInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	serveErr, err := listen(&http.Server{Addr: taken.Addr().String(), ReadHeaderTimeout: time.Second})
	assert.Error(t, err)
	assert.Nil(t, serveErr)
}

func waitOn(entry *gateway.EntryPoint, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		return entry.WaitForRegistration(ctx, timeout)
	}
}

func TestAwaitWorker(t *testing.T) {
	t.Run("server failure ends the wait", func(t *testing.T) {
		serveErr := make(chan error, 1)
		serveErr <- errors.New("listener closed")

		start := time.Now()
		err := awaitWorker(context.Background(), waitOn(gateway.NewEntryPoint(), time.Minute), serveErr)
		assert.ErrorContains(t, err, "listener closed")
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("closed channel ends the wait", func(t *testing.T) {
		stopped := make(chan error)
		close(stopped)

		err := awaitWorker(context.Background(), waitOn(gateway.NewEntryPoint(), time.Minute), stopped)
		assert.ErrorContains(t, err, "stopped before a worker registered")
	})

	t.Run("registered worker", func(t *testing.T) {
		entry := gateway.NewEntryPoint()
		entry.Register(gateway.NewEntryPoint(), "http://127.0.0.1:1")

		err := awaitWorker(context.Background(), waitOn(entry, time.Minute), make(chan error))
		assert.NoError(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		err := awaitWorker(context.Background(), waitOn(gateway.NewEntryPoint(), 10*time.Millisecond), make(chan error))
		assert.ErrorIs(t, err, models.ErrNotRegistered)
	})

	t.Run("interrupted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := awaitWorker(ctx, waitOn(gateway.NewEntryPoint(), time.Minute), make(chan error))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWorkerProcessExitEndsWait(t *testing.T) {
	w := startHelperWorker(t, "exit")

	start := time.Now()
	err := awaitWorker(context.Background(), waitOn(gateway.NewEntryPoint(), time.Minute), w.Done())
	assert.ErrorIs(t, err, errWorkerExited)
	assert.ErrorContains(t, err, "exit status 3")
	assert.Less(t, time.Since(start), 30*time.Second)

	w.Stop(time.Second)
}

func TestWorkerProcessStop(t *testing.T) {
	w := startHelperWorker(t, "sleep")

	start := time.Now()
	w.Stop(5 * time.Second)
	assert.Less(t, time.Since(start), 30*time.Second)

	_, ok := <-w.Done()
	assert.False(t, ok)
}

func TestRegisterWorker(t *testing.T) {
	var calls atomic.Int32
	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unavailable.Close()

	t.Run("interrupt during retries is not an error", func(t *testing.T) {
		cfg := testutils.NewTestConfig()
		cfg.Gateway.Address = unavailable.URL
		cfg.Gateway.RegisterRetries = 1000
		cfg.Gateway.RegisterDelay = 10 * time.Millisecond

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		assert.NoError(t, registerWorker(ctx, cfg))
		assert.Positive(t, calls.Load())
	})

	t.Run("failure without interrupt", func(t *testing.T) {
		cfg := testutils.NewTestConfig()
		cfg.Gateway.Address = unavailable.URL
		cfg.Gateway.RegisterRetries = 0
		assert.Error(t, registerWorker(context.Background(), cfg))
	})

	t.Run("disabled", func(t *testing.T) {
		before := calls.Load()
		cfg := testutils.NewTestConfig()
		cfg.Gateway.Address = unavailable.URL
		cfg.Gateway.Register = false
		assert.NoError(t, registerWorker(context.Background(), cfg))
		assert.Equal(t, before, calls.Load())
	})
}

func TestEvaluateFlags(t *testing.T) {
	llm := evaluateCmd.Flags().Lookup("llm")
	require.NotNil(t, llm)
	assert.Contains(t, llm.Usage, "LLM")
	assert.Equal(t, "false", llm.DefValue)

	spawn := evaluateCmd.Flags().Lookup("spawn-worker")
	require.NotNil(t, spawn)
	assert.Equal(t, "false", spawn.DefValue)
}
