package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/pkg/models"
	"github.com/udem-taln/nerbridge/pkg/ner"
	"github.com/udem-taln/nerbridge/pkg/server"
	"github.com/udem-taln/nerbridge/pkg/testutils"
)

// startWorker runs a worker callback server backed by an extractor.
func startWorker(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	extractor := ner.NewExtractor(&testutils.StubLoader{}, cfg.NLP.Models)
	srv := server.Create(&models.AppState{
		Processor: extractor,
		Models:    extractor,
		Config:    cfg,
	})
	worker := httptest.NewServer(srv.Handler)
	t.Cleanup(worker.Close)
	return worker
}

// startGateway runs a gateway host and points cfg at it.
func startGateway(t *testing.T, cfg *config.Config) (*EntryPoint, *httptest.Server) {
	t.Helper()
	entry := NewEntryPoint()
	host, err := NewHost(cfg, entry)
	require.NoError(t, err)
	gw := httptest.NewServer(host.Router())
	t.Cleanup(gw.Close)
	cfg.Gateway.Address = gw.URL
	return entry, gw
}

func TestRegisterAndRelay(t *testing.T) {
	cfg := testutils.NewTestConfig()
	worker := startWorker(t, cfg)
	cfg.Server.CallbackURL = worker.URL
	entry, gw := startGateway(t, cfg)

	assert.False(t, entry.IsRegistered())

	status, err := NewRegistrar(cfg).Register(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, worker.URL, status.CallbackURL)
	assert.Equal(t, config.ProtocolVersion, status.Version)
	assert.True(t, entry.IsRegistered())

	ctx := context.Background()
	service := NewService(entry).WithBackoff(time.Millisecond)

	labels, err := service.GetSM(ctx, "Bob moved from Google to Montreal.", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PERSON", "ORG", "GPE"}, labels.Labels)

	labels, err = service.GetLG(ctx, "Bob moved from Google to Montreal.", " Google ")
	require.NoError(t, err)
	assert.Equal(t, []string{"ORG"}, labels.Labels)

	labels, err = service.GetMD(ctx, "Nothing here.", "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, labels.Labels)

	resp, err := http.Post(
		gw.URL+"/api/v1/wrapper/processMD",
		"application/json",
		strings.NewReader(`{"sentence": "Bob works at Google.", "target": "Bob"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"labels": ["PERSON"]}`, string(body))
}

func TestRelayWithoutWorker(t *testing.T) {
	cfg := testutils.NewTestConfig()
	_, gw := startGateway(t, cfg)

	resp, err := http.Post(
		gw.URL+"/api/v1/wrapper/processSM",
		"application/json",
		strings.NewReader(`{"sentence": "Bob"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(gw.URL + "/api/v1/registration")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"registered": false, "version": "`+config.ProtocolVersion+`"}`, string(body))
}

func TestRelayPassesWorkerFailureThrough(t *testing.T) {
	cfg := testutils.NewTestConfig()
	cfg.NLP.Models.Large = testutils.FailingModel
	worker := startWorker(t, cfg)
	entry, gw := startGateway(t, cfg)
	entry.Register(NewRemoteProcessor(cfg, worker.URL, http.DefaultClient), worker.URL)

	_, err := entry.ProcessLG(context.Background(), "Bob", "")
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
	assert.Equal(t, "processLG", remoteErr.Method)
	assert.Contains(t, remoteErr.Body, testutils.FailingModel)

	resp, err := http.Post(
		gw.URL+"/api/v1/wrapper/processLG",
		"application/json",
		strings.NewReader(`{"sentence": "Bob"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRegisterHandlerRejects(t *testing.T) {
	cfg := testutils.NewTestConfig()
	entry, gw := startGateway(t, cfg)

	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{
			"unknown interface",
			`{"interface": "OtherInterface", "callback_url": "http://127.0.0.1:1", "version": "1.0.0"}`,
			http.StatusBadRequest,
		},
		{
			"incompatible version",
			`{"interface": "WrapperInterface", "callback_url": "http://127.0.0.1:1", "version": "2.1.0"}`,
			http.StatusConflict,
		},
		{
			"invalid version",
			`{"interface": "WrapperInterface", "callback_url": "http://127.0.0.1:1", "version": "one"}`,
			http.StatusBadRequest,
		},
		{
			"invalid callback",
			`{"interface": "WrapperInterface", "callback_url": "not a url", "version": "1.0.0"}`,
			http.StatusBadRequest,
		},
		{
			"missing fields",
			`{}`,
			http.StatusBadRequest,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(gw.URL+"/register", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.False(t, entry.IsRegistered())

	resp, err := http.Post(
		gw.URL+"/register",
		"application/json",
		strings.NewReader(`{"interface": "WrapperInterface", "callback_url": "http://127.0.0.1:1", "version": "1.4.2"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:1", entry.Callback())
}

func TestRegistrarRetries(t *testing.T) {
	var calls atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"registered": true, "version": "1.0.0"}`))
	}))
	defer gw.Close()

	cfg := testutils.NewTestConfig()
	cfg.Gateway.Address = gw.URL
	status, err := NewRegistrar(cfg).Register(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistrarGivesUp(t *testing.T) {
	var calls atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer gw.Close()

	cfg := testutils.NewTestConfig()
	cfg.Gateway.Address = gw.URL
	cfg.Gateway.RegisterRetries = 2
	_, err := NewRegistrar(cfg).Register(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistrarDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "incompatible protocol version", http.StatusConflict)
	}))
	defer gw.Close()

	cfg := testutils.NewTestConfig()
	cfg.Gateway.Address = gw.URL
	_, err := NewRegistrar(cfg).Register(context.Background())
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.ErrorContains(t, err, "incompatible protocol version")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:25333", GatewayURL("127.0.0.1:25333"))
	assert.Equal(t, "http://localhost:8080", GatewayURL("http://localhost:8080/"))
	assert.Equal(t, "https://gw.example.com", GatewayURL("https://gw.example.com"))
}
