package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/auth"
	"github.com/udem-taln/nerbridge/pkg/gateway"
	"github.com/udem-taln/nerbridge/pkg/models"
	"github.com/udem-taln/nerbridge/pkg/ner"
	"github.com/udem-taln/nerbridge/pkg/nlp"
	"github.com/udem-taln/nerbridge/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// runWorker is the entrypoint for the nerbridge worker
func runWorker(ctx context.Context) {
	cfg := loadConfig()

	log.Infof("Starting nerbridge worker version %s", config.VersionString)

	stopTracing := setupTracing(ctx, cfg)
	defer stopTracing()

	appState, err := NewAppState(cfg)
	if err != nil {
		log.Fatalf("Error creating app state: %s", err)
	}

	srv := server.Create(appState)
	serveErr, err := listen(srv)
	if err != nil {
		log.Fatalf("Error starting server: %s", err)
	}

	if err := registerWorker(ctx, cfg); err != nil {
		log.Error(err)
		shutdown(srv)
		os.Exit(1)
	}

	wait(ctx, serveErr)
	shutdown(srv)
}

// registerWorker announces the worker to the gateway unless registration is disabled.
// An interrupt during the registration retries is a clean shutdown, not an error.
func registerWorker(ctx context.Context, cfg *config.Config) error {
	if !cfg.Gateway.Register {
		log.Info("Gateway registration disabled")
		return nil
	}
	_, err := gateway.NewRegistrar(cfg).Register(ctx)
	if err != nil && ctx.Err() != nil {
		log.Info("Registration interrupted")
		return nil
	}
	return err
}

// runGateway is the entrypoint for the gateway host
func runGateway(ctx context.Context) {
	cfg := loadConfig()

	log.Infof("Starting nerbridge gateway version %s", config.VersionString)

	stopTracing := setupTracing(ctx, cfg)
	defer stopTracing()

	host, err := gateway.NewHost(cfg, gateway.NewEntryPoint())
	if err != nil {
		log.Fatalf("Error creating gateway: %s", err)
	}

	srv := host.Server()
	serveErr, err := listen(srv)
	if err != nil {
		log.Fatalf("Error starting gateway: %s", err)
	}
	wait(ctx, serveErr)
	shutdown(srv)
}

// runProcess labels one sentence in-process, without a gateway.
func runProcess(ctx context.Context, sentence string) error {
	cfg := loadConfig()

	size, err := models.ParseModelSize(processSize)
	if err != nil {
		return err
	}

	appState, err := NewAppState(cfg)
	if err != nil {
		return err
	}

	doc, err := models.Dispatch(ctx, appState.Processor, size, sentence, processTarget)
	if err != nil {
		return err
	}
	fmt.Println(doc)
	return nil
}

// NewAppState creates an AppState struct from the config file / ENV and builds the
// model cache on the configured NLP engine. No model is loaded yet.
func NewAppState(cfg *config.Config) (*models.AppState, error) {
	loader, err := nlp.NewLoader(cfg)
	if err != nil {
		return nil, err
	}

	extractor := ner.NewExtractor(loader, cfg.NLP.Models)

	return &models.AppState{
		Processor: extractor,
		Models:    extractor,
		Config:    cfg,
	}, nil
}

// loadConfig loads the configuration, handles the options that exit early and applies
// the configured log level.
func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring nerbridge: %s", err)
	}

	handleCLIOptions(cfg)
	config.SetLogLevel(cfg)

	return cfg
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		token, err := auth.GenerateJWT(cfg)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(token)
		os.Exit(0)
	}
	if dumpConfig {
		redacted := *cfg
		if redacted.Auth.Secret != "" {
			redacted.Auth.Secret = "********"
		}
		out, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

// listen binds srv.Addr and serves srv in the background. Connections are accepted once
// listen returns. The returned channel yields the error that stopped the server, if any,
// and is closed when it stops.
func listen(srv *http.Server) (<-chan error, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}
	log.Infof("Listening on: %s", ln.Addr())

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	return serveErr, nil
}

// wait idles until the process is interrupted or the server fails.
func wait(ctx context.Context, serveErr <-chan error) {
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err, ok := <-serveErr:
		if ok {
			log.Fatal(err)
		}
	}
}

// setupTracing starts span export when tracing.enabled is set. The returned func flushes
// pending spans.
func setupTracing(ctx context.Context, cfg *config.Config) func() {
	shutdownTracing, err := internal.SetupTracing(
		ctx,
		cfg.Tracing.Enabled,
		cfg.Tracing.Endpoint,
		cfg.Tracing.ServiceName,
	)
	if err != nil {
		log.Fatalf("Error setting up tracing: %s", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Errorf("Error flushing traces: %s", err)
		}
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Error shutting down server: %s", err)
	}
}
