package gateway

import (
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/riandyrn/otelchi"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/auth"
	"github.com/udem-taln/nerbridge/pkg/models"
	"github.com/udem-taln/nerbridge/pkg/server"
	"github.com/udem-taln/nerbridge/pkg/server/handlertools"
)

// Host is the gateway: it accepts worker registrations and relays WrapperInterface calls
// to the registered worker.
type Host struct {
	cfg        *config.Config
	entry      *EntryPoint
	client     *http.Client
	constraint *semver.Constraints
}

// NewHost returns a gateway host for entry. Workers must speak a protocol version with
// the same major version as config.ProtocolVersion.
func NewHost(cfg *config.Config, entry *EntryPoint) (*Host, error) {
	constraint, err := protocolConstraint(config.ProtocolVersion)
	if err != nil {
		return nil, err
	}
	return &Host{
		cfg:        cfg,
		entry:      entry,
		client:     internal.NewRetryableHTTPClient(0, cfg.Gateway.CallTimeout),
		constraint: constraint,
	}, nil
}

// Server returns the gateway's HTTP server, listening on gateway.address.
func (h *Host) Server() *http.Server {
	return &http.Server{
		Addr:              h.cfg.Gateway.Address,
		Handler:           h.Router(),
		ReadHeaderTimeout: server.ReadHeaderTimeout,
	}
}

func (h *Host) Router() *chi.Mux {
	appState := &models.AppState{
		Processor: h.entry,
		Config:    h.cfg,
	}

	router := chi.NewRouter()
	router.Use(httpLogger.Logger("gateway", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))
	router.Use(otelchi.Middleware("nerbridge-gateway", otelchi.WithChiRoutes(router)))

	if h.cfg.Auth.Required {
		router.Use(auth.JWTVerifier(h.cfg))
		router.Use(jwtauth.Authenticator)
	}

	router.Post("/register", h.RegisterHandler)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/registration", h.RegistrationHandler)
		r.Post("/wrapper/{method}", server.ProcessHandler(appState))
	})

	return router
}

// RegisterHandler registers the calling worker, replacing any previous registration.
func (h *Host) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := handlertools.DecodeJSON(w, r, &req); err != nil {
		handlertools.RenderError(w, err, http.StatusBadRequest)
		return
	}

	if req.Interface != models.WrapperInterface {
		handlertools.RenderError(
			w,
			fmt.Errorf("%w: unsupported interface %q", models.ErrBadRequest, req.Interface),
			http.StatusBadRequest,
		)
		return
	}

	if err := h.checkVersion(req.Version); err != nil {
		handlertools.RenderError(w, err, http.StatusConflict)
		return
	}

	h.entry.Register(NewRemoteProcessor(h.cfg, req.CallbackURL, h.client), req.CallbackURL)
	log.Infof("Worker registered: %s (protocol %s)", req.CallbackURL, req.Version)

	if err := handlertools.EncodeJSON(w, h.status()); err != nil {
		handlertools.RenderError(w, err, http.StatusInternalServerError)
	}
}

// RegistrationHandler reports whether a worker is registered.
func (h *Host) RegistrationHandler(w http.ResponseWriter, _ *http.Request) {
	if err := handlertools.EncodeJSON(w, h.status()); err != nil {
		handlertools.RenderError(w, err, http.StatusInternalServerError)
	}
}

func (h *Host) status() models.RegistrationStatus {
	return models.RegistrationStatus{
		Registered:  h.entry.IsRegistered(),
		CallbackURL: h.entry.Callback(),
		Version:     config.ProtocolVersion,
	}
}

func (h *Host) checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: invalid protocol version %q: %w", models.ErrBadRequest, v, err)
	}
	if !h.constraint.Check(version) {
		return fmt.Errorf(
			"%w: worker speaks %s, gateway speaks %s",
			models.ErrIncompatibleVersion,
			version,
			config.ProtocolVersion,
		)
	}
	return nil
}

// protocolConstraint accepts any version with the same major version as v.
func protocolConstraint(v string) (*semver.Constraints, error) {
	version, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("error parsing protocol version: %w", err)
	}
	return semver.NewConstraint(fmt.Sprintf("^%d", version.Major()))
}
