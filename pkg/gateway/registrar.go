package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/auth"
	"github.com/udem-taln/nerbridge/pkg/models"
)

const registerTimeout = 5 * time.Second

// Registrar registers a worker's callback server with the gateway.
type Registrar struct {
	cfg    *config.Config
	client *http.Client
}

func NewRegistrar(cfg *config.Config) *Registrar {
	return &Registrar{
		cfg:    cfg,
		client: internal.NewRetryableHTTPClient(0, registerTimeout),
	}
}

// Register announces the worker to the gateway, retrying gateway.register_retries times
// with gateway.register_delay between attempts. A rejected registration is not retried.
func (r *Registrar) Register(ctx context.Context) (models.RegistrationStatus, error) {
	registerRetryPolicy := retrypolicy.Builder[models.RegistrationStatus]().
		HandleIf(func(_ models.RegistrationStatus, err error) bool {
			return err != nil && ctx.Err() == nil && !errors.Is(err, models.ErrBadRequest)
		}).
		WithDelay(r.cfg.Gateway.RegisterDelay).
		WithMaxRetries(int(r.cfg.Gateway.RegisterRetries)).
		Build()

	attempt := 0
	status, err := failsafe.Get(func() (models.RegistrationStatus, error) {
		attempt++
		status, err := r.register(ctx)
		if err != nil {
			log.Debugf("Registration attempt %d failed: %s", attempt, err)
		}
		return status, err
	}, registerRetryPolicy)
	if err != nil {
		return models.RegistrationStatus{}, fmt.Errorf(
			"failed to register with gateway at %s after %d attempt(s): %w",
			r.cfg.Gateway.Address,
			attempt,
			err,
		)
	}

	log.Infof("Registered %s with gateway at %s", r.cfg.CallbackURL(), r.cfg.Gateway.Address)
	return status, nil
}

func (r *Registrar) register(ctx context.Context) (models.RegistrationStatus, error) {
	body, err := json.Marshal(models.RegisterRequest{
		Interface:   models.WrapperInterface,
		CallbackURL: r.cfg.CallbackURL(),
		Version:     config.ProtocolVersion,
	})
	if err != nil {
		return models.RegistrationStatus{}, err
	}

	endpoint := GatewayURL(r.cfg.Gateway.Address) + "/register"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := auth.AuthorizeRequest(r.cfg, req, "worker"); err != nil {
		return models.RegistrationStatus{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return models.RegistrationStatus{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.RegistrationStatus{}, fmt.Errorf(
			"%w: gateway rejected registration (%d): %s",
			models.ErrBadRequest,
			resp.StatusCode,
			strings.TrimSpace(string(msg)),
		)
	default:
		return models.RegistrationStatus{}, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	var status models.RegistrationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return models.RegistrationStatus{}, fmt.Errorf("error decoding registration status: %w", err)
	}
	return status, nil
}

// GatewayURL turns a gateway address into a base URL. Addresses without a scheme are
// reached over plain HTTP.
func GatewayURL(address string) string {
	address = strings.TrimSuffix(address, "/")
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	return "http://" + address
}
