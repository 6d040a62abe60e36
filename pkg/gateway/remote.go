package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/pkg/auth"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var _ models.Processor = &RemoteProcessor{}

// maxResponseBytes bounds worker responses read by the gateway.
const maxResponseBytes = 1 << 20

// RemoteError is a non-200 reply from a worker.
type RemoteError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("worker %s returned %d: %s", e.Method, e.StatusCode, e.Body)
}

// HTTPStatus lets the gateway pass worker failures through with the worker's status.
func (e *RemoteError) HTTPStatus() int {
	return e.StatusCode
}

// RemoteProcessor relays WrapperInterface calls to a worker's callback server.
type RemoteProcessor struct {
	cfg         *config.Config
	callbackURL string
	client      *http.Client
}

func NewRemoteProcessor(cfg *config.Config, callbackURL string, client *http.Client) *RemoteProcessor {
	return &RemoteProcessor{
		cfg:         cfg,
		callbackURL: strings.TrimSuffix(callbackURL, "/"),
		client:      client,
	}
}

func (p *RemoteProcessor) ProcessSM(ctx context.Context, sentence, target string) (string, error) {
	return p.call(ctx, models.Small, sentence, target)
}

func (p *RemoteProcessor) ProcessMD(ctx context.Context, sentence, target string) (string, error) {
	return p.call(ctx, models.Medium, sentence, target)
}

func (p *RemoteProcessor) ProcessLG(ctx context.Context, sentence, target string) (string, error) {
	return p.call(ctx, models.Large, sentence, target)
}

func (p *RemoteProcessor) call(
	ctx context.Context,
	size models.ModelSize,
	sentence, target string,
) (string, error) {
	body, err := json.Marshal(models.ProcessRequest{Sentence: sentence, Target: target})
	if err != nil {
		return "", err
	}

	endpoint := p.callbackURL + "/api/v1/wrapper/" + size.Method()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := auth.AuthorizeRequest(p.cfg, req, "gateway"); err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling worker %s: %w", size.Method(), err)
	}
	defer resp.Body.Close()

	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("error reading worker response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &RemoteError{
			Method:     size.Method(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(doc)),
		}
	}

	return string(doc), nil
}
