package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/udem-taln/nerbridge/pkg/models"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 250 * time.Millisecond
)

// Service is the caller side of the gateway. It retries each call with a linear backoff
// to ride out slow model loads and transient worker errors, and parses the reply.
type Service struct {
	processor models.Processor
	attempts  uint
	backoff   time.Duration
}

// NewService returns a Service calling p, usually an EntryPoint.
func NewService(p models.Processor) *Service {
	return &Service{
		processor: p,
		attempts:  DefaultAttempts,
		backoff:   DefaultBackoff,
	}
}

// WithBackoff sets the base delay. The n-th retry waits n times backoff.
func (s *Service) WithBackoff(backoff time.Duration) *Service {
	s.backoff = backoff
	return s
}

func (s *Service) GetSM(ctx context.Context, sentence, target string) (models.LabelsResponse, error) {
	return s.Get(ctx, models.Small, sentence, target)
}

func (s *Service) GetMD(ctx context.Context, sentence, target string) (models.LabelsResponse, error) {
	return s.Get(ctx, models.Medium, sentence, target)
}

func (s *Service) GetLG(ctx context.Context, sentence, target string) (models.LabelsResponse, error) {
	return s.Get(ctx, models.Large, sentence, target)
}

// Get calls the processor for size and returns the parsed labels. The last error is
// returned once every attempt has failed.
func (s *Service) Get(
	ctx context.Context,
	size models.ModelSize,
	sentence, target string,
) (models.LabelsResponse, error) {
	return retry.DoWithData(
		func() (models.LabelsResponse, error) {
			doc, err := models.Dispatch(ctx, s.processor, size, sentence, target)
			if err != nil {
				return models.LabelsResponse{}, err
			}
			return ParseLabels(doc)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.DelayType(s.linearDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, models.ErrUnknownModelSize)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debugf("%s attempt %d failed: %s", size.Method(), n+1, err)
		}),
	)
}

func (s *Service) linearDelay(n uint, _ error, _ *retry.Config) time.Duration {
	return s.backoff * time.Duration(n+1)
}

// ParseLabels decodes a {"labels": [...]} document.
func ParseLabels(doc string) (models.LabelsResponse, error) {
	var resp models.LabelsResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return models.LabelsResponse{}, fmt.Errorf("error parsing labels %q: %w", doc, err)
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	return resp, nil
}
