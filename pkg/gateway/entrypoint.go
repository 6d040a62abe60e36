package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var log = internal.GetLogger()

var _ models.Processor = &EntryPoint{}

// PollInterval is how often WaitForRegistration checks for a worker.
const PollInterval = 500 * time.Millisecond

// EntryPoint holds the worker registered with the gateway. At most one worker is
// registered; a new registration replaces the previous one.
type EntryPoint struct {
	mu        sync.RWMutex
	processor models.Processor
	callback  string
}

func NewEntryPoint() *EntryPoint {
	return &EntryPoint{}
}

// Register makes p the processor gateway calls are relayed to. callback identifies the
// worker in logs and status reports.
func (e *EntryPoint) Register(p models.Processor, callback string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.processor != nil {
		log.Infof("Replacing registered worker %s with %s", e.callback, callback)
	}
	e.processor = p
	e.callback = callback
}

func (e *EntryPoint) IsRegistered() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.processor != nil
}

// Callback returns the callback URL of the registered worker, or "" when none is.
func (e *EntryPoint) Callback() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.callback
}

// Processor returns the registered worker or models.ErrNotRegistered.
func (e *EntryPoint) Processor() (models.Processor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.processor == nil {
		return nil, models.ErrNotRegistered
	}
	return e.processor, nil
}

// WaitForRegistration blocks until a worker registers, ctx is done or timeout elapses.
// It returns models.ErrNotRegistered on timeout.
func (e *EntryPoint) WaitForRegistration(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var lastLog time.Time
	for {
		if e.IsRegistered() {
			return nil
		}
		if time.Since(lastLog) > 2*time.Second {
			log.Info("Waiting for worker to register...")
			lastLog = time.Now()
		}
		select {
		case <-ctx.Done():
			if e.IsRegistered() {
				return nil
			}
			if ctx.Err() == context.DeadlineExceeded {
				return models.ErrNotRegistered
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *EntryPoint) ProcessSM(ctx context.Context, sentence, target string) (string, error) {
	return e.dispatch(ctx, models.Small, sentence, target)
}

func (e *EntryPoint) ProcessMD(ctx context.Context, sentence, target string) (string, error) {
	return e.dispatch(ctx, models.Medium, sentence, target)
}

func (e *EntryPoint) ProcessLG(ctx context.Context, sentence, target string) (string, error) {
	return e.dispatch(ctx, models.Large, sentence, target)
}

func (e *EntryPoint) dispatch(
	ctx context.Context,
	size models.ModelSize,
	sentence, target string,
) (string, error) {
	p, err := e.Processor()
	if err != nil {
		return "", err
	}
	return models.Dispatch(ctx, p, size, sentence, target)
}
