package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var log = internal.GetLogger()

var tracer = otel.Tracer("github.com/udem-taln/nerbridge/pkg/ner")

var (
	_ models.Processor           = &Extractor{}
	_ models.ModelStatusReporter = &Extractor{}
)

// slot holds the lazily loaded handle for one model size. mu is held across
// check-construct-store so concurrent first calls load the model once.
type slot struct {
	name   string
	mu     sync.Mutex
	handle models.ModelHandle
}

// Extractor caches one model handle per size and turns sentences into
// {"labels": [...]} documents. Handles are never evicted.
type Extractor struct {
	loader models.ModelLoader
	slots  [3]*slot
}

// NewExtractor returns an Extractor with three empty slots named after the given model
// identifiers. Nothing is loaded until the first call for a size.
func NewExtractor(loader models.ModelLoader, names config.ModelsConfig) *Extractor {
	return &Extractor{
		loader: loader,
		slots: [3]*slot{
			models.Small:  {name: names.Small},
			models.Medium: {name: names.Medium},
			models.Large:  {name: names.Large},
		},
	}
}

func (e *Extractor) ProcessSM(ctx context.Context, sentence, target string) (string, error) {
	return e.Process(ctx, models.Small, sentence, target)
}

func (e *Extractor) ProcessMD(ctx context.Context, sentence, target string) (string, error) {
	return e.Process(ctx, models.Medium, sentence, target)
}

func (e *Extractor) ProcessLG(ctx context.Context, sentence, target string) (string, error) {
	return e.Process(ctx, models.Large, sentence, target)
}

// Process runs the model for size over sentence and returns the labels of the detected
// entities as JSON. When target is non-blank only entities whose text equals the trimmed
// target are kept.
func (e *Extractor) Process(
	ctx context.Context,
	size models.ModelSize,
	sentence string,
	target string,
) (string, error) {
	labels, err := e.Labels(ctx, size, sentence, target)
	if err != nil {
		return "", err
	}

	return encodeLabels(labels)
}

// Labels is Process without the JSON encoding.
func (e *Extractor) Labels(
	ctx context.Context,
	size models.ModelSize,
	sentence string,
	target string,
) ([]string, error) {
	handle, err := e.handle(ctx, size)
	if err != nil {
		return nil, err
	}

	entities, err := handle.Analyze(ctx, sentence)
	if err != nil {
		return nil, models.NewInferenceError(handle.Name(), err)
	}

	return extractLabels(entities, target), nil
}

// Loaded reports whether the slot for size holds a handle.
func (e *Extractor) Loaded(size models.ModelSize) bool {
	if !size.Valid() {
		return false
	}
	s := e.slots[size]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Status reports every slot, keyed by size name.
func (e *Extractor) Status() map[string]models.ModelStatus {
	status := make(map[string]models.ModelStatus, len(e.slots))
	for _, size := range models.ModelSizes {
		status[size.String()] = models.ModelStatus{
			Name:   e.slots[size].name,
			Loaded: e.Loaded(size),
		}
	}
	return status
}

func (e *Extractor) handle(ctx context.Context, size models.ModelSize) (models.ModelHandle, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownModelSize, size)
	}

	s := e.slots[size]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.handle, nil
	}

	ctx, span := tracer.Start(ctx, "ner.load_model", trace.WithAttributes(
		attribute.String("model.name", s.name),
		attribute.String("model.size", size.String()),
	))
	defer span.End()

	log.Infof("Loading NLP model: %s ...", s.name)
	start := time.Now()
	handle, err := e.loader.Load(ctx, s.name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model load failed")
		log.Errorf("Failed to load %s: %s", s.name, err)
		return nil, models.NewModelLoadError(s.name, err)
	}
	log.Infof("Loaded %s in %s", s.name, time.Since(start).Round(time.Millisecond))

	s.handle = handle
	return handle, nil
}

// extractLabels returns the labels of all entities, or of those whose text equals the
// trimmed target. Order and duplicates are preserved.
func extractLabels(entities []models.Entity, target string) []string {
	t := strings.TrimSpace(target)
	labels := make([]string, 0, len(entities))
	for _, ent := range entities {
		if t != "" && ent.Text != t {
			continue
		}
		labels = append(labels, ent.Label)
	}
	return labels
}

// encodeLabels writes {"labels": [...]} with ", " and ": " separators, the layout remote
// callers already compare against. Labels are not HTML-escaped.
func encodeLabels(labels []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var sb strings.Builder
	sb.WriteString(`{"labels": [`)
	for i, label := range labels {
		if i > 0 {
			sb.WriteString(", ")
		}
		buf.Reset()
		if err := enc.Encode(label); err != nil {
			return "", fmt.Errorf("failed to encode label %q: %w", label, err)
		}
		sb.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	}
	sb.WriteString("]}")
	return sb.String(), nil
}
