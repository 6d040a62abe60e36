package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/pkg/models"
)

// FailingModel is a model name StubLoader refuses to load.
const FailingModel = "en_core_web_missing"

// KnownEntities are the spans StubHandle recognizes, in the order it reports them when
// they start at the same offset.
var KnownEntities = []models.Entity{
	{Text: "Alice", Label: "PERSON"},
	{Text: "Bob", Label: "PERSON"},
	{Text: "OpenAI", Label: "ORG"},
	{Text: "Google", Label: "ORG"},
	{Text: "Canadians", Label: "NORP"},
	{Text: "San Francisco", Label: "GPE"},
	{Text: "Montreal", Label: "GPE"},
	{Text: "the Alps", Label: "LOC"},
	{Text: "Monday", Label: "DATE"},
}

// NewTestConfig returns the default configuration pointed at the gazetteer models
// shipped in <project root>/models, with fast gateway retries.
func NewTestConfig() *config.Config {
	cfg := config.Defaults()
	cfg.NLP.Engine = config.EngineGazetteer
	if root, err := FindProjectRoot(); err == nil {
		cfg.NLP.ModelDir = filepath.Join(root, "models")
	}
	cfg.Gateway.RegisterRetries = 3
	cfg.Gateway.RegisterDelay = time.Millisecond
	cfg.Gateway.CallTimeout = 5 * time.Second
	return cfg
}

// StubLoader builds StubHandles and counts Load calls. It fails for FailingModel.
type StubLoader struct {
	loads atomic.Int32
}

func (l *StubLoader) Load(_ context.Context, name string) (models.ModelHandle, error) {
	l.loads.Add(1)
	if name == FailingModel {
		return nil, fmt.Errorf("can't find model '%s'", name)
	}
	return StubHandle{name: name}, nil
}

// Loads returns how many times Load was called.
func (l *StubLoader) Loads() int {
	return int(l.loads.Load())
}

// StubHandle reports every occurrence of KnownEntities, ordered by offset.
type StubHandle struct {
	name string
}

func (h StubHandle) Name() string { return h.name }

func (h StubHandle) Analyze(_ context.Context, sentence string) ([]models.Entity, error) {
	var entities []models.Entity
	for offset := 0; offset < len(sentence); offset++ {
		for _, known := range KnownEntities {
			if strings.HasPrefix(sentence[offset:], known.Text) {
				entities = append(entities, models.Entity{
					Text:  known.Text,
					Label: known.Label,
					Start: offset,
					End:   offset + len(known.Text),
				})
				offset += len(known.Text) - 1
				break
			}
		}
	}
	return entities, nil
}

// FindProjectRoot returns the absolute path to the project root directory.
func FindProjectRoot() (string, error) {
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("could not get current file path")
	}

	dir := filepath.Dir(currentFilePath)

	for {
		// go.mod marks the project root
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		// If we've reached the top-level directory, the project root is not found.
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("project root not found")
		}

		// Move up one directory level.
		dir = filepath.Dir(dir)
	}
}
