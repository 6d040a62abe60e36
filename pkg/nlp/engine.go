package nlp

import (
	"fmt"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var log = internal.GetLogger()

// NewLoader returns the model loader selected by nlp.engine.
func NewLoader(cfg *config.Config) (models.ModelLoader, error) {
	switch cfg.NLP.Engine {
	case config.EngineHTTP:
		log.Infof("Using spaCy NLP server at %s", cfg.NLP.ServerURL)
		client := internal.NewRetryableHTTPClient(cfg.NLP.RetryMax, cfg.NLP.Timeout)
		return NewSpacyLoader(cfg.NLP.ServerURL, cfg.NLP.Language, client), nil
	case config.EngineGazetteer:
		log.Infof("Using gazetteer models from %s", cfg.NLP.ModelDir)
		return NewGazetteerLoader(cfg.NLP.ModelDir), nil
	default:
		return nil, fmt.Errorf("nlp.engine (%s) is not supported", cfg.NLP.Engine)
	}
}
