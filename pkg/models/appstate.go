package models

import (
	"github.com/udem-taln/nerbridge/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	// Processor serves WrapperInterface calls. On a worker it is the ner.Extractor.
	Processor Processor
	// Models reports cache slot state. Nil when the processor has no local cache.
	Models ModelStatusReporter
	Config *config.Config
}

// ModelStatus describes one cache slot.
type ModelStatus struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
}

type ModelStatusReporter interface {
	Status() map[string]ModelStatus
}
