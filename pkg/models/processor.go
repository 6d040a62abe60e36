package models

import "context"

// WrapperInterface is the name remote callers dispatch on.
const WrapperInterface = "WrapperInterface"

// Processor is the WrapperInterface contract: every method takes a sentence and an
// optional target and returns a {"labels": [...]} JSON document.
type Processor interface {
	ProcessSM(ctx context.Context, sentence, target string) (string, error)
	ProcessMD(ctx context.Context, sentence, target string) (string, error)
	ProcessLG(ctx context.Context, sentence, target string) (string, error)
}

// Dispatch calls the Processor method matching size.
func Dispatch(
	ctx context.Context,
	p Processor,
	size ModelSize,
	sentence, target string,
) (string, error) {
	switch size {
	case Small:
		return p.ProcessSM(ctx, sentence, target)
	case Medium:
		return p.ProcessMD(ctx, sentence, target)
	case Large:
		return p.ProcessLG(ctx, sentence, target)
	default:
		return "", ErrUnknownModelSize
	}
}

// ModelLoader constructs model handles. Load is expensive and is called at most once per
// size by the extractor, unless it fails.
type ModelLoader interface {
	Load(ctx context.Context, name string) (ModelHandle, error)
}

// ModelHandle is a loaded model. Analyze must be safe for concurrent use.
type ModelHandle interface {
	Name() string
	Analyze(ctx context.Context, sentence string) ([]Entity, error)
}
