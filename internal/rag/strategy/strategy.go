package strategy

import (
	"context"
	"fmt"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
)

// Strategy decides how a document reaches the model. Seed runs once when a session is created and
// returns the turns that open its history. Prompt runs on every question.
type Strategy interface {
	Name() string
	Seed(ctx context.Context, documentId string, extraction docModel.Extraction) ([]chatModel.Turn, error)
	Prompt(ctx context.Context, documentId string, question string) (Prompt, error)
	Forget(ctx context.Context, documentId string) error
}

// Prompt is what gets sent for one question. Record is the user turn kept in history, which for
// retrieval is the bare question rather than the chunk-stuffed prompt.
type Prompt struct {
	Text    string
	Record  string
	Sources []string
}

func Select(name string, full *FullContext, retrieval *Retrieval) (Strategy, error) {
	switch name {
	case config.StrategyFull, "":
		return full, nil
	case config.StrategyRetrieval:
		if retrieval == nil {
			return nil, fmt.Errorf("strategy %q needs an embedding provider and a vector index", name)
		}
		return retrieval, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}
