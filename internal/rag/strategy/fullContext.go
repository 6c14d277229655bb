package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
)

const fullContextSeed = "You are an AI assistant helping with a PDF document. Here's the content of the PDF:\n\n%s\n\nPlease help answer questions about this document."

// FullContext puts the whole document into one framing turn and sends questions unchanged.
type FullContext struct{}

func NewFullContext() *FullContext { return &FullContext{} }

func (FullContext) Name() string { return config.StrategyFull }

func (FullContext) Seed(_ context.Context, _ string, extraction docModel.Extraction) ([]chatModel.Turn, error) {
	return []chatModel.Turn{{
		Role: chatModel.RoleContext,
		Text: SeedText(extraction.Text),
		At:   time.Now(),
	}}, nil
}

func (FullContext) Prompt(_ context.Context, _ string, question string) (Prompt, error) {
	return Prompt{Text: question, Record: question}, nil
}

func (FullContext) Forget(context.Context, string) error { return nil }

func SeedText(text string) string {
	return fmt.Sprintf(fullContextSeed, text)
}
