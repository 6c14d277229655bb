package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/ingest"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

const retrievalPrompt = `Based on the following context, answer the question. If the answer cannot be found in the context, say "I cannot find the answer in the provided document."

Context:
%s

Question: %s

Answer:`

// Retrieval indexes the document once and sends only the top k chunks with each question.
type Retrieval struct {
	indexer  *ingest.Indexer
	embedder embedding.Embedder
	index    vectorDB.Index
	topK     int
	logger   *logger_i.Logger
}

func NewRetrieval(indexer *ingest.Indexer, embedder embedding.Embedder, index vectorDB.Index, topK int) *Retrieval {
	return &Retrieval{
		indexer:  indexer,
		embedder: embedder,
		index:    index,
		topK:     vectorDB.NormalizeK(topK),
		logger:   logger_i.NewLogger("RetrievalStrategy"),
	}
}

func (r *Retrieval) Name() string { return config.StrategyRetrieval }

func (r *Retrieval) Seed(ctx context.Context, documentId string, extraction docModel.Extraction) ([]chatModel.Turn, error) {
	if _, err := r.indexer.Index(ctx, documentId, extraction.Text); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Retrieval) Prompt(ctx context.Context, documentId string, question string) (Prompt, error) {
	start := time.Now()
	query, err := r.embedder.GetEmbedding(ctx, question)
	if err != nil {
		return Prompt{}, errorModel.Classify(errorModel.EmbeddingUnavailable, "retrieval.embed", err)
	}
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))

	hits, err := r.index.Query(ctx, documentId, query, r.topK)
	if err != nil {
		return Prompt{}, err
	}
	r.logger.WithTrace(ctx).Debug("retrieved chunks", "documentId", documentId, "hits", len(hits))

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
	}
	return Prompt{
		Text:    RetrievalPrompt(texts, question),
		Record:  question,
		Sources: texts,
	}, nil
}

func (r *Retrieval) Forget(ctx context.Context, documentId string) error {
	return r.indexer.Forget(ctx, documentId)
}

// RetrievalPrompt joins the retrieved chunks with single spaces.
func RetrievalPrompt(chunks []string, question string) string {
	return fmt.Sprintf(retrievalPrompt, strings.Join(chunks, " "), question)
}
