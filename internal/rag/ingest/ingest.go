package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/chunker"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

// parallel embedding batches in flight per document
const maxParallelBatches = 4

// Indexer turns extracted text into chunk embeddings stored in the vector index.
type Indexer struct {
	embedder  embedding.Embedder
	index     vectorDB.Index
	chunkSize int
	overlap   int
	batchSize int
	logger    *logger_i.Logger
}

func NewIndexer(embedder embedding.Embedder, index vectorDB.Index, rag config.RAGConfig, batchSize int) *Indexer {
	if batchSize < 1 {
		batchSize = config.EmbeddingBatchSize
	}
	return &Indexer{
		embedder:  embedder,
		index:     index,
		chunkSize: rag.ChunkSize,
		overlap:   rag.ChunkOverlap,
		batchSize: batchSize,
		logger:    logger_i.NewLogger("Indexer"),
	}
}

// Index chunks text and stores every chunk with its embedding. A document the index already holds is
// left alone. Nothing is written unless every batch was embedded. Returns the number of chunks added.
func (ix *Indexer) Index(ctx context.Context, documentId string, text string) (int, error) {
	log := ix.logger.WithTrace(ctx).With("documentId", documentId)

	has, err := ix.index.Has(ctx, documentId)
	if err != nil {
		return 0, err
	}
	if has {
		log.Debug("document already indexed, skipping")
		return 0, nil
	}

	chunks, err := chunker.Split(documentId, text, ix.chunkSize, ix.overlap)
	if err != nil {
		return 0, errorModel.New(errorModel.Internal, "ingest.split", err)
	}
	if len(chunks) == 0 {
		return 0, errorModel.New(errorModel.EmptyDocument, "ingest.split", errors.New("no text to index"))
	}
	log.Debug("Processing document", "chunks", len(chunks), "batchSize", ix.batchSize)

	start := time.Now()
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)
	for from := 0; from < len(chunks); from += ix.batchSize {
		to := min(from+ix.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, to-from)
			for _, c := range chunks[from:to] {
				texts = append(texts, c.Text)
			}
			batch, err := ix.embedder.BatchEmbedding(gctx, texts)
			if err != nil {
				return err
			}
			if err := embedding.CheckBatch("ingest.embed", len(texts), batch); err != nil {
				return err
			}
			copy(vectors[from:to], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("embedding failed, nothing indexed", "error", err)
		return 0, errorModel.Classify(errorModel.EmbeddingUnavailable, "ingest.embed", err)
	}
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))

	if err := ix.index.Add(ctx, documentId, chunks, vectors); err != nil {
		log.Error("adding chunks to index failed", "error", err)
		return 0, err
	}
	log.Info("document indexed", "chunks", len(chunks), "elapsed", time.Since(start))
	return len(chunks), nil
}

// Forget removes the document's chunks from the index.
func (ix *Indexer) Forget(ctx context.Context, documentId string) error {
	return ix.index.Remove(ctx, documentId)
}
