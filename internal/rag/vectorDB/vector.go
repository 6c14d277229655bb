package vectorDB

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
)

// Index stores chunk embeddings per document. Query returns at most k chunks best first by cosine
// similarity, equal scores ordered by chunk sequence, and NotFound when the document has no entries.
type Index interface {
	Add(ctx context.Context, documentId string, chunks []docModel.Chunk, embeddings [][]float32) error
	Query(ctx context.Context, documentId string, embedding []float32, k int) ([]docModel.ScoredChunk, error)
	Has(ctx context.Context, documentId string) (bool, error)
	Remove(ctx context.Context, documentId string) error
}

const DefaultK = 3

func NormalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

// CheckAdd validates an Add call against the index dimension.
func CheckAdd(op string, chunks []docModel.Chunk, embeddings [][]float32, dimension int) error {
	if len(chunks) != len(embeddings) {
		return errorModel.New(errorModel.DimensionMismatch, op,
			fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(embeddings)))
	}
	for i, e := range embeddings {
		if len(e) != dimension {
			return errorModel.New(errorModel.DimensionMismatch, op,
				fmt.Errorf("vector %d has %d dimensions, index expects %d", i, len(e), dimension))
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when either has zero length.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Rank orders best first with the chunk sequence as tie breaker and keeps the top k.
func Rank(scored []docModel.ScoredChunk, k int) []docModel.ScoredChunk {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Seq < scored[j].Seq
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
