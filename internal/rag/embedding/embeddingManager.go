package embedding

import (
	"context"
	"fmt"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
)

// Embedder maps text to fixed length vectors. BatchEmbedding is all or nothing: either every input
// gets a vector, in input order, or the call fails.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// CheckBatch rejects provider responses that would leave some input without a usable vector.
func CheckBatch(op string, inputs int, vectors [][]float32) error {
	if len(vectors) != inputs {
		return errorModel.New(errorModel.EmbeddingUnavailable, op,
			fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), inputs))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return errorModel.New(errorModel.EmbeddingUnavailable, op, fmt.Errorf("empty vector at position %d", i))
		}
	}
	return nil
}
