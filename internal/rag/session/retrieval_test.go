package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/cache"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract/extracttest"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/ingest"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/strategy"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB/memoryDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder counts a handful of tokens. It is crude but deterministic, which is all the
// ranking needs.
type keywordEmbedder struct{}

var keywords = []string{"1", "2", "3", "alice", "bob", "carol"}

func (keywordEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(keywords)+1)
	for i, k := range keywords {
		v[i] = float32(strings.Count(text, k))
	}
	v[len(keywords)] = 0.1
	return v
}

func (e keywordEmbedder) GetEmbedding(_ context.Context, query string) ([]float32, error) {
	return e.vector(query), nil
}

func (e keywordEmbedder) BatchEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (keywordEmbedder) Dimensions() int { return len(keywords) + 1 }

func TestRetrieval_FindsBobOnPageTwo(t *testing.T) {
	pdf := extracttest.BuildPDF(
		"Page 1: Alice is the engineer who looks after the build system.",
		"Page 2: Bob is the designer responsible for the brand guide.",
		"Page 3: Carol is the manager who signs off every release.",
	)

	index := memoryDB.NewStorage(0)
	embedder := keywordEmbedder{}
	// a 40 rune window with 12 overlap always holds "2: Bob" whole in some chunk
	rag := config.RAGConfig{ChunkSize: 40, ChunkOverlap: 12, TopK: 3}
	retrieval := strategy.NewRetrieval(ingest.NewIndexer(embedder, index, rag, 2), embedder, index, rag.TopK)

	provider := &fakeProvider{}
	manager := NewManager(ManagerConfig{
		Cache:     cache.New(nil),
		Extractor: extract.New(time.Second),
		Strategy:  retrieval,
		Provider:  provider,
		Session:   config.SessionConfig{ChatDeadline: 5 * time.Second},
	})
	defer manager.Shutdown()

	ref := docModel.Reference{Id: "people", Loader: docModel.LoaderFunc(func(context.Context) ([]byte, error) {
		return pdf, nil
	})}
	answer, err := manager.Ask(context.Background(), ref, "Who appears on page 2?")
	require.NoError(t, err)

	require.NotEmpty(t, answer.Sources)
	assert.LessOrEqual(t, len(answer.Sources), 3)
	found := false
	for _, source := range answer.Sources {
		if strings.Contains(source, "Bob") {
			found = true
		}
	}
	assert.True(t, found, "no retrieved chunk mentions Bob: %q", answer.Sources)

	histories, prompts := provider.seen()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], "Based on the following context"))
	assert.True(t, strings.HasSuffix(prompts[0], "Question: Who appears on page 2?\n\nAnswer:"))
	assert.Empty(t, histories[0], "retrieval seeds no turns")

	turns, _, err := manager.History(context.Background(), "people")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, chatModel.Turn{Role: chatModel.RoleUser, Text: "Who appears on page 2?", At: turns[0].At}, turns[0])

	has, err := index.Has(context.Background(), "people")
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, manager.Close(context.Background(), "people"))
	has, _ = index.Has(context.Background(), "people")
	assert.False(t, has)
}

func TestRetrieval_RejectsNonPDFBeforeExtraction(t *testing.T) {
	index := memoryDB.NewStorage(0)
	embedder := keywordEmbedder{}
	rag := config.RAGConfig{ChunkSize: 20, ChunkOverlap: 4, TopK: 3}
	manager := NewManager(ManagerConfig{
		Cache:     cache.New(nil),
		Extractor: extract.New(time.Second),
		Strategy:  strategy.NewRetrieval(ingest.NewIndexer(embedder, index, rag, 2), embedder, index, 3),
		Provider:  &fakeProvider{},
		Session:   config.SessionConfig{ChatDeadline: time.Second},
	})
	defer manager.Shutdown()

	ref := docModel.Reference{Id: "notes", Loader: docModel.LoaderFunc(func(context.Context) ([]byte, error) {
		return []byte("just some text"), nil
	})}
	_, err := manager.Ask(context.Background(), ref, "what?")
	assert.ErrorIs(t, err, errorModel.ErrInvalidFormat)
	kind, info := errorModel.Describe(err)
	assert.Equal(t, errorModel.InvalidFormat, kind)
	assert.Equal(t, 400, info.Status)
	has, _ := index.Has(context.Background(), "notes")
	assert.False(t, has)
}
